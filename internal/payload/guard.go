package payload

import (
	"errors"

	"github.com/kestrelworks/relay/internal/access"
	"github.com/kestrelworks/relay/internal/scope"
)

// Sentinel errors for scoped payload construction.
var (
	// ErrUnauthorized is returned when the guard's subject lacks publish
	// rights on the declared scope.
	ErrUnauthorized = errors.New("subject is not authorized to publish on scope")

	// ErrInvalidScope is returned when the declared scope is the zero value.
	ErrInvalidScope = errors.New("invalid scope")
)

// Guard constructs scoped payloads, verifying publish rights on the
// declared scope before the payload exists. This is an earlier enforcement
// point than bus acquisition: a payload that fails the check is never
// created, let alone published.
//
// The authorization subject is an explicit parameter of the guard rather
// than something inferred from the construction site. Callers decide what
// the subject means: typically the identity of the module that owns the
// payload type, but a per-call-site identity works equally well by holding
// one guard per caller. The original access model was ambiguous on this
// point, so the guard deliberately does not pick a strategy.
type Guard struct {
	access  *access.Registry
	subject string
}

// NewGuard creates a guard that checks publish rights for subject against
// the given access registry.
func NewGuard(reg *access.Registry, subject string) *Guard {
	return &Guard{access: reg, subject: subject}
}

// Subject returns the identity this guard authorizes as.
func (g *Guard) Subject() string { return g.subject }

func (g *Guard) check(s scope.Scope) error {
	if s.IsZero() {
		return ErrInvalidScope
	}
	if !g.access.CanPublish(g.subject, s) {
		return ErrUnauthorized
	}
	return nil
}

// NewScopedEvent creates a scoped event on s with the given propagation
// policy. Fails with ErrUnauthorized when the guard's subject may not
// publish on s.
func (g *Guard) NewScopedEvent(s scope.Scope, p Propagation) (ScopedEvent, error) {
	if err := g.check(s); err != nil {
		return ScopedEvent{}, err
	}
	return ScopedEvent{Event: NewEvent(), scope: s, propagation: p}, nil
}

// NewScopedMessage creates a scoped message on s with the given propagation
// policy. Fails with ErrUnauthorized when the guard's subject may not
// publish on s.
func (g *Guard) NewScopedMessage(s scope.Scope, p Propagation, needsResponse bool) (ScopedMessage, error) {
	if err := g.check(s); err != nil {
		return ScopedMessage{}, err
	}
	return ScopedMessage{Message: NewMessage(needsResponse), scope: s, propagation: p}, nil
}
