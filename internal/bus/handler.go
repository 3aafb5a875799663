package bus

import (
	"context"
	"reflect"
	"weak"

	"github.com/kestrelworks/relay/internal/payload"
)

// Handler is the interface for payload handlers.
type Handler interface {
	// Handle processes a payload. Handlers type-assert to the concrete
	// payload type they subscribed for.
	Handle(ctx context.Context, p payload.Payload) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, p payload.Payload) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, p payload.Payload) error {
	return f(ctx, p)
}

// TypeOf returns the subscription type tag for a concrete payload type.
func TypeOf[T payload.Payload]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Liveness is the per-subscriber check that decides whether the handler's
// owning context still exists. The zero value reports always alive, which
// is right for free functions with no owning context.
//
// The bus holds no strong reference to a subscriber's owner: a dead check
// only marks the entry for removal on the next dispatch or unsubscribe,
// there is no proactive sweep.
type Liveness struct {
	kind  livenessKind
	alive func() bool
}

type livenessKind uint8

const (
	liveAlways livenessKind = iota
	liveHosted
	liveWeak
)

// AlwaysAlive returns a liveness check that never fails.
func AlwaysAlive() Liveness {
	return Liveness{kind: liveAlways}
}

// HostedLiveness binds the subscriber to a host-managed component: the
// entry stays alive while the predicate reports true. Used for handlers
// owned by objects whose teardown the host tracks itself.
func HostedLiveness(alive func() bool) Liveness {
	if alive == nil {
		return AlwaysAlive()
	}
	return Liveness{kind: liveHosted, alive: alive}
}

// WeakLiveness binds the subscriber to owner through a weak pointer: the
// entry stays alive while owner is still reachable elsewhere. The bus
// itself never keeps owner alive.
func WeakLiveness[T any](owner *T) Liveness {
	if owner == nil {
		return Liveness{kind: liveWeak, alive: func() bool { return false }}
	}
	wp := weak.Make(owner)
	return Liveness{kind: liveWeak, alive: func() bool { return wp.Value() != nil }}
}

// Alive reports whether the subscriber's owning context still exists.
func (l Liveness) Alive() bool {
	if l.alive == nil {
		return true
	}
	return l.alive()
}

// handlerEqual compares two handlers by identity. Function handlers
// compare by code pointer; other handlers by interface equality when their
// dynamic type is comparable.
func handlerEqual(a, b Handler) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() == reflect.Func || rb.Kind() == reflect.Func {
		return ra.Kind() == rb.Kind() && ra.Pointer() == rb.Pointer()
	}
	if ra.Type() != rb.Type() || !ra.Type().Comparable() {
		return false
	}
	return a == b
}
