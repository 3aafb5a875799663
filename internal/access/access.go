// Package access maps (caller identity, scope) pairs to permission levels
// and gates bus acquisition and scoped payload construction.
//
// Granting any level on a scope backfills at least ReadOnly on every
// ancestor scope that has no entry yet for that identity, so a caller that
// may publish on a leaf can always observe traffic on the path to it.
// Existing entries are never downgraded by the backfill.
package access

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kestrelworks/relay/internal/scope"
)

// Sentinel errors for access registration.
var (
	// ErrEmptyIdentity is returned when an identity is the empty string.
	ErrEmptyIdentity = errors.New("caller identity cannot be empty")

	// ErrInvalidScope is returned when a scope is the zero value.
	ErrInvalidScope = errors.New("invalid scope")
)

// Level is the permission level an identity holds on a scope.
type Level int

const (
	// None denies both publishing and subscribing.
	None Level = iota

	// ReadOnly permits subscribing only.
	ReadOnly

	// WriteOnly permits publishing only.
	WriteOnly

	// ReadWrite permits both publishing and subscribing.
	ReadWrite
)

// String returns a human-readable level name.
func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case ReadOnly:
		return "readonly"
	case WriteOnly:
		return "writeonly"
	case ReadWrite:
		return "readwrite"
	default:
		return "unknown"
	}
}

// CanPublish reports whether the level permits publishing.
func (l Level) CanPublish() bool { return l == WriteOnly || l == ReadWrite }

// CanSubscribe reports whether the level permits subscribing.
func (l Level) CanSubscribe() bool { return l == ReadOnly || l == ReadWrite }

// ParseLevel parses a level name as used in bootstrap configuration.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "none":
		return None, nil
	case "readonly", "read":
		return ReadOnly, nil
	case "writeonly", "write":
		return WriteOnly, nil
	case "readwrite":
		return ReadWrite, nil
	default:
		return None, fmt.Errorf("unknown access level %q", s)
	}
}

// Registry is the access table. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	grants map[string]map[scope.Scope]Level
}

// NewRegistry creates an empty access registry.
func NewRegistry() *Registry {
	return &Registry{grants: make(map[string]map[scope.Scope]Level)}
}

// Register sets the entry for (identity, s) and backfills ReadOnly on every
// ancestor scope that has no entry for the identity. Existing entries,
// including the one for s itself, are overwritten only at s; ancestors keep
// whatever they already have.
func (r *Registry) Register(identity string, s scope.Scope, level Level) error {
	if identity == "" {
		return ErrEmptyIdentity
	}
	if s.IsZero() {
		return ErrInvalidScope
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byScope := r.grants[identity]
	if byScope == nil {
		byScope = make(map[scope.Scope]Level)
		r.grants[identity] = byScope
	}
	byScope[s] = level

	for cur, ok := s.Parent(); ok; cur, ok = cur.Parent() {
		if _, exists := byScope[cur]; !exists {
			byScope[cur] = ReadOnly
		}
	}
	return nil
}

// Revoke removes the entry for (identity, s). Ancestor entries created by
// the backfill are left in place.
func (r *Registry) Revoke(identity string, s scope.Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if byScope := r.grants[identity]; byScope != nil {
		delete(byScope, s)
		if len(byScope) == 0 {
			delete(r.grants, identity)
		}
	}
}

// LevelFor returns the level for (identity, s), or None when no entry exists.
func (r *Registry) LevelFor(identity string, s scope.Scope) Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grants[identity][s]
}

// CanPublish reports whether identity may publish on s.
func (r *Registry) CanPublish(identity string, s scope.Scope) bool {
	return r.LevelFor(identity, s).CanPublish()
}

// CanSubscribe reports whether identity may subscribe on s.
func (r *Registry) CanSubscribe(identity string, s scope.Scope) bool {
	return r.LevelFor(identity, s).CanSubscribe()
}

// Grants returns a snapshot of every entry held by identity.
func (r *Registry) Grants(identity string) map[scope.Scope]Level {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byScope := r.grants[identity]
	if len(byScope) == 0 {
		return nil
	}
	out := make(map[scope.Scope]Level, len(byScope))
	for s, l := range byScope {
		out[s] = l
	}
	return out
}
