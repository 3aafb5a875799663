// Package registry owns the process's bus instances: exactly one bus per
// (payload kind, scope) pair, wired into the scope hierarchy and gated by
// the access registry on every acquisition.
//
// The registry is constructed explicitly at the composition root and
// passed to whoever needs buses; there is no package-level singleton, so
// tests build independent registries without shared state.
package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/kestrelworks/relay/internal/access"
	"github.com/kestrelworks/relay/internal/bus"
	"github.com/kestrelworks/relay/internal/payload"
	"github.com/kestrelworks/relay/internal/scope"
)

// ErrUnauthorized is returned when a caller without an access entry (or
// with a None-level entry) acquires a bus for a scope.
var ErrUnauthorized = errors.New("caller is not authorized for scope")

// kinds every scope gets a bus for.
var kinds = []payload.Kind{payload.KindEvent, payload.KindMessage}

// Option configures the buses the registry builds.
type Option func(*options)

type options struct {
	sink          bus.TaskSink
	logger        *slog.Logger
	priorities    bool
	async         bool
	failUnhandled bool
}

// WithPriorities builds every bus with priority-ordered delivery.
func WithPriorities() Option {
	return func(o *options) { o.priorities = true }
}

// WithAsyncDispatch builds every bus to hand delivery work to sink.
func WithAsyncDispatch(sink bus.TaskSink) Option {
	return func(o *options) {
		o.async = true
		o.sink = sink
	}
}

// WithLogger builds every bus with advanced failure logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFailOnUnhandled builds every bus to fail fast on unhandled payloads.
func WithFailOnUnhandled() Option {
	return func(o *options) { o.failUnhandled = true }
}

// Registry creates and caches bus instances per (kind, scope).
type Registry struct {
	tree   *scope.Tree
	access *access.Registry
	opts   options

	mu    sync.Mutex
	buses map[payload.Kind]map[scope.Scope]*bus.Engine
	order []scope.Scope // initialization order, parents first
}

// New creates a registry over the given scope tree and access table and
// initializes buses for every scope already in the tree.
func New(tree *scope.Tree, acc *access.Registry, opts ...Option) (*Registry, error) {
	r := &Registry{
		tree:   tree,
		access: acc,
		buses:  make(map[payload.Kind]map[scope.Scope]*bus.Engine),
	}
	for _, k := range kinds {
		r.buses[k] = make(map[scope.Scope]*bus.Engine)
	}
	for _, opt := range opts {
		opt(&r.opts)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range tree.All() {
		if err := r.initLocked(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Tree returns the scope tree the registry serves.
func (r *Registry) Tree() *scope.Tree { return r.tree }

// Access returns the access registry gating acquisitions.
func (r *Registry) Access() *access.Registry { return r.access }

// initLocked creates both kinds' buses for s if absent, linking each to
// the parent scope's bus of the same kind. Ancestors are initialized
// first, so parent buses always exist by the time a child needs them.
func (r *Registry) initLocked(s scope.Scope) error {
	if parent, ok := s.Parent(); ok {
		if _, exists := r.buses[kinds[0]][parent]; !exists {
			if err := r.initLocked(parent); err != nil {
				return err
			}
		}
	}

	created := false
	for _, k := range kinds {
		if _, exists := r.buses[k][s]; exists {
			continue
		}

		b := bus.NewBuilder(k).InScope(s)
		if parent, ok := s.Parent(); ok {
			b.LinkParent(r.buses[k][parent])
		}
		if r.opts.priorities {
			b.WithPriorities()
		}
		if r.opts.async {
			b.WithAsyncDispatch(r.opts.sink)
		}
		if r.opts.logger != nil {
			b.WithAdvancedLogging(r.opts.logger)
		}
		if r.opts.failUnhandled {
			b.FailOnUnhandled()
		}

		eng, err := b.Build()
		if err != nil {
			return err
		}
		r.buses[k][s] = eng
		created = true
	}
	if created {
		r.order = append(r.order, s)
	}
	return nil
}

// InitScope ensures buses exist for s (and all its ancestors).
func (r *Registry) InitScope(s scope.Scope) error {
	if s.IsZero() {
		return scope.ErrInvalidParent
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initLocked(s)
}

// GetBus returns the bus for (kind, s) after consulting the access
// registry: callers without an entry, or with a None-level entry, are
// rejected with ErrUnauthorized. Buses for scopes created outside the
// registry are initialized lazily on first acquisition.
func (r *Registry) GetBus(kind payload.Kind, s scope.Scope, identity string) (*bus.Engine, error) {
	if s.IsZero() {
		return nil, scope.ErrInvalidParent
	}
	if r.access.LevelFor(identity, s) == access.None {
		return nil, ErrUnauthorized
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.initLocked(s); err != nil {
		return nil, err
	}
	return r.buses[kind][s], nil
}

// CreateScope allocates a child scope under parent, initializes its buses
// and grants the creating caller ReadWrite on it.
func (r *Registry) CreateScope(name string, parent scope.Scope, identity string) (scope.Scope, error) {
	if identity == "" {
		return scope.Scope{}, access.ErrEmptyIdentity
	}

	s, err := r.tree.NewScope(name, parent)
	if err != nil {
		return scope.Scope{}, err
	}
	if err := r.InitScope(s); err != nil {
		return scope.Scope{}, err
	}
	if err := r.access.Register(identity, s, access.ReadWrite); err != nil {
		return scope.Scope{}, err
	}
	return s, nil
}

// Snapshot returns diagnostics for every bus of the given kind, in scope
// initialization order.
func (r *Registry) Snapshot(kind payload.Kind) []bus.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]bus.Stats, 0, len(r.order))
	for _, s := range r.order {
		if eng, ok := r.buses[kind][s]; ok {
			out = append(out, eng.Stats())
		}
	}
	return out
}
