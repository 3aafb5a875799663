package bus

import (
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/kestrelworks/relay/internal/payload"
	"github.com/kestrelworks/relay/internal/scope"
)

// TaskSink is the scheduling collaborator used by async dispatch. The
// engine only ever hands it fire-and-forget delivery work; the sink
// guarantees FIFO execution of the actions it accepts.
type TaskSink interface {
	Enqueue(fn func())
}

// entry is one subscriber record: the handler, its priority and the
// liveness check bound to the handler's owning context.
type entry struct {
	handler  Handler
	priority int
	liveness Liveness

	// dead is set during dispatch when the liveness check fails; the
	// entry is purged from the table at the end of the pass.
	dead atomic.Bool
}

func (e *entry) alive() bool {
	return !e.dead.Load() && e.liveness.Alive()
}

// Engine is one bus instance: it serves a single (payload kind, scope)
// pair and is safe for concurrent use. Handler code is never invoked while
// an engine lock is held, so handlers may re-enter the bus freely.
type Engine struct {
	name  string
	kind  payload.Kind
	scope scope.Scope

	prioritized   bool
	async         bool
	failUnhandled bool
	logger        *slog.Logger
	sink          TaskSink

	mu   sync.Mutex
	subs map[reflect.Type][]*entry

	pmu     sync.Mutex
	pending map[string]*pendingResponse

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64

	parent *Engine

	lmu      sync.RWMutex
	children []*Engine
}

// Name returns the bus name.
func (e *Engine) Name() string { return e.name }

// Kind returns the payload kind this bus serves.
func (e *Engine) Kind() payload.Kind { return e.kind }

// Scope returns the scope this bus serves. Zero for an unscoped bus.
func (e *Engine) Scope() scope.Scope { return e.scope }

// Parent returns the parent bus of the same kind, or nil.
func (e *Engine) Parent() *Engine { return e.parent }

// Children returns a snapshot of the direct child buses of the same kind.
func (e *Engine) Children() []*Engine {
	e.lmu.RLock()
	defer e.lmu.RUnlock()

	out := make([]*Engine, len(e.children))
	copy(out, e.children)
	return out
}

// adoptChild links a child bus. Called by the registry during scope
// initialization.
func (e *Engine) adoptChild(child *Engine) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	e.children = append(e.children, child)
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	priority int
	liveness Liveness
}

// WithPriority sets the subscription priority. Higher priorities are
// delivered first. Meaningful only on a bus built with priority support;
// otherwise insertion order is delivery order.
func WithPriority(p int) SubscribeOption {
	return func(c *subscribeConfig) { c.priority = p }
}

// WithLiveness binds the subscription to an owning context.
func WithLiveness(l Liveness) SubscribeOption {
	return func(c *subscribeConfig) { c.liveness = l }
}

// Subscribe registers a handler for the given payload type tag.
//
// With priority support enabled the entry is inserted immediately before
// the first existing entry with a strictly lower priority, so entries of
// equal priority keep their relative subscription order. Duplicate
// registration of the same handler creates independent entries.
func (e *Engine) Subscribe(t reflect.Type, h Handler, opts ...SubscribeOption) error {
	if h == nil {
		return ErrNilHandler
	}
	if t == nil {
		return ErrNilType
	}

	cfg := subscribeConfig{liveness: AlwaysAlive()}
	for _, opt := range opts {
		opt(&cfg)
	}
	ent := &entry{handler: h, priority: cfg.priority, liveness: cfg.liveness}

	e.mu.Lock()
	defer e.mu.Unlock()

	bucket := e.subs[t]
	if !e.prioritized {
		e.subs[t] = append(bucket, ent)
		return nil
	}

	at := len(bucket)
	for i, existing := range bucket {
		if existing.priority < ent.priority {
			at = i
			break
		}
	}
	bucket = append(bucket, nil)
	copy(bucket[at+1:], bucket[at:])
	bucket[at] = ent
	e.subs[t] = bucket
	return nil
}

// SubscribeFunc is a convenience wrapper for subscribing a function
// handler.
func (e *Engine) SubscribeFunc(t reflect.Type, fn HandlerFunc, opts ...SubscribeOption) error {
	if fn == nil {
		return ErrNilHandler
	}
	return e.Subscribe(t, fn, opts...)
}

// Unsubscribe removes every entry registered for t whose handler equals h,
// along with any entry whose liveness check already reports dead.
// Unsubscribing a handler that was never registered is a no-op.
func (e *Engine) Unsubscribe(t reflect.Type, h Handler) {
	if t == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bucket := e.subs[t]
	if len(bucket) == 0 {
		return
	}

	kept := bucket[:0]
	for _, ent := range bucket {
		if handlerEqual(ent.handler, h) || !ent.alive() {
			continue
		}
		kept = append(kept, ent)
	}
	if len(kept) == 0 {
		delete(e.subs, t)
		return
	}
	e.subs[t] = kept
}

// HasSubscribers reports whether at least one live entry exists for t.
func (e *Engine) HasSubscribers(t reflect.Type) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range e.subs[t] {
		if ent.alive() {
			return true
		}
	}
	return false
}

// snapshot returns a momentary copy of the bucket for t so dispatch never
// holds the table lock while invoking handler code.
func (e *Engine) snapshot(t reflect.Type) []*entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	bucket := e.subs[t]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]*entry, len(bucket))
	copy(out, bucket)
	return out
}

// purgeDead removes entries marked dead during a dispatch pass.
func (e *Engine) purgeDead(t reflect.Type) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bucket := e.subs[t]
	if len(bucket) == 0 {
		return
	}

	kept := bucket[:0]
	for _, ent := range bucket {
		if ent.dead.Load() {
			continue
		}
		kept = append(kept, ent)
	}
	if len(kept) == 0 {
		delete(e.subs, t)
		return
	}
	e.subs[t] = kept
}
