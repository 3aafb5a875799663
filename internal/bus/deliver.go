package bus

import (
	"context"
	"reflect"
	"runtime/debug"

	"github.com/kestrelworks/relay/internal/payload"
)

// Publish dispatches p to local subscribers and forwards it one hop per
// its propagation policy.
//
// On a synchronous bus delivery happens inline on the caller's goroutine
// and a fail-fast bus reports an unhandled payload as an error. On an
// asynchronous bus the delivery work is handed to the task sink and
// Publish returns immediately; delivery happens when the host drains the
// sink.
func (e *Engine) Publish(ctx context.Context, p payload.Payload) error {
	if p == nil {
		return ErrNilType
	}
	if p.PayloadKind() != e.kind {
		return ErrWrongKind
	}

	e.published.Add(1)

	var err error
	if e.async && e.sink != nil {
		e.sink.Enqueue(func() { e.deliver(ctx, p, false) })
	} else {
		err = e.deliver(ctx, p, true)
	}

	e.propagate(ctx, p)
	return err
}

// propagate forwards p one hop along the scope tree. Only the bus the
// payload originated on forwards it: a forwarded payload's declared scope
// no longer matches the receiving bus, so the hop never cascades. This
// bound is deliberate; it is what keeps a propagation storm impossible.
func (e *Engine) propagate(ctx context.Context, p payload.Payload) {
	sp, ok := p.(payload.Scoped)
	if !ok || e.scope.IsZero() || sp.PayloadScope() != e.scope {
		return
	}

	policy := sp.Propagation()
	if policy.ToParent() && e.parent != nil {
		if err := e.parent.Publish(ctx, p); err != nil {
			e.logDispatch("propagation to parent failed", p, err)
		}
	}
	if policy.ToChildren() {
		for _, child := range e.Children() {
			if err := child.Publish(ctx, p); err != nil {
				e.logDispatch("propagation to child failed", p, err)
			}
		}
	}
}

// deliver runs one dispatch pass over a momentary copy of the subscriber
// list for p's type tag. Handler failures never abort the pass; entries
// whose owning context died are skipped and purged afterwards.
func (e *Engine) deliver(ctx context.Context, p payload.Payload, inline bool) error {
	t := reflect.TypeOf(p)
	bucket := e.snapshot(t)

	invoked := 0
	purge := false
	for _, ent := range bucket {
		if !ent.liveness.Alive() {
			ent.dead.Store(true)
			purge = true
			continue
		}

		if err := e.invoke(ctx, ent.handler, p); err != nil {
			e.routeFailure(p, t, err)
			continue
		}
		e.delivered.Add(1)
		invoked++
	}

	if purge {
		e.purgeDead(t)
	}

	if invoked == 0 {
		if inline && e.failUnhandled {
			return &UnhandledError{Bus: e.name, PayloadType: t.String()}
		}
		e.dropped.Add(1)
	}
	return nil
}

// invoke runs one handler with panic containment.
func (e *Engine) invoke(ctx context.Context, h Handler, p payload.Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerPanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return h.Handle(ctx, p)
}

// routeFailure directs a handler failure. When the payload is a request
// still awaiting settlement the failure settles the pending entry, so the
// requester sees the handler's error. Otherwise the failure is surfaced
// only through logging.
func (e *Engine) routeFailure(p payload.Payload, t reflect.Type, err error) {
	if adr, ok := p.(payload.Addressable); ok && adr.RequiresResponse() {
		if e.failPending(adr.MessageID(), err) {
			return
		}
	}
	e.logDispatch("handler failed", p, err)
}

func (e *Engine) logDispatch(msg string, p payload.Payload, err error) {
	if e.logger == nil {
		return
	}
	e.logger.Error(msg,
		"bus", e.name,
		"payload", reflect.TypeOf(p).String(),
		"error", err,
	)
}
