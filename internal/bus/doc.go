// Package bus implements the generic bus engine: subscription
// bookkeeping, prioritized dispatch, weak-lifetime subscriber tracking,
// single-hop scope propagation and request/response correlation.
//
// # Architecture
//
// One Engine exists per (payload kind, scope) pair, created by the
// registry package and linked to the parent scope's engine of the same
// kind. Subscriptions are keyed by the concrete payload type:
//
//	eng.SubscribeFunc(bus.TypeOf[CursorMoved](), onCursorMoved,
//	    bus.WithPriority(10))
//
// # Dispatch
//
// Publish increments the published counter, then delivers either inline
// (synchronous bus) or through the host's task sink (asynchronous bus).
// A dispatch pass works on a momentary copy of the subscriber list, so
// handlers may subscribe and unsubscribe freely while a pass runs and no
// engine lock is ever held across handler code. A handler error or panic
// is contained per entry and never prevents delivery to the remaining
// entries.
//
// # Liveness
//
// The bus never owns a subscriber's target. Each entry carries a liveness
// check bound to the handler's owning context: always alive for free
// functions, a host predicate for handlers owned by host-managed
// components, or a weak handle for generic objects. Dead entries are
// skipped and purged opportunistically on the next dispatch or
// unsubscribe; there is no background sweep.
//
// # Propagation
//
// A scoped payload is forwarded exactly one hop toward the parent and/or
// child buses, and only by the bus whose scope matches the payload's
// declared scope. The receiving bus delivers locally but never forwards
// further.
//
// # Request/response
//
//	reply, err := eng.Request(ctx, msg, 2*time.Second)
//
// parks a single-resolution completion handle keyed by the message
// identity until a handler calls Respond, a responding handler fails, or
// the timeout fires. Timeouts discard the handle, so a late response
// resolves into nothing.
package bus
