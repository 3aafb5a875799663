package bus

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/kestrelworks/relay/internal/payload"
)

// DefaultRequestTimeout bounds a request whose caller gave no timeout.
const DefaultRequestTimeout = 5 * time.Second

// outcome is the settlement of one pending response.
type outcome struct {
	value any
	err   error
}

// pendingResponse is a single-resolution completion handle. It settles
// exactly once: by value, by error, or not at all when the requester has
// already given up and discarded it.
type pendingResponse struct {
	once sync.Once
	ch   chan outcome
}

func newPendingResponse() *pendingResponse {
	return &pendingResponse{ch: make(chan outcome, 1)}
}

func (p *pendingResponse) settle(value any, err error) {
	p.once.Do(func() {
		p.ch <- outcome{value: value, err: err}
	})
}

// Request publishes p and waits for a responder to settle it, racing the
// given timeout (DefaultRequestTimeout when zero or negative).
//
// The pending entry is keyed by p's message identity and removed exactly
// once, on whichever of settlement, timeout or context cancellation comes
// first. A response arriving after removal is a silent no-op.
func (e *Engine) Request(ctx context.Context, p payload.Payload, timeout time.Duration) (any, error) {
	adr, ok := p.(payload.Addressable)
	if !ok || !adr.RequiresResponse() {
		return nil, ErrNotRequestable
	}
	if !e.HasSubscribers(reflect.TypeOf(p)) {
		return nil, ErrNoResponders
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	id := adr.MessageID()
	pd := newPendingResponse()

	e.pmu.Lock()
	if _, exists := e.pending[id]; exists {
		e.pmu.Unlock()
		return nil, ErrRequestInFlight
	}
	e.pending[id] = pd
	e.pmu.Unlock()

	if err := e.Publish(ctx, p); err != nil {
		e.takePending(id)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-pd.ch:
		e.takePending(id)
		return out.value, out.err
	case <-timer.C:
		e.takePending(id)
		return nil, &RequestTimeoutError{MessageID: id}
	case <-ctx.Done():
		e.takePending(id)
		return nil, ctx.Err()
	}
}

// Respond settles the pending entry for p's message identity with value.
// A no-op when no entry exists, which is the normal outcome of a response
// arriving after the requester timed out.
func (e *Engine) Respond(p payload.Payload, value any) {
	adr, ok := p.(payload.Addressable)
	if !ok {
		return
	}
	if pd := e.lookupPending(adr.MessageID()); pd != nil {
		pd.settle(value, nil)
	}
}

// failPending settles the pending entry for id with err. Reports whether
// an entry existed.
func (e *Engine) failPending(id string, err error) bool {
	pd := e.lookupPending(id)
	if pd == nil {
		return false
	}
	pd.settle(nil, err)
	return true
}

// lookupPending returns the live entry for id without removing it; only
// the requester removes entries, so removal stays exactly-once.
func (e *Engine) lookupPending(id string) *pendingResponse {
	e.pmu.Lock()
	defer e.pmu.Unlock()
	return e.pending[id]
}

// takePending removes the entry for id. Idempotent.
func (e *Engine) takePending(id string) {
	e.pmu.Lock()
	defer e.pmu.Unlock()
	delete(e.pending, id)
}

// PendingResponses returns the number of requests awaiting settlement.
func (e *Engine) PendingResponses() int {
	e.pmu.Lock()
	defer e.pmu.Unlock()
	return len(e.pending)
}
