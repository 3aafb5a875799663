package bus

import (
	"github.com/kestrelworks/relay/internal/payload"
	"github.com/kestrelworks/relay/internal/scope"
)

// Stats is a read-only snapshot of a bus's counters and subscriber table.
type Stats struct {
	// Name is the bus name.
	Name string

	// Kind is the payload kind the bus serves.
	Kind payload.Kind

	// Scope is the scope the bus serves. Zero for an unscoped bus.
	Scope scope.Scope

	// Published is the total number of payloads published.
	Published uint64

	// Delivered is the total number of successful handler invocations.
	Delivered uint64

	// Dropped is the number of publishes no live subscriber handled.
	Dropped uint64

	// PendingResponses is the number of requests awaiting settlement.
	PendingResponses int

	// LiveSubscribersByType counts currently alive entries per type tag.
	LiveSubscribersByType map[string]int
}

// Stats returns a point-in-time snapshot. It never mutates the bus;
// entries whose owner died are excluded from the counts but stay in the
// table until the next dispatch or unsubscribe purges them.
func (e *Engine) Stats() Stats {
	byType := make(map[string]int)

	e.mu.Lock()
	for t, bucket := range e.subs {
		alive := 0
		for _, ent := range bucket {
			if ent.alive() {
				alive++
			}
		}
		if alive > 0 {
			byType[t.String()] = alive
		}
	}
	e.mu.Unlock()

	return Stats{
		Name:                  e.name,
		Kind:                  e.kind,
		Scope:                 e.scope,
		Published:             e.published.Load(),
		Delivered:             e.delivered.Load(),
		Dropped:               e.dropped.Load(),
		PendingResponses:      e.PendingResponses(),
		LiveSubscribersByType: byType,
	}
}
