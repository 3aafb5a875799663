package payload

import (
	"time"

	"github.com/google/uuid"

	"github.com/kestrelworks/relay/internal/scope"
)

// Kind identifies which bus family a payload travels on.
type Kind int

const (
	// KindEvent is the notification family: fire-and-forget payloads.
	KindEvent Kind = iota

	// KindMessage is the conversation family: addressable payloads that
	// may require a response.
	KindMessage
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Payload is the marker capability every bus payload carries.
type Payload interface {
	PayloadKind() Kind
}

// Timestamped is implemented by payloads that record their creation time.
type Timestamped interface {
	Timestamp() time.Time
}

// Addressable is implemented by payloads that take part in
// request/response correlation.
type Addressable interface {
	// MessageID is the unique identity used to correlate a response.
	MessageID() string

	// RequiresResponse reports whether a responder is expected to call
	// Respond for this payload.
	RequiresResponse() bool
}

// Propagation controls the single-hop forwarding a scoped payload requests
// after local delivery.
type Propagation uint8

const (
	// PropagateNone keeps delivery local to the originating bus.
	PropagateNone Propagation = 0

	// PropagateToParent forwards one hop to the parent bus.
	PropagateToParent Propagation = 1 << 0

	// PropagateToChildren forwards one hop to every direct child bus.
	PropagateToChildren Propagation = 1 << 1

	// PropagateBoth forwards one hop in both directions.
	PropagateBoth = PropagateToParent | PropagateToChildren
)

// ToParent reports whether the policy includes the parent hop.
func (p Propagation) ToParent() bool { return p&PropagateToParent != 0 }

// ToChildren reports whether the policy includes the child hop.
func (p Propagation) ToChildren() bool { return p&PropagateToChildren != 0 }

// String returns a human-readable policy name.
func (p Propagation) String() string {
	switch {
	case p.ToParent() && p.ToChildren():
		return "both"
	case p.ToParent():
		return "parent"
	case p.ToChildren():
		return "children"
	default:
		return "none"
	}
}

// Scoped is implemented by payloads that declare a scope and a
// propagation policy.
type Scoped interface {
	// PayloadScope is the scope the payload was published on.
	PayloadScope() scope.Scope

	// Propagation is the single-hop forwarding policy.
	Propagation() Propagation
}

// Event is the base notification payload. Embed it in concrete event
// types; the bus keys subscriptions on the concrete type.
type Event struct {
	At time.Time
}

// NewEvent creates an event stamped with the current time.
func NewEvent() Event {
	return Event{At: time.Now()}
}

// PayloadKind implements Payload.
func (Event) PayloadKind() Kind { return KindEvent }

// Timestamp implements Timestamped.
func (e Event) Timestamp() time.Time { return e.At }

// Message is the base conversation payload. Every message carries a
// unique identity; set NeedsResponse when a response is expected.
type Message struct {
	ID            string
	NeedsResponse bool
	At            time.Time
}

// NewMessage creates a message with a fresh identity.
func NewMessage(needsResponse bool) Message {
	return Message{
		ID:            uuid.NewString(),
		NeedsResponse: needsResponse,
		At:            time.Now(),
	}
}

// PayloadKind implements Payload.
func (Message) PayloadKind() Kind { return KindMessage }

// MessageID implements Addressable.
func (m Message) MessageID() string { return m.ID }

// RequiresResponse implements Addressable.
func (m Message) RequiresResponse() bool { return m.NeedsResponse }

// Timestamp implements Timestamped.
func (m Message) Timestamp() time.Time { return m.At }

// ScopedEvent is an Event that declares a scope and propagation policy.
// Construct it through Guard.NewScopedEvent so publish rights are checked.
type ScopedEvent struct {
	Event
	scope       scope.Scope
	propagation Propagation
}

// PayloadScope implements Scoped.
func (e ScopedEvent) PayloadScope() scope.Scope { return e.scope }

// Propagation implements Scoped.
func (e ScopedEvent) Propagation() Propagation { return e.propagation }

// ScopedMessage is a Message that declares a scope and propagation policy.
// Construct it through Guard.NewScopedMessage so publish rights are checked.
type ScopedMessage struct {
	Message
	scope       scope.Scope
	propagation Propagation
}

// PayloadScope implements Scoped.
func (m ScopedMessage) PayloadScope() scope.Scope { return m.scope }

// Propagation implements Scoped.
func (m ScopedMessage) Propagation() Propagation { return m.propagation }
