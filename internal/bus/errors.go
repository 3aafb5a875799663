package bus

import (
	"errors"
	"fmt"
)

// Sentinel errors for the bus engine.
var (
	// ErrNilHandler is returned when a nil handler is subscribed.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilType is returned when a nil payload type is used.
	ErrNilType = errors.New("payload type cannot be nil")

	// ErrWrongKind is returned when a payload of the wrong kind is
	// published on this bus.
	ErrWrongKind = errors.New("payload kind does not match bus kind")

	// ErrNotRequestable is returned when Request is called with a payload
	// that is not addressable or does not require a response.
	ErrNotRequestable = errors.New("payload does not require a response")

	// ErrNoResponders is returned when Request is called with no live
	// subscriber for the payload type.
	ErrNoResponders = errors.New("no live subscriber for payload type")

	// ErrRequestInFlight is returned when a request reuses the message
	// identity of a request still awaiting settlement.
	ErrRequestInFlight = errors.New("request with this message identity is already pending")

	// ErrUnhandled matches UnhandledError values via errors.Is.
	ErrUnhandled = errors.New("payload was not handled")

	// ErrRequestTimeout matches RequestTimeoutError values via errors.Is.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrHandlerPanic matches HandlerPanicError values via errors.Is.
	ErrHandlerPanic = errors.New("handler panicked")
)

// UnhandledError is returned by a synchronous publish on a fail-fast bus
// when no subscriber successfully handled the payload.
type UnhandledError struct {
	// Bus is the name of the bus the payload was published on.
	Bus string

	// PayloadType is the type tag of the unhandled payload.
	PayloadType string
}

// Error implements the error interface.
func (e *UnhandledError) Error() string {
	return fmt.Sprintf("no subscriber handled %s on bus %s", e.PayloadType, e.Bus)
}

// Is allows errors.Is to match UnhandledError with ErrUnhandled.
func (e *UnhandledError) Is(target error) bool { return target == ErrUnhandled }

// RequestTimeoutError is returned when a request sees no settlement within
// its timeout.
type RequestTimeoutError struct {
	// MessageID is the identity of the request that timed out.
	MessageID string
}

// Error implements the error interface.
func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("request %s timed out awaiting response", e.MessageID)
}

// Is allows errors.Is to match RequestTimeoutError with ErrRequestTimeout.
func (e *RequestTimeoutError) Is(target error) bool { return target == ErrRequestTimeout }

// HandlerPanicError wraps a panic raised by subscriber code.
type HandlerPanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace captured at recovery.
	Stack []byte
}

// Error implements the error interface.
func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

// Is allows errors.Is to match HandlerPanicError with ErrHandlerPanic.
func (e *HandlerPanicError) Is(target error) bool { return target == ErrHandlerPanic }
