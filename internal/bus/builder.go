package bus

import (
	"errors"
	"log/slog"
	"reflect"

	"github.com/kestrelworks/relay/internal/payload"
	"github.com/kestrelworks/relay/internal/scope"
)

// ErrNoSink is returned by Build when async dispatch is enabled without a
// task sink.
var ErrNoSink = errors.New("async dispatch requires a task sink")

// Builder assembles a bus configuration and materializes it at Build.
// It holds pure data; no runtime logic runs before Build.
type Builder struct {
	name          string
	kind          payload.Kind
	scope         scope.Scope
	parent        *Engine
	prioritized   bool
	async         bool
	failUnhandled bool
	logger        *slog.Logger
	sink          TaskSink
}

// NewBuilder starts a builder for a bus of the given kind.
func NewBuilder(kind payload.Kind) *Builder {
	return &Builder{kind: kind}
}

// Name sets the bus name used in diagnostics and error context.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// InScope assigns the bus to a scope.
func (b *Builder) InScope(s scope.Scope) *Builder {
	b.scope = s
	return b
}

// LinkParent sets the parent bus of the same kind.
func (b *Builder) LinkParent(parent *Engine) *Builder {
	b.parent = parent
	return b
}

// WithPriorities enables priority-ordered delivery.
func (b *Builder) WithPriorities() *Builder {
	b.prioritized = true
	return b
}

// WithAsyncDispatch hands delivery work to sink instead of delivering on
// the publisher's goroutine.
func (b *Builder) WithAsyncDispatch(sink TaskSink) *Builder {
	b.async = true
	b.sink = sink
	return b
}

// WithAdvancedLogging reports swallowed dispatch failures through logger,
// with payload-type and bus-name context.
func (b *Builder) WithAdvancedLogging(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// FailOnUnhandled makes a synchronous publish of a payload nobody handles
// return an error instead of silently incrementing the dropped counter.
func (b *Builder) FailOnUnhandled() *Builder {
	b.failUnhandled = true
	return b
}

// Build materializes the bus. The parent link, if any, is fixed for the
// bus's lifetime.
func (b *Builder) Build() (*Engine, error) {
	if b.async && b.sink == nil {
		return nil, ErrNoSink
	}
	if b.parent != nil && b.parent.kind != b.kind {
		return nil, ErrWrongKind
	}

	name := b.name
	if name == "" {
		name = b.kind.String()
		if !b.scope.IsZero() {
			name = b.scope.Path() + "/" + name
		}
	}

	e := &Engine{
		name:          name,
		kind:          b.kind,
		scope:         b.scope,
		parent:        b.parent,
		prioritized:   b.prioritized,
		async:         b.async,
		failUnhandled: b.failUnhandled,
		logger:        b.logger,
		sink:          b.sink,
		subs:          make(map[reflect.Type][]*entry),
		pending:       make(map[string]*pendingResponse),
	}
	if b.parent != nil {
		b.parent.adoptChild(e)
	}
	return e, nil
}
