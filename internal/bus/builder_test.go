package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/relay/internal/payload"
	"github.com/kestrelworks/relay/internal/scope"
)

func TestBuilder_Defaults(t *testing.T) {
	eng, err := NewBuilder(payload.KindEvent).Build()
	require.NoError(t, err)

	assert.Equal(t, payload.KindEvent, eng.Kind())
	assert.Equal(t, "event", eng.Name())
	assert.True(t, eng.Scope().IsZero())
	assert.Nil(t, eng.Parent())
	assert.Empty(t, eng.Children())
}

func TestBuilder_DerivedName(t *testing.T) {
	tree := scope.NewTree()
	eng, err := NewBuilder(payload.KindMessage).InScope(tree.Core()).Build()
	require.NoError(t, err)
	assert.Equal(t, "root.core/message", eng.Name())

	named, err := NewBuilder(payload.KindMessage).Name("custom").InScope(tree.Core()).Build()
	require.NoError(t, err)
	assert.Equal(t, "custom", named.Name())
}

func TestBuilder_ParentLinkage(t *testing.T) {
	tree := scope.NewTree()

	parent, err := NewBuilder(payload.KindEvent).InScope(tree.Root()).Build()
	require.NoError(t, err)
	child, err := NewBuilder(payload.KindEvent).InScope(tree.Core()).LinkParent(parent).Build()
	require.NoError(t, err)

	assert.Equal(t, parent, child.Parent())
	assert.Equal(t, []*Engine{child}, parent.Children())
}

func TestBuilder_ParentKindMismatch(t *testing.T) {
	parent, err := NewBuilder(payload.KindEvent).Build()
	require.NoError(t, err)

	_, err = NewBuilder(payload.KindMessage).LinkParent(parent).Build()
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestBuilder_AsyncRequiresSink(t *testing.T) {
	_, err := NewBuilder(payload.KindEvent).WithAsyncDispatch(nil).Build()
	assert.ErrorIs(t, err, ErrNoSink)
}
