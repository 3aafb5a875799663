package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/relay/internal/access"
	"github.com/kestrelworks/relay/internal/bus"
	"github.com/kestrelworks/relay/internal/payload"
	"github.com/kestrelworks/relay/internal/scope"
	"github.com/kestrelworks/relay/internal/sched"
)

type heartbeat struct {
	payload.Event
}

func newRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r, err := New(scope.NewTree(), access.NewRegistry(), opts...)
	require.NoError(t, err)
	return r
}

func TestNew_InitializesWellKnownScopes(t *testing.T) {
	r := newRegistry(t)

	for _, kind := range []payload.Kind{payload.KindEvent, payload.KindMessage} {
		stats := r.Snapshot(kind)
		require.Len(t, stats, 4, "one %s bus per well-known scope", kind)
	}
}

func TestRegistry_OneBusPerKindAndScope(t *testing.T) {
	r := newRegistry(t)
	tree := r.Tree()
	require.NoError(t, r.Access().Register("svc", tree.Core(), access.ReadWrite))

	a, err := r.GetBus(payload.KindEvent, tree.Core(), "svc")
	require.NoError(t, err)
	b, err := r.GetBus(payload.KindEvent, tree.Core(), "svc")
	require.NoError(t, err)
	m, err := r.GetBus(payload.KindMessage, tree.Core(), "svc")
	require.NoError(t, err)

	assert.Same(t, a, b, "repeated acquisition returns the same instance")
	assert.NotSame(t, a, m, "kinds get distinct buses")
	assert.Equal(t, payload.KindMessage, m.Kind())
}

func TestRegistry_ParentLinksMirrorScopeTree(t *testing.T) {
	r := newRegistry(t)
	tree := r.Tree()
	require.NoError(t, r.Access().Register("svc", tree.Runtime(), access.ReadWrite))

	leaf, err := r.GetBus(payload.KindEvent, tree.Runtime(), "svc")
	require.NoError(t, err)
	mid, err := r.GetBus(payload.KindEvent, tree.Core(), "svc")
	require.NoError(t, err)
	root, err := r.GetBus(payload.KindEvent, tree.Root(), "svc")
	require.NoError(t, err)

	assert.Equal(t, mid, leaf.Parent())
	assert.Equal(t, root, mid.Parent())
	assert.Nil(t, root.Parent(), "root scope has no parent bus")
	assert.Contains(t, mid.Children(), leaf)
}

func TestRegistry_GetBus_Unauthorized(t *testing.T) {
	r := newRegistry(t)
	tree := r.Tree()

	_, err := r.GetBus(payload.KindEvent, tree.Core(), "stranger")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegistry_GetBus_AncestorReadOnlyGrantsAcquisition(t *testing.T) {
	r := newRegistry(t)
	tree := r.Tree()
	require.NoError(t, r.Access().Register("svc", tree.Runtime(), access.ReadWrite))

	// The backfill gave ReadOnly on core and root; acquisition succeeds.
	_, err := r.GetBus(payload.KindEvent, tree.Core(), "svc")
	assert.NoError(t, err)
	_, err = r.GetBus(payload.KindEvent, tree.Root(), "svc")
	assert.NoError(t, err)

	// Siblings got nothing.
	_, err = r.GetBus(payload.KindEvent, tree.UI(), "svc")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegistry_CreateScope(t *testing.T) {
	r := newRegistry(t)
	tree := r.Tree()

	s, err := r.CreateScope("plugins", tree.Core(), "loader")
	require.NoError(t, err)
	assert.Equal(t, "root.core.plugins", s.Path())
	assert.Equal(t, access.ReadWrite, r.Access().LevelFor("loader", s))

	eng, err := r.GetBus(payload.KindMessage, s, "loader")
	require.NoError(t, err)

	parent, err := r.GetBus(payload.KindMessage, tree.Core(), "loader")
	require.NoError(t, err)
	assert.Equal(t, parent, eng.Parent())
}

func TestRegistry_CreateScope_Validation(t *testing.T) {
	r := newRegistry(t)
	tree := r.Tree()

	_, err := r.CreateScope("", tree.Core(), "loader")
	assert.ErrorIs(t, err, scope.ErrEmptyName)

	_, err = r.CreateScope("x", scope.Scope{}, "loader")
	assert.ErrorIs(t, err, scope.ErrInvalidParent)

	_, err = r.CreateScope("x", tree.Core(), "")
	assert.ErrorIs(t, err, access.ErrEmptyIdentity)
}

func TestRegistry_LazyInitForExternallyCreatedScope(t *testing.T) {
	r := newRegistry(t)
	tree := r.Tree()

	s, err := tree.NewScope("late", tree.UI())
	require.NoError(t, err)
	require.NoError(t, r.Access().Register("svc", s, access.ReadWrite))

	eng, err := r.GetBus(payload.KindEvent, s, "svc")
	require.NoError(t, err)
	require.NotNil(t, eng.Parent())
	assert.Equal(t, tree.UI(), eng.Parent().Scope())
}

func TestRegistry_OptionsShapeBuses(t *testing.T) {
	loop := sched.NewLoop()
	r := newRegistry(t, WithPriorities(), WithAsyncDispatch(loop))
	tree := r.Tree()
	require.NoError(t, r.Access().Register("svc", tree.Core(), access.ReadWrite))

	eng, err := r.GetBus(payload.KindEvent, tree.Core(), "svc")
	require.NoError(t, err)

	var order []int
	require.NoError(t, eng.SubscribeFunc(bus.TypeOf[heartbeat](), func(context.Context, payload.Payload) error {
		order = append(order, 1)
		return nil
	}, bus.WithPriority(1)))
	require.NoError(t, eng.SubscribeFunc(bus.TypeOf[heartbeat](), func(context.Context, payload.Payload) error {
		order = append(order, 2)
		return nil
	}, bus.WithPriority(2)))

	require.NoError(t, eng.Publish(context.Background(), heartbeat{Event: payload.NewEvent()}))
	assert.Empty(t, order, "async bus delivers on drain")

	loop.Drain()
	assert.Equal(t, []int{2, 1}, order, "priority support is on")
}

func TestRegistry_SnapshotAggregates(t *testing.T) {
	r := newRegistry(t)
	tree := r.Tree()
	require.NoError(t, r.Access().Register("svc", tree.Core(), access.ReadWrite))

	eng, err := r.GetBus(payload.KindEvent, tree.Core(), "svc")
	require.NoError(t, err)
	require.NoError(t, eng.SubscribeFunc(bus.TypeOf[heartbeat](), func(context.Context, payload.Payload) error {
		return nil
	}))
	require.NoError(t, eng.Publish(context.Background(), heartbeat{Event: payload.NewEvent()}))

	stats := r.Snapshot(payload.KindEvent)
	require.Len(t, stats, 4)

	var coreStats *bus.Stats
	for i := range stats {
		if stats[i].Scope == tree.Core() {
			coreStats = &stats[i]
		}
	}
	require.NotNil(t, coreStats)
	assert.Equal(t, uint64(1), coreStats.Published)
	assert.Equal(t, uint64(1), coreStats.Delivered)
}

func TestRegistry_EndToEndRequestAcrossRegistry(t *testing.T) {
	r := newRegistry(t)
	tree := r.Tree()
	require.NoError(t, r.Access().Register("svc", tree.Core(), access.ReadWrite))

	eng, err := r.GetBus(payload.KindMessage, tree.Core(), "svc")
	require.NoError(t, err)

	type query struct {
		payload.Message
	}
	require.NoError(t, eng.SubscribeFunc(bus.TypeOf[query](), func(_ context.Context, p payload.Payload) error {
		eng.Respond(p, "ack")
		return nil
	}))

	reply, err := eng.Request(context.Background(), query{Message: payload.NewMessage(true)}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ack", reply)
}
