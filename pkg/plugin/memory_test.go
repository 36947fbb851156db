package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/memerr"
)

func newTestStore(t *testing.T) store.Storer {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMemoryFacadeStatsRequiresReadOnly(t *testing.T) {
	s := newTestStore(t)
	mem := NewMemory(s, "p1", ReadOnly)
	_, err := mem.Stats("alice")
	require.NoError(t, err)
}

func TestMemoryFacadeStatsCountsEvents(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutEvents([]*store.EventMemory{
		{ID: "e1", RawMemoryID: "r1", Owner: "alice", Action: "drink", Target: "coffee", ExtractorMethod: "rule", ExtractorVer: "v1"},
		{ID: "e2", RawMemoryID: "r1", Owner: "alice", Action: "eat", Target: "apple", ExtractorMethod: "rule", ExtractorVer: "v1"},
	}))
	mem := NewMemory(s, "p1", ReadOnly)
	stats, err := mem.Stats("alice")
	require.NoError(t, err)
	require.Equal(t, 2, stats.EventCount)
}

func TestMemoryFacadeListEntitiesDeniedBelowReadWriteDerived(t *testing.T) {
	s := newTestStore(t)
	mem := NewMemory(s, "p1", ReadOnly)
	_, err := mem.ListEntities("alice")
	require.Error(t, err)
	require.True(t, memerr.Is(err, memerr.KindPermission))
}

func TestMemoryFacadeListEntitiesAllowedAtReadWriteDerived(t *testing.T) {
	s := newTestStore(t)
	mem := NewMemory(s, "p1", ReadWriteDerived)
	entities, err := mem.ListEntities("alice")
	require.NoError(t, err)
	require.Empty(t, entities)
}

func TestMemoryFacadeCreateEventDeniedBelowReadWriteEvents(t *testing.T) {
	s := newTestStore(t)
	mem := NewMemory(s, "p1", ReadWriteDerived)
	err := mem.CreateEvent(&store.EventMemory{ID: "e1", Owner: "alice", Action: "eat", Target: "apple"})
	require.Error(t, err)
	require.True(t, memerr.Is(err, memerr.KindPermission))
}

func TestMemoryFacadeCreateEventAllowedAtReadWriteEvents(t *testing.T) {
	s := newTestStore(t)
	mem := NewMemory(s, "p1", ReadWriteEvents)
	err := mem.CreateEvent(&store.EventMemory{
		ID: "e1", Owner: "alice", Action: "eat", Target: "apple",
		ExtractorMethod: "rule", ExtractorVer: "v1",
	})
	require.NoError(t, err)
}

func TestMemoryFacadeCreateViewDeniedAtReadOnly(t *testing.T) {
	s := newTestStore(t)
	mem := NewMemory(s, "p1", ReadOnly)
	err := mem.CreateView(&store.DerivedView{ID: "v1", Owner: "alice"})
	require.Error(t, err)
}
