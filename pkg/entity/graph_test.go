package entity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
)

func seedGraph(t *testing.T, s store.Storer) {
	t.Helper()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.UpsertEntity(&store.Entity{
			ID: id, Owner: "alice", CanonicalName: id, Type: store.EntityObject,
			Attributes: map[string]store.AttributeValue{},
		}))
	}
	require.NoError(t, s.UpsertRelation(&store.EntityRelation{
		ID: "r1", Owner: "alice", SourceID: "a", TargetID: "b",
		RelationType: RelationRelatedTo, Confidence: 0.8, Strength: 1,
	}))
	require.NoError(t, s.UpsertRelation(&store.EntityRelation{
		ID: "r2", Owner: "alice", SourceID: "b", TargetID: "c",
		RelationType: RelationRelatedTo, Confidence: 0.8, Strength: 1,
	}))
}

func TestNeighborsReturnsBothDirections(t *testing.T) {
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	seedGraph(t, s)

	g := NewGraph(s)
	neighbors, err := g.Neighbors("alice", "b", 0)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
}

func TestShortestPathFindsMultiHopChain(t *testing.T) {
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	seedGraph(t, s)

	g := NewGraph(s)
	path, err := g.ShortestPath("alice", "a", "c")
	require.NoError(t, err)
	require.Len(t, path, 2)
}

func TestShortestPathReturnsNilWhenUnreachable(t *testing.T) {
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	seedGraph(t, s)

	g := NewGraph(s)
	path, err := g.ShortestPath("alice", "a", "d")
	require.NoError(t, err)
	require.Nil(t, path)
}

func TestShortestPathSameEntityIsEmptyPath(t *testing.T) {
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	seedGraph(t, s)

	g := NewGraph(s)
	path, err := g.ShortestPath("alice", "a", "a")
	require.NoError(t, err)
	require.Empty(t, path)
}
