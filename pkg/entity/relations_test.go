package entity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
)

func TestExtractRelationsBelongsToPattern(t *testing.T) {
	rels := ExtractRelations("苹果属于水果", "苹果", "水果")
	require.Len(t, rels, 1)
	require.Equal(t, RelationBelongsTo, rels[0].RelationType)
	require.InDelta(t, 0.9, rels[0].Confidence, 1e-9)
}

func TestExtractRelationsFallsBackToRelatedTo(t *testing.T) {
	rels := ExtractRelations("张三昨天去了北京", "张三", "北京")
	require.Len(t, rels, 1)
	require.Equal(t, RelationRelatedTo, rels[0].RelationType)
}

func TestExtractRelationsNoneWhenMentionsAbsent(t *testing.T) {
	rels := ExtractRelations("随便的句子", "张三", "北京")
	require.Empty(t, rels)
}

func TestCanonicalRelationTypeMapsChineseAlias(t *testing.T) {
	require.Equal(t, RelationBelongsTo, CanonicalRelationType("属于"))
	require.Equal(t, "custom_thing", CanonicalRelationType("custom_thing"))
}

func newTestLinker(t *testing.T) (*RelationLinker, store.Storer) {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewRelationLinker(s), s
}

func TestLinkerCreatesRelationOnFirstObservation(t *testing.T) {
	l, _ := newTestLinker(t)
	rel, err := l.Link("alice", "e1", "e2", "属于", 0.9)
	require.NoError(t, err)
	require.Equal(t, RelationBelongsTo, rel.RelationType)
	require.Equal(t, 1.0, rel.Strength)
}

func TestLinkerGrowsStrengthAndAveragesConfidence(t *testing.T) {
	l, _ := newTestLinker(t)
	_, err := l.Link("alice", "e1", "e2", RelationBelongsTo, 0.9)
	require.NoError(t, err)
	rel, err := l.Link("alice", "e1", "e2", RelationBelongsTo, 0.5)
	require.NoError(t, err)

	require.Equal(t, 2.0, rel.Strength)
	require.InDelta(t, (0.9*1.0+0.5)/2.0, rel.Confidence, 1e-9)
}
