package entity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
)

func newTestResolver(t *testing.T) (*Resolver, store.Storer) {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewResolver(s, NewAttributeExtractor()), s
}

func TestLinkCreatesNewEntityOnFirstMention(t *testing.T) {
	r, _ := newTestResolver(t)
	e, err := r.Link("alice", "苹果", "吃了红色的苹果")
	require.NoError(t, err)
	require.Equal(t, "苹果", e.CanonicalName)
	require.Equal(t, 1, e.OccurrenceCount)
	require.Equal(t, store.EntityObject, e.Type)
}

func TestLinkReinforcesOnExactRepeat(t *testing.T) {
	r, _ := newTestResolver(t)
	_, err := r.Link("alice", "苹果", "吃了苹果")
	require.NoError(t, err)
	e, err := r.Link("alice", "苹果", "又吃了苹果")
	require.NoError(t, err)
	require.Equal(t, 2, e.OccurrenceCount)
}

func TestLinkFuzzyMatchesCloseMisspelling(t *testing.T) {
	r, _ := newTestResolver(t)
	first, err := r.Link("alice", "Apple Inc", "公司新闻")
	require.NoError(t, err)

	second, err := r.Link("alice", "Apple Inc.", "公司新闻")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestLinkSeparatesDistinctOwners(t *testing.T) {
	r, _ := newTestResolver(t)
	a, err := r.Link("alice", "苹果", "吃了苹果")
	require.NoError(t, err)
	b, err := r.Link("bob", "苹果", "吃了苹果")
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	require.Equal(t, Normalize("apple"), Normalize(Normalize("apple")))
	require.Equal(t, "Apple", Normalize(" apple "))
	require.Equal(t, "苹果", Normalize("苹果"))
}

func TestInferTypeOrdersConceptBeforePerson(t *testing.T) {
	require.Equal(t, store.EntityConcept, InferType("这是一个关于人工智能的想法"))
	require.Equal(t, store.EntityPerson, InferType("我的朋友来了"))
	require.Equal(t, store.EntityOrganization, InferType("那家公司的股票涨了"))
	require.Equal(t, store.EntityPlace, InferType("我们去了那个地方"))
	require.Equal(t, store.EntityObject, InferType("随便写点什么"))
}
