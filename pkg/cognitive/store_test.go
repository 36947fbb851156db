package cognitive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/memerr"
)

func newTestStore(t *testing.T) (*Store, store.Storer) {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestTryPromoteCreatesVersionOneConcept(t *testing.T) {
	c, raw := newTestStore(t)
	now := time.Now()

	view := baseView(now)
	require.NoError(t, raw.CreateView(view))

	concept, err := c.TryPromote("alice", "coffee_habit", view, now)
	require.NoError(t, err)
	require.NotNil(t, concept)
	require.Equal(t, 1, concept.Version)
	require.Nil(t, concept.ParentConceptID)

	updated, err := raw.GetView(view.ID)
	require.NoError(t, err)
	require.Equal(t, store.ViewPromoted, updated.Status)
	require.NotNil(t, updated.PromotedTo)
	require.Equal(t, concept.ID, *updated.PromotedTo)
}

func TestTryPromoteReturnsNilWhenGateFails(t *testing.T) {
	c, raw := newTestStore(t)
	now := time.Now()

	view := baseView(now)
	view.Confidence = 0.1
	require.NoError(t, raw.CreateView(view))

	concept, err := c.TryPromote("alice", "coffee_habit", view, now)
	require.NoError(t, err)
	require.Nil(t, concept)
}

func TestTryPromoteCreatesNewVersionAndDeprecatesPrevious(t *testing.T) {
	c, raw := newTestStore(t)
	now := time.Now()

	first := baseView(now)
	first.ID = "v1"
	require.NoError(t, raw.CreateView(first))
	firstConcept, err := c.TryPromote("alice", "coffee_habit", first, now)
	require.NoError(t, err)
	require.Equal(t, 1, firstConcept.Version)

	second := baseView(now)
	second.ID = "v2"
	require.NoError(t, raw.CreateView(second))
	secondConcept, err := c.TryPromote("alice", "coffee_habit", second, now)
	require.NoError(t, err)
	require.Equal(t, 2, secondConcept.Version)
	require.NotNil(t, secondConcept.ParentConceptID)
	require.Equal(t, firstConcept.ID, *secondConcept.ParentConceptID)

	deprecated, err := raw.GetConcept(firstConcept.ID)
	require.NoError(t, err)
	require.True(t, deprecated.IsDeprecated)
}

func TestEvaluateExpiryRejectsOnHighCounterRatio(t *testing.T) {
	c, raw := newTestStore(t)
	now := time.Now()
	view := baseView(now)
	view.CounterEvidenceCount = 10
	require.NoError(t, raw.CreateView(view))

	changed, err := c.EvaluateExpiry(view, now)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, store.ViewRejected, view.Status)
}

func TestEvaluateExpiryExpiresPastDeadline(t *testing.T) {
	c, raw := newTestStore(t)
	now := time.Now()
	view := baseView(now)
	view.ExpiresAt = now.AddDate(0, 0, -1).UnixMilli()
	require.NoError(t, raw.CreateView(view))

	changed, err := c.EvaluateExpiry(view, now)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, store.ViewExpired, view.Status)
}

func TestReadConceptTouchesAccess(t *testing.T) {
	c, raw := newTestStore(t)
	now := time.Now()
	view := baseView(now)
	require.NoError(t, raw.CreateView(view))
	concept, err := c.TryPromote("alice", "coffee_habit", view, now)
	require.NoError(t, err)
	require.Equal(t, 0, concept.AccessCount)

	later := now.Add(time.Hour)
	read, err := c.ReadConcept("alice", "coffee_habit", later)
	require.NoError(t, err)
	require.Equal(t, concept.ID, read.ID)

	reloaded, err := raw.GetConcept(concept.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.AccessCount)
}

func TestReadConceptReturnsNotFoundForMissingConcept(t *testing.T) {
	c, _ := newTestStore(t)
	_, err := c.ReadConcept("alice", "no_such_concept", time.Now())
	require.Error(t, err)
	require.True(t, memerr.Is(err, memerr.KindNotFound))
}
