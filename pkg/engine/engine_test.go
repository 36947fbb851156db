package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/ingest"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e, err := New(s, nil, nil, DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestIngestLinksEntitiesFromExtractedEvents(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Ingest(ctx, "alice", ingest.Input{
		ContentType: store.ContentText,
		Text:        "I drank coffee with Sam this morning",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.RawMemoryID)
	require.Equal(t, 1, res.LinkedEntities)

	stats, err := e.Stats("alice")
	require.NoError(t, err)
	require.Equal(t, 1, stats.RawMemoryTiers.Hot+stats.RawMemoryTiers.Warm+stats.RawMemoryTiers.Cold)
}

func TestTimelineReturnsIngestedEvents(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Ingest(ctx, "alice", ingest.Input{
		ContentType: store.ContentText, Text: "I ate an apple", Timestamp: 5000,
	})
	require.NoError(t, err)

	events, err := e.Timeline("alice", 0, 10000)
	require.NoError(t, err)
	require.NotEmpty(t, events)
}

func TestQueryRoutesToDefaultPlugin(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Query(context.Background(), "alice", "alice", "hello there")
	require.Error(t, err) // no plugin installed, so the default plugin lookup fails
}

func TestStatsReportsEmptyOwnerCleanly(t *testing.T) {
	e := newTestEngine(t)
	stats, err := e.Stats("nobody")
	require.NoError(t, err)
	require.Equal(t, 0, stats.RawMemoryTiers.Total)
	require.Equal(t, 0, stats.ActiveViews)
}

func TestArchiveTierIsSafeWithNoData(t *testing.T) {
	e := newTestEngine(t)
	stats, err := e.ArchiveTier("alice")
	require.NoError(t, err)
	require.Equal(t, 0, stats.RawMemoriesArchived)
}

func TestExportRoundTripsThroughEngine(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Ingest(context.Background(), "alice", ingest.Input{
		ContentType: store.ContentText, Text: "I read a book",
	})
	require.NoError(t, err)

	export, err := e.Export("alice")
	require.NoError(t, err)
	require.Equal(t, "alice", export.Owner)
	require.NotEmpty(t, export.RawMemories)
}

func TestCanonicalNameForViewDistinguishesCJKHypotheses(t *testing.T) {
	coffee := &store.DerivedView{ID: "v1", Hypothesis: "Frequently 喝 咖啡 (1.00 times/day)"}
	eating := &store.DerivedView{ID: "v2", Hypothesis: "Frequently 吃 苹果 (1.00 times/day)"}
	require.NotEqual(t, canonicalNameForView(coffee), canonicalNameForView(eating))
}

func TestCanonicalNameForViewStableForSameHypothesis(t *testing.T) {
	v1 := &store.DerivedView{ID: "v1", Hypothesis: "经常喝咖啡"}
	v2 := &store.DerivedView{ID: "v2", Hypothesis: "经常喝咖啡"}
	require.Equal(t, canonicalNameForView(v1), canonicalNameForView(v2))
}
