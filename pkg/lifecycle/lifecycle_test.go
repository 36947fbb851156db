package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
)

func newTestStore(t *testing.T) store.Storer {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTierForThresholds(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, store.TierHot, cfg.TierFor(now.AddDate(0, -1, 0), now))
	require.Equal(t, store.TierWarm, cfg.TierFor(now.AddDate(0, -4, 0), now))
	require.Equal(t, store.TierCold, cfg.TierFor(now.AddDate(0, -30, 0), now))
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	original := "Hello, memoria! This is a test payload for gzip compression. "
	for i := 0; i < 20; i++ {
		original += original
	}
	compressed, origLen, compLen, err := CompressText(original)
	require.NoError(t, err)
	require.Less(t, compLen, origLen)

	decompressed, err := DecompressText(compressed)
	require.NoError(t, err)
	require.Equal(t, original, decompressed)
}

func TestDecompressTextPassesThroughUncompressed(t *testing.T) {
	out, err := DecompressText("plain text, never compressed")
	require.NoError(t, err)
	require.Equal(t, "plain text, never compressed", out)
}

func TestGenerateSummary(t *testing.T) {
	actor := "user"
	events := []*store.EventMemory{
		{ID: "e1", Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), Actor: &actor, Action: "ate", Target: "apple"},
		{ID: "e2", Timestamp: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC).UnixMilli(), Actor: &actor, Action: "ate", Target: "banana"},
	}
	summary, err := GenerateSummary(events)
	require.NoError(t, err)
	require.Equal(t, 2, summary.EventCount)
	require.Contains(t, summary.TopEntities, "apple")
	require.Contains(t, summary.TopEntities, "user")
}

func TestGenerateSummaryRejectsEmpty(t *testing.T) {
	_, err := GenerateSummary(nil)
	require.Error(t, err)
}

func TestRunArchiveTaskMovesHotToWarmAndWarmToCold(t *testing.T) {
	s := newTestStore(t)
	old := "a fairly old memory about coffee"
	require.NoError(t, s.PutRawMemory(&store.RawMemory{
		ID: "raw1", Owner: "alice", ContentType: store.ContentText,
		Plaintext: &old, CreatedAt: time.Now().AddDate(0, -4, 0).UnixMilli(),
	}))
	veryOld := "an ancient memory"
	require.NoError(t, s.PutRawMemory(&store.RawMemory{
		ID: "raw2", Owner: "alice", ContentType: store.ContentText,
		Plaintext: &veryOld, CreatedAt: time.Now().AddDate(0, -30, 0).UnixMilli(),
	}))
	require.NoError(t, s.SetRawMemoryTier("raw2", store.TierWarm))

	mgr := New(s, DefaultConfig())
	stats, err := mgr.RunArchiveTask("alice")
	require.NoError(t, err)
	require.Equal(t, 2, stats.RawMemoriesArchived)

	got1, err := s.GetRawMemory("raw1")
	require.NoError(t, err)
	require.Equal(t, store.TierWarm, got1.Tier)

	got2, err := s.GetRawMemory("raw2")
	require.NoError(t, err)
	require.Equal(t, store.TierCold, got2.Tier)

	dist, err := mgr.TierDistribution("alice")
	require.NoError(t, err)
	require.Equal(t, 1, dist.Warm)
	require.Equal(t, 1, dist.Cold)
}
