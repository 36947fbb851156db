package pattern

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
)

func newTestDetector(t *testing.T) (*Detector, store.Storer) {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewDetector(s, DefaultConfig()), s
}

const dayMillis = int64(24 * time.Hour / time.Millisecond)

func seedDailyEvents(t *testing.T, s store.Storer, owner, action, target string, days int, baseTs int64) {
	t.Helper()
	events := make([]*store.EventMemory, 0, days)
	for i := 0; i < days; i++ {
		events = append(events, &store.EventMemory{
			ID:              fmt.Sprintf("%s-%s-%s-%d", owner, action, target, i),
			RawMemoryID:     "raw",
			Owner:           owner,
			Timestamp:       baseTs + int64(i)*dayMillis,
			Action:          action,
			Target:          target,
			Confidence:      0.9,
			ExtractorMethod: "rule",
			ExtractorVer:    "v1",
		})
	}
	require.NoError(t, s.PutEvents(events))
}

func TestDetectHighFrequencyRequiresDailyConsistency(t *testing.T) {
	d, s := newTestDetector(t)
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC).UnixMilli()
	seedDailyEvents(t, s, "alice", "喝", "咖啡", 14, base)

	win := Window{Start: base, End: base + 14*dayMillis}
	result, err := d.Detect("alice", win)
	require.NoError(t, err)

	found := false
	for _, p := range result.Patterns {
		if p.Kind == KindHighFrequency && p.Action == "喝" && p.Target == "咖啡" {
			found = true
		}
	}
	require.True(t, found)
}

func TestDetectTrendsNeedsMinimumSpan(t *testing.T) {
	d, s := newTestDetector(t)
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC).UnixMilli()
	seedDailyEvents(t, s, "alice", "跑步", "公园", 3, base)

	win := Window{Start: base, End: base + 2*dayMillis}
	result, err := d.Detect("alice", win)
	require.NoError(t, err)
	for _, p := range result.Patterns {
		require.NotEqual(t, KindTrend, p.Kind)
	}
}

func TestDetectAnomalyStoppedHabit(t *testing.T) {
	d, s := newTestDetector(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).UnixMilli()
	baselineStart := now - 30*dayMillis
	seedDailyEvents(t, s, "alice", "吃", "早餐", 30, baselineStart)

	win := Window{Start: now, End: now + 7*dayMillis}
	result, err := d.Detect("alice", win)
	require.NoError(t, err)

	found := false
	for _, p := range result.Patterns {
		if p.Kind == KindAnomaly && p.Action == "吃" && p.Target == "早餐" {
			found = true
			require.Equal(t, 0, p.EvidenceCount)
		}
	}
	require.True(t, found)
}

func TestConsistencyScorePerfectlyRegular(t *testing.T) {
	events := []*store.EventMemory{
		{Timestamp: 0}, {Timestamp: dayMillis}, {Timestamp: 2 * dayMillis},
	}
	require.InDelta(t, 1.0, consistencyScore(events), 1e-9)
}

func TestConsistencyScoreTooFewEvents(t *testing.T) {
	require.Equal(t, 0.0, consistencyScore([]*store.EventMemory{{Timestamp: 0}}))
}
