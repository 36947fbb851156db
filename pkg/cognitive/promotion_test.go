package cognitive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoria/internal/store"
)

func baseView(now time.Time) *store.DerivedView {
	return &store.DerivedView{
		ID:              "v1",
		Owner:           "alice",
		Hypothesis:      "经常喝咖啡",
		ViewType:        store.ViewHabit,
		EvidenceCount:   20,
		Confidence:      0.9,
		ValidationCount: 4,
		Status:          store.ViewActive,
		CreatedAt:       now.AddDate(0, 0, -31).UnixMilli(),
		ExpiresAt:       now.AddDate(0, 0, 30).UnixMilli(),
	}
}

func TestPromotableAllConditionsMet(t *testing.T) {
	now := time.Now()
	require.True(t, Promotable(baseView(now), nil, now))
}

func TestPromotableFailsLowConfidence(t *testing.T) {
	now := time.Now()
	v := baseView(now)
	v.Confidence = 0.5
	require.False(t, Promotable(v, nil, now))
}

func TestPromotableFailsTooYoung(t *testing.T) {
	now := time.Now()
	v := baseView(now)
	v.CreatedAt = now.AddDate(0, 0, -5).UnixMilli()
	require.False(t, Promotable(v, nil, now))
}

func TestPromotableFailsHighCounterRatio(t *testing.T) {
	now := time.Now()
	v := baseView(now)
	v.CounterEvidenceCount = 10
	require.False(t, Promotable(v, nil, now))
}

func TestPromotableFailsOnConflictingActiveView(t *testing.T) {
	now := time.Now()
	v := baseView(now)
	conflicting := &store.DerivedView{ID: "v2", Hypothesis: "很少喝咖啡", Status: store.ViewActive}
	require.False(t, Promotable(v, []*store.DerivedView{conflicting}, now))
}

func TestPromotableIgnoresNonConflictingActiveView(t *testing.T) {
	now := time.Now()
	v := baseView(now)
	other := &store.DerivedView{ID: "v2", Hypothesis: "喜欢跑步", Status: store.ViewActive}
	require.True(t, Promotable(v, []*store.DerivedView{other}, now))
}

func TestShouldAutoRejectAboveThreshold(t *testing.T) {
	v := &store.DerivedView{EvidenceCount: 10, CounterEvidenceCount: 3}
	require.True(t, ShouldAutoReject(v))
}

func TestShouldAutoRejectBelowThreshold(t *testing.T) {
	v := &store.DerivedView{EvidenceCount: 10, CounterEvidenceCount: 1}
	require.False(t, ShouldAutoReject(v))
}
