// Package view implements the View Generator: turning a detected
// pattern into a provisional DerivedView hypothesis (§4.7).
package view

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/pattern"
)

// kindMultiplier scales a pattern's base confidence before the
// evidence/span boosts are applied.
var kindMultiplier = map[pattern.Kind]float64{
	pattern.KindHighFrequency: 1.0,
	pattern.KindTrend:         0.9,
	pattern.KindAnomaly:       0.8,
	pattern.KindTemporal:      1.1,
}

// kindToViewType maps a pattern kind to the DerivedView type it
// produces.
var kindToViewType = map[pattern.Kind]store.ViewType{
	pattern.KindHighFrequency: store.ViewHabit,
	pattern.KindTrend:         store.ViewTrend,
	pattern.KindAnomaly:       store.ViewAnomaly,
	pattern.KindTemporal:      store.ViewRoutine,
}

// MinConfidence is the floor below which a pattern does not produce a
// view at all.
const MinConfidence = 0.5

// Generate turns p into a DerivedView, or returns ok=false if its
// scaled confidence does not clear MinConfidence.
func Generate(owner string, p pattern.Detected, now time.Time) (*store.DerivedView, bool) {
	multiplier := kindMultiplier[p.Kind]
	if multiplier == 0 {
		multiplier = 1.0
	}

	confidence := p.Confidence * multiplier
	if p.EvidenceCount > 0 {
		confidence *= 1 + clamp(math.Log(float64(p.EvidenceCount))/20, 0, 0.5)
	}
	if p.TimeSpanDays > 0 {
		confidence *= 1 + clamp(math.Log(float64(p.TimeSpanDays)/30)/10, 0, 0.3)
	}
	confidence = clamp(confidence, 0, 1)

	if confidence < MinConfidence {
		return nil, false
	}

	expiryDays := clamp(30*p.Confidence, 15, 60)
	viewType, ok := kindToViewType[p.Kind]
	if !ok {
		viewType = store.ViewHabit
	}

	v := &store.DerivedView{
		ID:              uuid.NewString(),
		Owner:           owner,
		Hypothesis:      p.Description,
		ViewType:        viewType,
		EvidenceCount:   p.EvidenceCount,
		Confidence:      confidence,
		ValidationCount: 0,
		Status:          store.ViewActive,
		CreatedAt:       now.UnixMilli(),
		ExpiresAt:       now.AddDate(0, 0, int(expiryDays)).UnixMilli(),
		Source:          string(p.Kind),
	}
	return v, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
