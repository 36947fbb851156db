// Package cognitive implements the cognitive store wrapper around
// DerivedView/StableConcept persistence, the Promotion Gate boolean
// function, and concept versioning (§4.5).
package cognitive

import (
	"strings"
	"time"

	"github.com/kittclouds/memoria/internal/store"
)

const (
	minPromotionConfidence = 0.85
	minValidationCount     = 3
	minAgeDays             = 30
	autoRejectCounterRatio = 0.30
	maxCounterRatio        = 0.15
)

// sentimentOpposites pairs hypothesis-level sentiment words that make
// two otherwise-similar hypotheses conflict rather than corroborate.
var sentimentOpposites = [][2]string{
	{"喜欢", "讨厌"},
	{"经常", "很少"},
	{"总是", "从不"},
	{"爱", "恨"},
	{"习惯", "讨厌"},
}

// Promotable reports whether view clears every Promotion Gate
// condition, given the other active views for the same owner (used
// for the sentiment-conflict check) and the current time.
func Promotable(view *store.DerivedView, activeViews []*store.DerivedView, now time.Time) bool {
	if view.Status != store.ViewActive {
		return false
	}
	if view.Confidence <= minPromotionConfidence {
		return false
	}
	if view.ValidationCount < minValidationCount {
		return false
	}
	ageDays := now.Sub(time.UnixMilli(view.CreatedAt)).Hours() / 24
	if ageDays < minAgeDays {
		return false
	}
	if counterRatio(view) >= maxCounterRatio {
		return false
	}
	for _, other := range activeViews {
		if other.ID == view.ID {
			continue
		}
		if conflicts(view.Hypothesis, other.Hypothesis) {
			return false
		}
	}
	return true
}

// counterRatio is counter_evidence_count / max(evidence_count, 1).
func counterRatio(view *store.DerivedView) float64 {
	evidence := view.EvidenceCount
	if evidence < 1 {
		evidence = 1
	}
	return float64(view.CounterEvidenceCount) / float64(evidence)
}

// ShouldAutoReject reports whether view's counter-evidence ratio alone
// is high enough to reject it without waiting on the other gate
// conditions.
func ShouldAutoReject(view *store.DerivedView) bool {
	return counterRatio(view) >= autoRejectCounterRatio
}

// conflicts applies the lexical sentiment-opposite check: two
// hypotheses conflict if they share a non-sentiment token and each
// carries one side of a known sentiment-opposite pair.
func conflicts(a, b string) bool {
	for _, pair := range sentimentOpposites {
		aHas0, aHas1 := strings.Contains(a, pair[0]), strings.Contains(a, pair[1])
		bHas0, bHas1 := strings.Contains(b, pair[0]), strings.Contains(b, pair[1])
		opposed := (aHas0 && bHas1) || (aHas1 && bHas0)
		if !opposed {
			continue
		}
		if shareNonSentimentToken(a, b, pair) {
			return true
		}
	}
	return false
}

// shareNonSentimentToken reports whether a and b, with the sentiment
// words in pair removed, still share a 2-rune (bigram) substring — a
// cheap stand-in for "about the same subject" that works for both
// space-delimited and CJK text.
func shareNonSentimentToken(a, b string, pair [2]string) bool {
	strip := func(s string) string {
		s = strings.ReplaceAll(s, pair[0], "")
		return strings.ReplaceAll(s, pair[1], "")
	}
	aRunes := []rune(strip(a))
	bStripped := strip(b)
	if len(aRunes) < 2 {
		return false
	}
	for i := 0; i+1 < len(aRunes); i++ {
		if strings.Contains(bStripped, string(aRunes[i:i+2])) {
			return true
		}
	}
	return false
}
