package pattern

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/memoria/internal/store"
)

// detectTrends compares the chronological first and second half of
// each action/target's occurrences; a frequency change beyond ±30%
// between halves is reported as a Trend pattern.
func (d *Detector) detectTrends(owner string, events []*store.EventMemory, win Window, now int64) []Detected {
	spanDays := int(float64(win.End-win.Start) / float64(24*time.Hour/time.Millisecond))
	if spanDays < d.config.MinTrendDays {
		return nil
	}

	var out []Detected
	for key, list := range groupByActionTarget(events) {
		if len(list) < 3 {
			continue
		}
		mid := len(list) / 2
		firstHalf, secondHalf := list[:mid], list[mid:]

		firstFreq := float64(len(firstHalf)) / durationDays(firstHalf)
		secondFreq := float64(len(secondHalf)) / durationDays(secondHalf)

		var changePct float64
		if firstFreq > 0 {
			changePct = (secondFreq - firstFreq) / firstFreq
		}

		var direction TrendDirection
		switch {
		case changePct > 0.3:
			direction = TrendIncreasing
		case changePct < -0.3:
			direction = TrendDecreasing
		default:
			continue
		}

		confidence := changePct
		if confidence < 0 {
			confidence = -confidence
		}
		if confidence > 1 {
			confidence = 1
		}

		out = append(out, Detected{
			ID:    uuid.NewString(),
			Owner: owner,
			Kind:  KindTrend,
			Description: fmt.Sprintf("%s %s is %s (%.0f%% change)",
				key.action, key.target, direction, absPct(changePct)),
			Action:        key.action,
			Target:        key.target,
			Confidence:    confidence,
			EvidenceCount: len(list),
			TimeSpanDays:  spanDays,
			DetectedAt:    now,
			Metadata: map[string]any{
				"direction":         string(direction),
				"change_percentage": changePct,
				"start_value":       firstFreq,
				"end_value":         secondFreq,
			},
		})
	}
	return out
}

func absPct(changePct float64) float64 {
	if changePct < 0 {
		return -changePct * 100
	}
	return changePct * 100
}

// durationDays returns the span in days between the first and last
// event in a chronologically sorted slice, floored at 1 day so a
// single-day burst still produces a finite frequency.
func durationDays(events []*store.EventMemory) float64 {
	if len(events) < 2 {
		return 1
	}
	span := float64(events[len(events)-1].Timestamp-events[0].Timestamp) / float64(24*time.Hour/time.Millisecond)
	if span < 1 {
		span = 1
	}
	return span
}
