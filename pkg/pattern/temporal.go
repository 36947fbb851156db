package pattern

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/memoria/internal/store"
)

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// mondayIndex maps time.Weekday (Sunday=0) to a Monday-first index.
func mondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// detectTemporal buckets each action/target's occurrences by weekday
// and reports a Temporal pattern for any weekday that recurs in at
// least MinTemporalWeekFrac of the observed weeks (§4.6).
func (d *Detector) detectTemporal(owner string, events []*store.EventMemory, win Window, now int64) []Detected {
	spanDays := int(float64(win.End-win.Start) / float64(24*time.Hour/time.Millisecond))
	spanWeeks := float64(win.End-win.Start) / float64(7*24*time.Hour/time.Millisecond)
	if spanWeeks < 1 {
		spanWeeks = 1
	}

	var out []Detected
	for key, list := range groupByActionTarget(events) {
		if len(list) < 4 {
			continue
		}
		dowCounts := make(map[int]int)
		for _, e := range list {
			wd := mondayIndex(time.UnixMilli(e.Timestamp).UTC().Weekday())
			dowCounts[wd]++
		}
		for dow, count := range dowCounts {
			frac := float64(count) / spanWeeks
			if frac < d.config.MinTemporalWeekFrac {
				continue
			}
			dayName := weekdayNames[dow]
			out = append(out, Detected{
				ID:    uuid.NewString(),
				Owner: owner,
				Kind:  KindTemporal,
				Description: fmt.Sprintf("Weekly pattern: %s %s on %ss (%.0f%% of weeks)",
					key.action, key.target, dayName, frac*100),
				Action:        key.action,
				Target:        key.target,
				Confidence:    clamp01(frac),
				EvidenceCount: count,
				TimeSpanDays:  spanDays,
				DetectedAt:    now,
				Metadata: map[string]any{
					"period":                 "weekly_" + dayName,
					"occurrences_at_period":  count,
					"total_periods_observed": int(math.Ceil(spanWeeks)),
				},
			})
		}
	}
	return out
}
