package pattern

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/memoria/internal/store"
)

// detectAnomalies compares the current window's per-day frequency
// against a prior baseline window of AnomalyBaselineDays. Both
// significant increases/decreases and things that stopped entirely
// ("stopped" sub-case) are reported (§4.6).
func (d *Detector) detectAnomalies(owner string, events []*store.EventMemory, win Window, now int64) ([]Detected, error) {
	dayMillis := int64(24 * time.Hour / time.Millisecond)
	baselineStart := win.Start - int64(d.config.AnomalyBaselineDays)*dayMillis
	baselineEnd := win.Start

	baselineEvents, err := d.store.ListEventsInWindow(owner, baselineStart, baselineEnd)
	if err != nil {
		return nil, err
	}

	baselineDuration := float64(baselineEnd-baselineStart) / float64(dayMillis)
	if baselineDuration < 1 {
		baselineDuration = 1
	}
	currentDuration := windowDays(win)

	baselineFreq := make(map[actionKey]float64)
	for key, list := range groupByActionTarget(baselineEvents) {
		baselineFreq[key] = float64(len(list)) / baselineDuration
	}
	currentFreq := make(map[actionKey]float64)
	for key, list := range groupByActionTarget(events) {
		currentFreq[key] = float64(len(list)) / currentDuration
	}
	currentCounts := groupByActionTarget(events)

	var out []Detected
	for key, actual := range currentFreq {
		expected := baselineFreq[key]
		if expected < 0.1 {
			continue
		}
		deviation := (actual - expected) / expected
		if absFloat(deviation) < d.config.MinAnomalyDeviation {
			continue
		}
		direction := "higher than"
		if deviation < 0 {
			direction = "lower than"
		}
		out = append(out, Detected{
			ID:    uuid.NewString(),
			Owner: owner,
			Kind:  KindAnomaly,
			Description: fmt.Sprintf("Anomaly: %s %s is %.0f%% %s expected",
				key.action, key.target, absFloat(deviation)*100, direction),
			Action:        key.action,
			Target:        key.target,
			Confidence:    clamp01(absFloat(deviation)),
			EvidenceCount: len(currentCounts[key]),
			TimeSpanDays:  int(currentDuration),
			DetectedAt:    now,
			Metadata: map[string]any{
				"expected_value":       expected,
				"actual_value":         actual,
				"deviation_percentage": deviation,
				"baseline_window_days": d.config.AnomalyBaselineDays,
			},
		})
	}

	// "Stopped" sub-case: a baseline habit that dropped out of the
	// current window entirely. Keys still present in the current window
	// are not reported here, however far below their expected rate.
	for key, expected := range baselineFreq {
		if expected < d.config.MinFrequencyThreshold {
			continue
		}
		actual := currentFreq[key]
		if actual >= expected*(1-d.config.MinAnomalyDeviation) {
			continue
		}
		if _, alreadyReported := currentFreq[key]; alreadyReported {
			continue
		}
		deviation := (actual - expected) / expected
		out = append(out, Detected{
			ID:    uuid.NewString(),
			Owner: owner,
			Kind:  KindAnomaly,
			Description: fmt.Sprintf("Anomaly: %s %s stopped (was %.2f/day, now %.2f/day)",
				key.action, key.target, expected, actual),
			Action:        key.action,
			Target:        key.target,
			Confidence:    clamp01(absFloat(deviation)),
			EvidenceCount: 0,
			TimeSpanDays:  int(currentDuration),
			DetectedAt:    now,
			Metadata: map[string]any{
				"expected_value":       expected,
				"actual_value":         actual,
				"deviation_percentage": deviation,
				"baseline_window_days": d.config.AnomalyBaselineDays,
			},
		})
	}

	return out, nil
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func clamp01(f float64) float64 {
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}
