// Package pattern implements the Pattern Detection Engine: statistical
// analysis over event memories surfacing high-frequency behavior,
// trends, anomalies, and weekly temporal patterns (§4.6).
package pattern

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/memoria/internal/store"
)

// Kind classifies a DetectedPattern.
type Kind string

const (
	KindHighFrequency Kind = "high_frequency"
	KindTrend         Kind = "trend"
	KindAnomaly       Kind = "anomaly"
	KindTemporal      Kind = "temporal"
)

// TrendDirection describes which way a Trend pattern is moving.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
)

// Detected is one pattern surfaced by a detector pass, ready to be
// handed to the View Generator.
type Detected struct {
	ID            string
	Owner         string
	Kind          Kind
	Description   string
	Action        string
	Target        string
	Confidence    float64
	EvidenceCount int
	TimeSpanDays  int
	DetectedAt    int64
	Metadata      map[string]any
}

// Config tunes detection thresholds. Defaults mirror the reference
// implementation's V1 statistics-only engine.
type Config struct {
	MinFrequencyThreshold float64 // occurrences/day for high-frequency, §4.6
	MinConfidence         float64
	MinTrendDays          int
	MinAnomalyDeviation   float64 // fractional deviation, e.g. 0.5 = 50%
	AnomalyBaselineDays   int
	MinTemporalWeekFrac   float64 // fraction of weeks a weekday must recur
}

// DefaultConfig returns the tuning used across the reference system.
func DefaultConfig() Config {
	return Config{
		MinFrequencyThreshold: 0.5,
		MinConfidence:         0.6,
		MinTrendDays:          7,
		MinAnomalyDeviation:   0.5,
		AnomalyBaselineDays:   30,
		MinTemporalWeekFrac:   0.6,
	}
}

// Window bounds one detection pass in UTC unix millis.
type Window struct {
	Start int64
	End   int64
}

// LastNDays returns a Window spanning [now-n days, now].
func LastNDays(now time.Time, days int) Window {
	end := now.UnixMilli()
	start := now.AddDate(0, 0, -days).UnixMilli()
	return Window{Start: start, End: end}
}

// actionKey groups events by their (action, target) pair, the unit
// every detector in this package reasons about.
type actionKey struct {
	action string
	target string
}

// Detector runs all four pattern families over one owner's events.
type Detector struct {
	store  store.Storer
	config Config
}

// NewDetector builds a Detector with the given config.
func NewDetector(s store.Storer, cfg Config) *Detector {
	return &Detector{store: s, config: cfg}
}

// Result bundles everything one detection pass produced.
type Result struct {
	Patterns       []Detected
	EventsAnalyzed int
	Window         Window
	DetectedAt     int64
}

// Detect runs the high-frequency, trend, anomaly, and temporal
// detectors over owner's events in win and returns every pattern that
// cleared its threshold.
func (d *Detector) Detect(owner string, win Window) (Result, error) {
	events, err := d.store.ListEventsInWindow(owner, win.Start, win.End)
	if err != nil {
		return Result{}, err
	}
	now := time.Now().UnixMilli()

	var patterns []Detected
	patterns = append(patterns, d.detectHighFrequency(owner, events, win, now)...)
	patterns = append(patterns, d.detectTrends(owner, events, win, now)...)

	anomalies, err := d.detectAnomalies(owner, events, win, now)
	if err != nil {
		return Result{}, err
	}
	patterns = append(patterns, anomalies...)
	patterns = append(patterns, d.detectTemporal(owner, events, win, now)...)

	return Result{
		Patterns:       patterns,
		EventsAnalyzed: len(events),
		Window:         win,
		DetectedAt:     now,
	}, nil
}

func groupByActionTarget(events []*store.EventMemory) map[actionKey][]*store.EventMemory {
	groups := make(map[actionKey][]*store.EventMemory)
	for _, e := range events {
		key := actionKey{e.Action, e.Target}
		groups[key] = append(groups[key], e)
	}
	return groups
}

func windowDays(win Window) float64 {
	days := float64(win.End-win.Start) / float64(24*time.Hour/time.Millisecond)
	if days < 1 {
		days = 1
	}
	return days
}

func (d *Detector) detectHighFrequency(owner string, events []*store.EventMemory, win Window, now int64) []Detected {
	spanDays := windowDays(win)
	minOccurrences := int(math.Ceil(spanDays * d.config.MinFrequencyThreshold))

	var out []Detected
	for key, list := range groupByActionTarget(events) {
		if len(list) < minOccurrences {
			continue
		}
		freq := float64(len(list)) / spanDays
		consistency := consistencyScore(list)
		if freq < d.config.MinFrequencyThreshold || consistency < d.config.MinConfidence {
			continue
		}
		out = append(out, Detected{
			ID:    uuid.NewString(),
			Owner: owner,
			Kind:  KindHighFrequency,
			Description: fmt.Sprintf("Frequently %s %s (%.2f times/day)",
				key.action, key.target, freq),
			Action:        key.action,
			Target:        key.target,
			Confidence:    consistency,
			EvidenceCount: len(list),
			TimeSpanDays:  int(spanDays),
			DetectedAt:    now,
			Metadata: map[string]any{
				"average_frequency_per_day": freq,
				"consistency_score":         consistency,
			},
		})
	}
	return out
}

// consistencyScore is 1 minus the coefficient of variation of the
// inter-event gaps, clamped to [0, 1]: lower variance in the spacing
// between occurrences means a more consistent habit.
func consistencyScore(events []*store.EventMemory) float64 {
	if len(events) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		gaps = append(gaps, float64(events[i].Timestamp-events[i-1].Timestamp))
	}
	mean := 0.0
	for _, g := range gaps {
		mean += g
	}
	mean /= float64(len(gaps))
	if mean <= 0 {
		return 0
	}
	variance := 0.0
	for _, g := range gaps {
		d := g - mean
		variance += d * d
	}
	variance /= float64(len(gaps))
	cv := math.Sqrt(variance) / mean
	if cv > 1 {
		cv = 1
	}
	consistency := 1 - cv
	if consistency < 0 {
		consistency = 0
	}
	return consistency
}
