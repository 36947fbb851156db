package entity

import (
	"strings"
	"time"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/memerr"
)

// DefaultCoOccurrenceWindowHours is the lookback window RecomputeStrength
// scans for joint entity mentions, matching the original implementation's
// co_occurrence_window_hours default.
const DefaultCoOccurrenceWindowHours = 24

// RecomputeStrength recomputes a relation's strength from how often
// sourceID and targetID's canonical names both appear in the same
// event's target text within the last windowHours (windowHours <= 0
// uses DefaultCoOccurrenceWindowHours), as a Jaccard-like ratio:
// co-occurrences over the union of events mentioning either entity.
// This is an alternative to Link's increment-by-one per observation,
// for recomputing strength directly from the event window (§4.4).
func (l *RelationLinker) RecomputeStrength(owner, sourceID, targetID string, windowHours int64, now time.Time) (float64, error) {
	if windowHours <= 0 {
		windowHours = DefaultCoOccurrenceWindowHours
	}

	source, err := l.store.GetEntity(sourceID)
	if err != nil {
		return 0, err
	}
	target, err := l.store.GetEntity(targetID)
	if err != nil {
		return 0, err
	}

	windowStart := now.Add(-time.Duration(windowHours) * time.Hour).UnixMilli()
	events, err := l.store.ListEventsInWindow(owner, windowStart, now.UnixMilli())
	if err != nil {
		return 0, err
	}

	sourceName := strings.ToLower(source.CanonicalName)
	targetName := strings.ToLower(target.CanonicalName)

	var sourceCount, targetCount, both int
	for _, ev := range events {
		text := strings.ToLower(ev.Target)
		sourcePresent := sourceName != "" && strings.Contains(text, sourceName)
		targetPresent := targetName != "" && strings.Contains(text, targetName)
		if sourcePresent {
			sourceCount++
		}
		if targetPresent {
			targetCount++
		}
		if sourcePresent && targetPresent {
			both++
		}
	}

	if sourceCount == 0 || targetCount == 0 {
		return 0, nil
	}
	union := sourceCount + targetCount - both
	if union == 0 {
		return 0, nil
	}
	return float64(both) / float64(union), nil
}

// RecomputeAndStore recomputes sourceID/targetID's co-occurrence
// strength and persists it onto the existing relType relation edge
// between them, if one exists.
func (l *RelationLinker) RecomputeAndStore(owner, sourceID, targetID, relType string, windowHours int64, now time.Time) (*store.EntityRelation, error) {
	rel, err := l.store.GetRelation(owner, sourceID, targetID, CanonicalRelationType(relType))
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, memerr.New(memerr.KindNotFound, "no existing relation between these entities")
	}
	strength, err := l.RecomputeStrength(owner, sourceID, targetID, windowHours, now)
	if err != nil {
		return nil, err
	}
	rel.Strength = strength
	rel.LastSeen = now.UnixMilli()
	if err := l.store.UpsertRelation(rel); err != nil {
		return nil, err
	}
	return rel, nil
}
