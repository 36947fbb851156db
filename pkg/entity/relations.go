package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/memerr"
)

// RelationType names the fixed vocabulary of relation edges the rule
// extractor recognizes; any other label passed to Link is kept
// verbatim as a custom relation type.
const (
	RelationBelongsTo  = "belongs_to"
	RelationRelatedTo  = "related_to"
	RelationLocatedAt  = "located_at"
	RelationWorksAt    = "works_at"
	RelationFriendsWith = "friends_with"
	RelationFamilyOf   = "family_of"
	RelationOwns       = "owns"
	RelationCreatedBy  = "created_by"
	RelationPartOf     = "part_of"
)

var relationAliases = map[string]string{
	"属于": RelationBelongsTo,
	"相关": RelationRelatedTo,
	"位于": RelationLocatedAt,
	"工作于": RelationWorksAt,
	"朋友": RelationFriendsWith,
	"家人": RelationFamilyOf,
	"拥有": RelationOwns,
	"创建于": RelationCreatedBy,
	"部分": RelationPartOf,
}

// CanonicalRelationType maps a free-form relation label (English or
// the Chinese aliases the rule extractor emits) to its canonical form.
func CanonicalRelationType(raw string) string {
	if canon, ok := relationAliases[raw]; ok {
		return canon
	}
	return raw
}

// RelationCandidate is one rule-extracted relation before linking.
type RelationCandidate struct {
	SourceMention string
	TargetMention string
	RelationType  string
	Confidence    float64
}

// ExtractRelations applies the fixed "X 属于 Y" / "X 位于 Y" / "X 是 Y"
// surface patterns against text for the given mention pair, mirroring
// the rule-based fallback the Event Extractor uses for events.
func ExtractRelations(text, source, target string) []RelationCandidate {
	var out []RelationCandidate
	if source == "" || target == "" || source == target {
		return out
	}

	type pattern struct {
		surface string
		relType string
		conf    float64
	}
	patterns := []pattern{
		{source + "属于" + target, RelationBelongsTo, 0.9},
		{source + " 位于 " + target, RelationLocatedAt, 0.9},
		{source + "位于" + target, RelationLocatedAt, 0.85},
		{source + "工作于" + target, RelationWorksAt, 0.85},
		{source + "是" + target, RelationBelongsTo, 0.7},
	}
	for _, p := range patterns {
		if strings.Contains(text, p.surface) {
			out = append(out, RelationCandidate{source, target, p.relType, p.conf})
			return out
		}
	}

	if strings.Contains(text, source) && strings.Contains(text, target) {
		out = append(out, RelationCandidate{source, target, RelationRelatedTo, 0.5})
	}
	return out
}

// RelationLinker persists relation candidates, growing strength and a
// strength-weighted rolling confidence on repeat observation (§4.4).
type RelationLinker struct {
	store store.Storer
}

// NewRelationLinker builds a RelationLinker over s.
func NewRelationLinker(s store.Storer) *RelationLinker {
	return &RelationLinker{store: s}
}

// Link upserts one relation edge between two already-resolved
// entities, incrementing strength and folding confidence via a
// strength-weighted average on repeat observation.
func (l *RelationLinker) Link(owner, sourceID, targetID, relType string, confidence float64) (*store.EntityRelation, error) {
	relType = CanonicalRelationType(relType)
	now := time.Now().UnixMilli()

	existing, err := l.store.GetRelation(owner, sourceID, targetID, relType)
	if err != nil && !memerr.Is(err, memerr.KindNotFound) {
		return nil, err
	}
	if existing != nil {
		existing.Confidence = (existing.Confidence*existing.Strength + confidence) / (existing.Strength + 1.0)
		existing.Strength++
		existing.LastSeen = now
		if err := l.store.UpsertRelation(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	rel := &store.EntityRelation{
		ID:           uuid.NewString(),
		Owner:        owner,
		SourceID:     sourceID,
		TargetID:     targetID,
		RelationType: relType,
		Confidence:   confidence,
		Strength:     1.0,
		FirstSeen:    now,
		LastSeen:     now,
	}
	if err := l.store.UpsertRelation(rel); err != nil {
		return nil, err
	}
	return rel, nil
}
