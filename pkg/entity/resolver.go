// Package entity implements the Entity Resolver: mention normalization,
// exact/fuzzy linking with context-based disambiguation, attribute and
// relation growth, and the entity relation graph queries (§4.3, §4.4).
package entity

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/xrash/smetrics"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/memerr"
)

const fuzzyThreshold = 0.75

// aliasTable maps a small set of common vendor-name/translation
// aliases to their canonical surface form, applied after normalization.
var aliasTable = map[string]string{
	"苹果公司": "苹果",
	"apple inc": "apple",
	"apple inc.": "apple",
}

// Resolver links mentions to canonical entities for one owner,
// serializing concurrent links for the same (owner, canonical name) so
// occurrence_count and attribute rolling means stay correct (spec §5).
type Resolver struct {
	store store.Storer
	attrs *AttributeExtractor
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewResolver builds a Resolver over s, growing attributes via attrs
// (pass nil to skip attribute extraction — relations/entities still
// link normally).
func NewResolver(s store.Storer, attrs *AttributeExtractor) *Resolver {
	return &Resolver{store: s, attrs: attrs, locks: make(map[string]*sync.Mutex)}
}

func (r *Resolver) lockFor(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// Normalize trims, case-folds ASCII to title case, keeps non-ASCII
// verbatim, and applies the alias table. It is idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(mention string) string {
	s := strings.TrimSpace(mention)
	if s == "" {
		return s
	}
	if isASCII(s) {
		s = strings.ToLower(s)
		if alias, ok := aliasTable[s]; ok {
			return titleCaseASCII(alias)
		}
		return titleCaseASCII(s)
	}
	if alias, ok := aliasTable[s]; ok {
		return alias
	}
	return s
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func titleCaseASCII(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Link implements the Entity Resolver contract: normalize, exact
// lookup, fuzzy lookup with context disambiguation, else create.
func (r *Resolver) Link(owner, mention, context string) (*store.Entity, error) {
	normalized := Normalize(mention)
	lock := r.lockFor(owner + "\x00" + normalized)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UnixMilli()

	e, err := r.store.GetEntityByName(owner, normalized)
	if err != nil && !memerr.Is(err, memerr.KindNotFound) {
		return nil, err
	}
	if e != nil {
		return r.reinforce(e, context, now)
	}

	candidates, err := r.fuzzyCandidates(owner, normalized)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		best := r.disambiguate(candidates, normalized, context)
		if best != nil {
			return r.reinforce(best, context, now)
		}
	}

	return r.create(owner, normalized, context, now)
}

func (r *Resolver) fuzzyCandidates(owner, normalized string) ([]*store.Entity, error) {
	all, err := r.store.ListEntities(owner)
	if err != nil {
		return nil, err
	}
	var out []*store.Entity
	for _, e := range all {
		sim := smetrics.JaroWinkler(normalized, e.CanonicalName, 0.7, 4)
		if sim >= fuzzyThreshold {
			out = append(out, e)
		}
	}
	return out, nil
}

// disambiguate picks the best fuzzy candidate. With a single survivor
// it is returned unconditionally; with ≥2, each is scored by 0.6
// string-similarity + 0.4 context-type match and the highest wins.
func (r *Resolver) disambiguate(candidates []*store.Entity, normalized, context string) *store.Entity {
	if len(candidates) == 1 {
		return candidates[0]
	}
	inferred := InferType(context)
	var best *store.Entity
	var bestScore float64
	for _, c := range candidates {
		sim := smetrics.JaroWinkler(normalized, c.CanonicalName, 0.7, 4)
		contextMatch := 0.0
		if c.Type == inferred {
			contextMatch = 1.0
		}
		score := 0.6*sim + 0.4*contextMatch
		if best == nil || score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func (r *Resolver) reinforce(e *store.Entity, context string, now int64) (*store.Entity, error) {
	e.OccurrenceCount++
	e.LastSeen = now
	if r.attrs != nil && context != "" {
		if err := r.attrs.Observe(e, context); err != nil {
			return nil, err
		}
	}
	if err := r.store.UpsertEntity(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *Resolver) create(owner, normalized, context string, now int64) (*store.Entity, error) {
	e := &store.Entity{
		ID:              uuid.NewString(),
		Owner:           owner,
		CanonicalName:   normalized,
		Type:            InferType(context),
		Attributes:      make(map[string]store.AttributeValue),
		FirstSeen:       now,
		LastSeen:        now,
		OccurrenceCount: 1,
		Confidence:      0.6,
	}
	if r.attrs != nil && context != "" {
		if err := r.attrs.Observe(e, context); err != nil {
			return nil, err
		}
	}
	if err := r.store.UpsertEntity(e); err != nil {
		return nil, err
	}
	return e, nil
}
