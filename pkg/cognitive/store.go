package cognitive

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/memerr"
)

// Store wraps store.Storer with the Promotion Gate workflow and
// concept version-chain bookkeeping so callers never touch raw
// DerivedView/StableConcept rows directly.
type Store struct {
	store store.Storer
}

// New builds a Store over s.
func New(s store.Storer) *Store {
	return &Store{store: s}
}

// EvaluateExpiry marks view Expired if its expires_at has passed, or
// Rejected if its counter-evidence ratio alone clears the auto-reject
// bar. It is a no-op for a view that is neither expired nor rejected.
func (c *Store) EvaluateExpiry(view *store.DerivedView, now time.Time) (bool, error) {
	changed := false
	switch {
	case view.Status != store.ViewActive:
		// terminal already
	case ShouldAutoReject(view):
		view.Status = store.ViewRejected
		changed = true
	case now.UnixMilli() >= view.ExpiresAt:
		view.Status = store.ViewExpired
		changed = true
	}
	if changed {
		if err := c.store.UpdateView(view); err != nil {
			return false, err
		}
	}
	return changed, nil
}

// TryPromote checks the Promotion Gate against view's active siblings
// and, if it passes, promotes it: creates or versions a StableConcept
// and flips the view's status to Promoted. It returns the resulting
// concept, or nil if the gate did not pass.
func (c *Store) TryPromote(owner, canonicalName string, view *store.DerivedView, now time.Time) (*store.StableConcept, error) {
	active, err := c.store.ListActiveViews(owner)
	if err != nil {
		return nil, err
	}
	if !Promotable(view, active, now) {
		return nil, nil
	}

	concept, err := c.promoteConcept(owner, canonicalName, view, now)
	if err != nil {
		return nil, err
	}

	view.Status = store.ViewPromoted
	view.PromotedTo = &concept.ID
	if err := c.store.UpdateView(view); err != nil {
		return nil, err
	}
	return concept, nil
}

// promoteConcept creates a StableConcept version 1, or a new version
// whose parent is the previous current version. CreateConcept
// deprecates that parent atomically in the same transaction as the
// insert (§5).
func (c *Store) promoteConcept(owner, canonicalName string, view *store.DerivedView, now time.Time) (*store.StableConcept, error) {
	nowMillis := now.UnixMilli()
	definition, _ := json.Marshal(map[string]any{
		"hypothesis":       view.Hypothesis,
		"view_type":        view.ViewType,
		"evidence_count":   view.EvidenceCount,
		"validation_count": view.ValidationCount,
	})

	current, err := c.store.GetCurrentConcept(owner, canonicalName)
	if err != nil && !memerr.Is(err, memerr.KindNotFound) {
		return nil, err
	}

	concept := &store.StableConcept{
		ID:                  uuid.NewString(),
		Owner:               owner,
		CanonicalName:       canonicalName,
		DisplayName:         canonicalName,
		ConceptType:         string(view.ViewType),
		Description:         view.Hypothesis,
		Definition:          definition,
		Version:             1,
		PromotedFromViewID:  view.ID,
		PromotionConfidence: view.Confidence,
		CreatedAt:           nowMillis,
		UpdatedAt:           nowMillis,
		LastAccessedAt:      nowMillis,
		Source:              "promotion_gate",
	}

	if current != nil {
		concept.Version = current.Version + 1
		concept.ParentConceptID = &current.ID
	}

	if err := c.store.CreateConcept(concept); err != nil {
		return nil, err
	}
	return concept, nil
}

// Rollback creates a new concept version whose fields copy ancestor and
// records the rollback source in its definition. CreateConcept
// deprecates the current version atomically in the same transaction
// as the insert (§4.5: "Rollback is expressed as a new version").
func (c *Store) Rollback(owner, canonicalName string, ancestor *store.StableConcept, now time.Time) (*store.StableConcept, error) {
	nowMillis := now.UnixMilli()
	current, err := c.store.GetCurrentConcept(owner, canonicalName)
	if err != nil && !memerr.Is(err, memerr.KindNotFound) {
		return nil, err
	}

	var definition map[string]any
	_ = json.Unmarshal(ancestor.Definition, &definition)
	if definition == nil {
		definition = make(map[string]any)
	}
	definition["rolled_back_from"] = ancestor.ID
	encoded, _ := json.Marshal(definition)

	next := &store.StableConcept{
		ID:                  uuid.NewString(),
		Owner:               owner,
		CanonicalName:       canonicalName,
		DisplayName:         ancestor.DisplayName,
		ConceptType:         ancestor.ConceptType,
		Description:         ancestor.Description,
		Definition:          encoded,
		Version:             1,
		PromotedFromViewID:  ancestor.PromotedFromViewID,
		PromotionConfidence: ancestor.PromotionConfidence,
		CreatedAt:           nowMillis,
		UpdatedAt:           nowMillis,
		LastAccessedAt:      nowMillis,
		Source:              "rollback",
	}
	if current != nil {
		next.Version = current.Version + 1
		next.ParentConceptID = &current.ID
	}
	if err := c.store.CreateConcept(next); err != nil {
		return nil, err
	}
	return next, nil
}

// ReadConcept fetches the current StableConcept for canonicalName and
// records the access as a separate statement after the read returns,
// not inside the read's transaction (§4.5).
func (c *Store) ReadConcept(owner, canonicalName string, now time.Time) (*store.StableConcept, error) {
	concept, err := c.store.GetCurrentConcept(owner, canonicalName)
	if err != nil {
		return nil, err
	}
	if concept == nil {
		return nil, memerr.New(memerr.KindNotFound, "no current concept: "+owner+"/"+canonicalName)
	}
	if err := c.store.TouchConceptAccess(concept.ID, now.UnixMilli()); err != nil {
		return nil, err
	}
	return concept, nil
}
