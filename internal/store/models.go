// Package store provides SQLite-backed persistence for every memoria
// entity kind: raw memories, structured events, entities and their
// relations, derived views, stable concepts, plugin grants, and the
// audit log.
package store

import "encoding/json"

// ContentType discriminates the modality of a RawMemory.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentVoice    ContentType = "voice"
	ContentImage    ContentType = "image"
	ContentDocument ContentType = "document"
	ContentAction   ContentType = "action"
	ContentExternal ContentType = "external"
)

// Tier classifies a RawMemory by age for the Data Lifecycle component
// (§4.10): Hot is actively queryable, Warm is gzip-compressed in
// place, Cold has had its content replaced in place by a summary
// reference. No copy of a Cold row's original content is kept
// anywhere else.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// RawMemory is one ingested input. Exactly one of Plaintext/Ciphertext is
// populated; Embedding is optional and may be backfilled after creation.
type RawMemory struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	CreatedAt   int64           `json:"createdAt"` // unix millis
	ContentType ContentType     `json:"contentType"`
	Plaintext   *string         `json:"plaintext,omitempty"`
	Ciphertext  []byte          `json:"ciphertext,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Embedding   []float32       `json:"embedding,omitempty"`
	Tier        Tier            `json:"tier"`
}

// EventMemory is one structured observation derived from a RawMemory.
type EventMemory struct {
	ID              string   `json:"id"`
	RawMemoryID     string   `json:"rawMemoryId"`
	Owner           string   `json:"owner"`
	Timestamp       int64    `json:"timestamp"` // unix millis, UTC
	Actor           *string  `json:"actor,omitempty"`
	Action          string   `json:"action"`
	Target          string   `json:"target"`
	Quantity        *float64 `json:"quantity,omitempty"`
	Unit            *string  `json:"unit,omitempty"`
	Confidence      float64  `json:"confidence"`
	ExtractorMethod string   `json:"extractorMethod"` // "provider" | "rule"
	ExtractorVer    string   `json:"extractorVersion"`
}

// EntityType enumerates the canonical kinds an Entity may take.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityPlace        EntityType = "place"
	EntityObject       EntityType = "object"
	EntityConcept      EntityType = "concept"
	EntityOrganization EntityType = "organization"
	EntityEvent        EntityType = "event"
)

// AttributeValue is one rolling-mean observation of a named entity
// attribute slot.
type AttributeValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"` // rolling confidence-weighted mean
	Count      int     `json:"count"`
	FirstSeen  int64   `json:"firstSeen"`
	LastSeen   int64   `json:"lastSeen"`
}

// Entity is the canonical referent of one or more mentions for one owner.
type Entity struct {
	ID              string                    `json:"id"`
	Owner           string                    `json:"owner"`
	CanonicalName   string                    `json:"canonicalName"`
	Type            EntityType                `json:"type"`
	Attributes      map[string]AttributeValue `json:"attributes"`
	FirstSeen       int64                     `json:"firstSeen"`
	LastSeen        int64                     `json:"lastSeen"`
	OccurrenceCount int                       `json:"occurrenceCount"`
	Confidence      float64                   `json:"confidence"`
}

// EntityRelation is a directed typed edge between two entities of the
// same owner.
type EntityRelation struct {
	ID           string  `json:"id"`
	Owner        string  `json:"owner"`
	SourceID     string  `json:"sourceId"`
	TargetID     string  `json:"targetId"`
	RelationType string  `json:"relationType"`
	Confidence   float64 `json:"confidence"`
	Strength     float64 `json:"strength"`
	FirstSeen    int64   `json:"firstSeen"`
	LastSeen     int64   `json:"lastSeen"`
}

// ViewStatus is the DerivedView lifecycle state.
type ViewStatus string

const (
	ViewActive   ViewStatus = "active"
	ViewExpired  ViewStatus = "expired"
	ViewPromoted ViewStatus = "promoted"
	ViewRejected ViewStatus = "rejected"
)

// ViewType categorizes the hypothesis a DerivedView carries.
type ViewType string

const (
	ViewHabit      ViewType = "habit"
	ViewTrend      ViewType = "trend"
	ViewAnomaly    ViewType = "anomaly"
	ViewRoutine    ViewType = "routine"
	ViewPreference ViewType = "preference"
)

// DerivedView is a provisional hypothesis about an owner's behavior.
type DerivedView struct {
	ID                   string     `json:"id"`
	Owner                string     `json:"owner"`
	Hypothesis           string     `json:"hypothesis"`
	ViewType             ViewType   `json:"viewType"`
	SupportingEventIDs   []string   `json:"supportingEventIds"`
	EvidenceCount        int        `json:"evidenceCount"`
	Confidence           float64    `json:"confidence"`
	ValidationCount      int        `json:"validationCount"`
	CounterEvidenceIDs   []string   `json:"counterEvidenceIds"`
	CounterEvidenceCount int        `json:"counterEvidenceCount"`
	Status               ViewStatus `json:"status"`
	CreatedAt            int64      `json:"createdAt"`
	ExpiresAt            int64      `json:"expiresAt"`
	Source               string     `json:"source"`
	PromotedTo           *string    `json:"promotedTo,omitempty"`
}

// StableConcept is a validated, versioned belief about an owner.
type StableConcept struct {
	ID                  string          `json:"id"`
	Owner               string          `json:"owner"`
	CanonicalName       string          `json:"canonicalName"`
	DisplayName         string          `json:"displayName"`
	ConceptType         string          `json:"conceptType"`
	Description         string          `json:"description"`
	Definition          json.RawMessage `json:"definition"`
	Version             int             `json:"version"`
	ParentConceptID     *string         `json:"parentConceptId,omitempty"`
	IsDeprecated        bool            `json:"isDeprecated"`
	PromotedFromViewID  string          `json:"promotedFromViewId"`
	PromotionConfidence float64         `json:"promotionConfidence"`
	CreatedAt           int64           `json:"createdAt"`
	UpdatedAt           int64           `json:"updatedAt"`
	DeprecatedAt        *int64          `json:"deprecatedAt,omitempty"`
	AccessCount         int             `json:"accessCount"`
	LastAccessedAt      int64           `json:"lastAccessedAt"`
	Source              string          `json:"source"`
}

// PluginGrant persists the permission level an install has granted a
// plugin, so the Plugin Runtime can reject installs without re-asking.
type PluginGrant struct {
	PluginID    string `json:"pluginId"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Permission  int    `json:"permission"` // 1=ReadOnly 2=ReadWriteDerived 3=ReadWriteEvents
	InstalledAt int64  `json:"installedAt"`
}

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	ID        int64           `json:"id"`
	Owner     string          `json:"owner"`
	Action    string          `json:"action"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt int64           `json:"createdAt"`
}

// Storer is the persistence contract for every memoria subsystem.
// SQLiteStore is the sole implementation.
type Storer interface {
	// Raw memories
	PutRawMemory(r *RawMemory) error
	GetRawMemory(id string) (*RawMemory, error)
	DeleteRawMemory(id string) error
	BackfillEmbedding(id string, vec []float32) error
	ListRawMemoriesByTier(owner string, tier Tier, createdBefore int64, limit int) ([]*RawMemory, error)
	SetRawMemoryTier(id string, tier Tier) error
	ReplaceRawMemoryContent(id string, plaintext *string, ciphertext []byte, tier Tier) error
	CountRawMemoriesByTier(owner string) (map[Tier]int, error)
	ListRawMemories(owner string) ([]*RawMemory, error)

	// Events
	PutEvents(events []*EventMemory) error
	GetEvent(id string) (*EventMemory, error)
	ListEventsByRawMemory(rawID string) ([]*EventMemory, error)
	ListEventsInWindow(owner string, start, end int64) ([]*EventMemory, error)
	ListEventsForEntity(owner, entityID string) ([]*EventMemory, error)

	// Entities
	UpsertEntity(e *Entity) error
	GetEntity(id string) (*Entity, error)
	GetEntityByName(owner, canonicalName string) (*Entity, error)
	ListEntities(owner string) ([]*Entity, error)

	// Relations
	UpsertRelation(r *EntityRelation) error
	GetRelation(owner, sourceID, targetID, relType string) (*EntityRelation, error)
	ListRelationsForEntity(owner, entityID string, minStrength float64) ([]*EntityRelation, error)
	ListAllRelations(owner string) ([]*EntityRelation, error)

	// Derived views
	CreateView(v *DerivedView) error
	GetView(id string) (*DerivedView, error)
	UpdateView(v *DerivedView) error
	ListActiveViews(owner string) ([]*DerivedView, error)
	ListExpiringViews(before int64) ([]*DerivedView, error)
	ListAllViews(owner string) ([]*DerivedView, error)

	// Stable concepts
	CreateConcept(c *StableConcept) error
	GetCurrentConcept(owner, canonicalName string) (*StableConcept, error)
	GetConcept(id string) (*StableConcept, error)
	ListConceptVersions(owner, canonicalName string) ([]*StableConcept, error)
	ListAllConcepts(owner string) ([]*StableConcept, error)
	DeprecateConcept(id string, deprecatedAt int64) error
	TouchConceptAccess(id string, accessedAt int64) error

	// Plugin grants
	PutPluginGrant(g *PluginGrant) error
	GetPluginGrant(pluginID string) (*PluginGrant, error)

	// Audit log
	WriteAudit(e *AuditEntry) error
	CountAudit() (int, error)
	RotateAudit(keep int) error

	Close() error
}
