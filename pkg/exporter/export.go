// Package exporter builds and restores full per-owner data exports for
// GDPR-style "give me everything you have on me" requests and for
// backups, grounded on original_source/src/rust/src/export.rs
// (DataExporter/DataImporter/AutoBackupManager), adapted from its
// Postgres+diesel shape to internal/store's Storer and from AES to
// pkg/cryptobox's secretbox.
package exporter

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/cryptobox"
	"github.com/kittclouds/memoria/pkg/memerr"
)

// FormatVersion is the export schema version, bumped whenever a
// breaking change is made to UserDataExport's shape.
const FormatVersion = "1.0.0"

// UserDataExport is the complete, unencrypted snapshot of one owner's
// data across every memory tier.
type UserDataExport struct {
	Owner        string              `json:"owner"`
	ExportedAt   int64               `json:"exportedAt"`
	Version      string              `json:"version"`
	RawMemories  []*store.RawMemory  `json:"rawMemories"`
	Events       []*store.EventMemory `json:"events"`
	Entities     []*store.Entity     `json:"entities"`
	Relations    []*store.EntityRelation `json:"relations"`
	Views        []*store.DerivedView `json:"views"`
	Concepts     []*store.StableConcept `json:"concepts"`
	Metadata     ExportMetadata      `json:"metadata"`
}

// ExportMetadata summarizes an export's contents without requiring a
// reader to walk every slice.
type ExportMetadata struct {
	RawMemoryCount      int     `json:"rawMemoryCount"`
	EventCount          int     `json:"eventCount"`
	EntityCount         int     `json:"entityCount"`
	RelationCount       int     `json:"relationCount"`
	ViewCount           int     `json:"viewCount"`
	ConceptCount        int     `json:"conceptCount"`
	EncryptedSizeBytes  int     `json:"encryptedSizeBytes,omitempty"`
	ExportDurationSecs  float64 `json:"exportDurationSecs"`
}

// EncryptedExport wraps an UserDataExport encrypted end-to-end, the
// shape persisted to backup files and opened by Decrypt before
// Importer.Import.
type EncryptedExport struct {
	Owner        string         `json:"owner"`
	ExportedAt   int64          `json:"exportedAt"`
	Version      string         `json:"version"`
	EncryptedData string        `json:"encryptedData"`
	Metadata     ExportMetadata `json:"metadata"`
	Checksum     string         `json:"checksum"`
}

// Exporter reads everything a Storer knows about one owner.
type Exporter struct {
	store store.Storer
	now   func() time.Time
}

// New builds an Exporter over s.
func New(s store.Storer) *Exporter {
	return &Exporter{store: s, now: time.Now}
}

// Export gathers every raw memory, event, entity, relation, view, and
// concept belonging to owner into one UserDataExport.
func (ex *Exporter) Export(owner string) (*UserDataExport, error) {
	start := ex.now()

	raw, err := ex.store.ListRawMemories(owner)
	if err != nil {
		return nil, err
	}
	events, err := ex.store.ListEventsInWindow(owner, 0, math.MaxInt64)
	if err != nil {
		return nil, err
	}
	entities, err := ex.store.ListEntities(owner)
	if err != nil {
		return nil, err
	}
	relations, err := ex.store.ListAllRelations(owner)
	if err != nil {
		return nil, err
	}
	views, err := ex.store.ListAllViews(owner)
	if err != nil {
		return nil, err
	}
	concepts, err := ex.store.ListAllConcepts(owner)
	if err != nil {
		return nil, err
	}

	end := ex.now()
	return &UserDataExport{
		Owner:       owner,
		ExportedAt:  end.UnixMilli(),
		Version:     FormatVersion,
		RawMemories: raw,
		Events:      events,
		Entities:    entities,
		Relations:   relations,
		Views:       views,
		Concepts:    concepts,
		Metadata: ExportMetadata{
			RawMemoryCount:     len(raw),
			EventCount:         len(events),
			EntityCount:        len(entities),
			RelationCount:      len(relations),
			ViewCount:          len(views),
			ConceptCount:       len(concepts),
			ExportDurationSecs: end.Sub(start).Seconds(),
		},
	}, nil
}

// ExportEncrypted builds an UserDataExport and seals it with box,
// producing the checksummed, base64-encoded EncryptedExport shape
// suitable for writing to a backup file.
func (ex *Exporter) ExportEncrypted(owner string, box *cryptobox.Box) (*EncryptedExport, error) {
	export, err := ex.Export(owner)
	if err != nil {
		return nil, err
	}

	plain, err := json.Marshal(export)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindValidation, "marshal export", err)
	}

	sealed, err := box.Encrypt(plain)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(plain)
	export.Metadata.EncryptedSizeBytes = len(sealed)

	return &EncryptedExport{
		Owner:         export.Owner,
		ExportedAt:    export.ExportedAt,
		Version:       export.Version,
		EncryptedData: base64.StdEncoding.EncodeToString(sealed),
		Metadata:      export.Metadata,
		Checksum:      fmt.Sprintf("%x", sum),
	}, nil
}
