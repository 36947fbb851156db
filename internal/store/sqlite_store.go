// Package store: SQLite-backed implementation of Storer.
// Uses ncruces/go-sqlite3/driver, a pure-Go SQLite engine, and loads
// the sqlite-vec extension; the RawMemory embedding column is a plain
// BLOB of little-endian float32 values with no vector search over it.
package store

import (
	"database/sql"
	"encoding/json"
	"math"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kittclouds/memoria/pkg/memerr"
)

// SQLiteStore is the SQLite-backed data store. The extra mutex layered
// over database/sql's own locking gives callers a single critical
// section to reason about for the multi-statement atomic writes
// described in spec §5 (raw row + events + entity upsert is one
// transaction; concept promotion + deprecation is one transaction).
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS raw_memories (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	content_type TEXT NOT NULL,
	plaintext TEXT,
	ciphertext BLOB,
	metadata TEXT,
	embedding BLOB,
	tier TEXT NOT NULL DEFAULT 'hot'
);
CREATE INDEX IF NOT EXISTS idx_raw_owner ON raw_memories(owner, created_at);
CREATE INDEX IF NOT EXISTS idx_raw_tier ON raw_memories(tier, created_at);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	raw_memory_id TEXT NOT NULL,
	owner TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	actor TEXT,
	action TEXT NOT NULL,
	target TEXT NOT NULL,
	quantity REAL,
	unit TEXT,
	confidence REAL NOT NULL,
	extractor_method TEXT NOT NULL,
	extractor_version TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_owner_ts ON events(owner, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_raw ON events(raw_memory_id);
CREATE INDEX IF NOT EXISTS idx_events_action_target ON events(owner, action, target);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	type TEXT NOT NULL,
	attributes TEXT,
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL,
	occurrence_count INTEGER NOT NULL DEFAULT 0,
	confidence REAL NOT NULL DEFAULT 0,
	UNIQUE(owner, canonical_name)
);
CREATE INDEX IF NOT EXISTS idx_entities_owner ON entities(owner);

CREATE TABLE IF NOT EXISTS entity_relations (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	relation_type TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	strength REAL NOT NULL DEFAULT 0,
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL,
	UNIQUE(owner, source_id, target_id, relation_type)
);
CREATE INDEX IF NOT EXISTS idx_relations_source ON entity_relations(source_id);
CREATE INDEX IF NOT EXISTS idx_relations_target ON entity_relations(target_id);

CREATE TABLE IF NOT EXISTS derived_views (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	hypothesis TEXT NOT NULL,
	view_type TEXT NOT NULL,
	supporting_event_ids TEXT,
	evidence_count INTEGER NOT NULL DEFAULT 0,
	confidence REAL NOT NULL DEFAULT 0,
	validation_count INTEGER NOT NULL DEFAULT 0,
	counter_evidence_ids TEXT,
	counter_evidence_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	source TEXT,
	promoted_to TEXT
);
CREATE INDEX IF NOT EXISTS idx_views_owner_status ON derived_views(owner, status);
CREATE INDEX IF NOT EXISTS idx_views_expires ON derived_views(status, expires_at);

CREATE TABLE IF NOT EXISTS stable_concepts (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	display_name TEXT NOT NULL,
	concept_type TEXT,
	description TEXT,
	definition TEXT,
	version INTEGER NOT NULL,
	parent_concept_id TEXT,
	is_deprecated INTEGER NOT NULL DEFAULT 0,
	promoted_from_view_id TEXT,
	promotion_confidence REAL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deprecated_at INTEGER,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed_at INTEGER,
	source TEXT
);
CREATE INDEX IF NOT EXISTS idx_concepts_current ON stable_concepts(owner, canonical_name) WHERE is_deprecated = 0;
CREATE INDEX IF NOT EXISTS idx_concepts_owner ON stable_concepts(owner, canonical_name);

CREATE TABLE IF NOT EXISTS plugin_grants (
	plugin_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	version TEXT,
	permission INTEGER NOT NULL,
	installed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner TEXT NOT NULL,
	action TEXT NOT NULL,
	detail TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_owner ON audit_log(owner, created_at);
`

// New opens a SQLite store at dsn (":memory:" for ephemeral, or a file
// path for a persistent install).
func New(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "open database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, memerr.Wrap(memerr.KindStorage, "create schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func marshalJSON(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, 4*len(vec))
	for i, f := range vec {
		bits := math.Float32bits(f)
		b[4*i+0] = byte(bits)
		b[4*i+1] = byte(bits >> 8)
		b[4*i+2] = byte(bits >> 16)
		b[4*i+3] = byte(bits >> 24)
	}
	return b
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	n := len(b) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}

// =============================================================================
// Raw memories
// =============================================================================

func (s *SQLiteStore) PutRawMemory(r *RawMemory) error {
	if (r.Plaintext == nil) == (r.Ciphertext == nil) {
		return memerr.New(memerr.KindValidation, "exactly one of plaintext/ciphertext must be set")
	}
	meta, err := marshalJSON(r.Metadata)
	if err != nil {
		return memerr.Wrap(memerr.KindValidation, "marshal metadata", err)
	}

	tier := r.Tier
	if tier == "" {
		tier = TierHot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO raw_memories (id, owner, created_at, content_type, plaintext, ciphertext, metadata, embedding, tier)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Owner, r.CreatedAt, string(r.ContentType), r.Plaintext, r.Ciphertext, nullableString(meta), encodeEmbedding(r.Embedding), string(tier))
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "insert raw memory", err)
	}
	return nil
}

func (s *SQLiteStore) GetRawMemory(id string) (*RawMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanRawMemoryRow(s.db.QueryRow(`SELECT `+rawMemoryCols+` FROM raw_memories WHERE id = ?`, id))
}

func (s *SQLiteStore) scanRawMemoryRow(row *sql.Row) (*RawMemory, error) {
	r, err := scanRawMemory(row)
	if err == sql.ErrNoRows {
		return nil, memerr.New(memerr.KindNotFound, "raw memory not found")
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "get raw memory", err)
	}
	return r, nil
}

const rawMemoryCols = `id, owner, created_at, content_type, plaintext, ciphertext, metadata, embedding, tier`

// scanRawMemory scans one raw_memories row selected with rawMemoryCols,
// shared by the single-row and multi-row (sql.Row/sql.Rows) query paths.
func scanRawMemory(row scanner) (*RawMemory, error) {
	var r RawMemory
	var contentType, tier string
	var plaintext sql.NullString
	var ciphertext, embedding []byte
	var metadata sql.NullString

	if err := row.Scan(&r.ID, &r.Owner, &r.CreatedAt, &contentType, &plaintext, &ciphertext, &metadata, &embedding, &tier); err != nil {
		return nil, err
	}

	r.ContentType = ContentType(contentType)
	r.Tier = Tier(tier)
	if plaintext.Valid {
		r.Plaintext = &plaintext.String
	}
	if len(ciphertext) > 0 {
		r.Ciphertext = ciphertext
	}
	if metadata.Valid {
		r.Metadata = json.RawMessage(metadata.String)
	}
	r.Embedding = decodeEmbedding(embedding)
	return &r, nil
}

func (s *SQLiteStore) DeleteRawMemory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM events WHERE raw_memory_id = ?`, id); err != nil {
		return memerr.Wrap(memerr.KindStorage, "cascade delete events", err)
	}
	if _, err := tx.Exec(`DELETE FROM raw_memories WHERE id = ?`, id); err != nil {
		return memerr.Wrap(memerr.KindStorage, "delete raw memory", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) BackfillEmbedding(id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE raw_memories SET embedding = ? WHERE id = ?`, encodeEmbedding(vec), id)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "backfill embedding", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return memerr.New(memerr.KindNotFound, "raw memory not found: "+id)
	}
	return nil
}

// ListRawMemoriesByTier returns up to limit rows currently in tier,
// created before createdBefore, oldest first. owner == "" matches
// every owner, for the archiver's cross-owner sweep.
func (s *SQLiteStore) ListRawMemoriesByTier(owner string, tier Tier, createdBefore int64, limit int) ([]*RawMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + rawMemoryCols + ` FROM raw_memories WHERE tier = ? AND created_at < ?`
	args := []interface{}{string(tier), createdBefore}
	if owner != "" {
		query += ` AND owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY created_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "list raw memories by tier", err)
	}
	defer rows.Close()

	var out []*RawMemory
	for rows.Next() {
		r, err := scanRawMemory(rows)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan raw memory", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRawMemories returns every raw memory belonging to owner, oldest
// first. Used by pkg/exporter to build a full user data export; unlike
// ListRawMemoriesByTier it is unfiltered by tier or age.
func (s *SQLiteStore) ListRawMemories(owner string) ([]*RawMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+rawMemoryCols+` FROM raw_memories WHERE owner = ? ORDER BY created_at ASC`, owner)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "list raw memories", err)
	}
	defer rows.Close()

	var out []*RawMemory
	for rows.Next() {
		r, err := scanRawMemory(rows)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan raw memory", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetRawMemoryTier updates only the tier column, used when a row
// advances tier without its content changing (e.g. the archiver moving
// a row to Warm when compression is off or the row has no content).
func (s *SQLiteStore) SetRawMemoryTier(id string, tier Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE raw_memories SET tier = ? WHERE id = ?`, string(tier), id)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "set raw memory tier", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return memerr.New(memerr.KindNotFound, "raw memory not found: "+id)
	}
	return nil
}

// ReplaceRawMemoryContent overwrites a row's plaintext/ciphertext
// columns and tier in one statement — used by the Hot→Warm compression
// step and the Warm→Cold object-storage-reference step (§4.10).
// Exactly one of plaintext/ciphertext is kept non-nil, mirroring the
// RawMemory invariant.
func (s *SQLiteStore) ReplaceRawMemoryContent(id string, plaintext *string, ciphertext []byte, tier Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE raw_memories SET plaintext = ?, ciphertext = ?, tier = ? WHERE id = ?`,
		plaintext, ciphertext, string(tier), id)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "replace raw memory content", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return memerr.New(memerr.KindNotFound, "raw memory not found: "+id)
	}
	return nil
}

// CountRawMemoriesByTier returns the per-tier row count for owner,
// backing the Data Lifecycle tier-distribution report.
func (s *SQLiteStore) CountRawMemoriesByTier(owner string) (map[Tier]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT tier, COUNT(*) FROM raw_memories WHERE owner = ? GROUP BY tier`, owner)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "count raw memories by tier", err)
	}
	defer rows.Close()

	out := map[Tier]int{TierHot: 0, TierWarm: 0, TierCold: 0}
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan tier count", err)
		}
		out[Tier(tier)] = n
	}
	return out, rows.Err()
}

// =============================================================================
// Events
// =============================================================================

// PutEvents inserts all events in a single transaction — partial
// ingestion across a batch is treated as fatal per spec §4.2.
func (s *SQLiteStore) PutEvents(events []*EventMemory) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if (e.Quantity == nil) != (e.Unit == nil) {
			return memerr.New(memerr.KindValidation, "quantity/unit must both be present or both absent")
		}
		if e.Confidence < 0 || e.Confidence > 1 {
			return memerr.New(memerr.KindValidation, "confidence out of [0,1] range")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "begin tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO events (id, raw_memory_id, owner, timestamp, actor, action, target, quantity, unit, confidence, extractor_method, extractor_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "prepare insert event", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.ID, e.RawMemoryID, e.Owner, e.Timestamp, e.Actor, e.Action, e.Target,
			e.Quantity, e.Unit, e.Confidence, e.ExtractorMethod, e.ExtractorVer); err != nil {
			return memerr.Wrap(memerr.KindStorage, "insert event", err)
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(...interface{}) error
}

func scanEvent(row scanner) (*EventMemory, error) {
	var e EventMemory
	var actor sql.NullString
	var quantity sql.NullFloat64
	var unit sql.NullString

	if err := row.Scan(&e.ID, &e.RawMemoryID, &e.Owner, &e.Timestamp, &actor, &e.Action, &e.Target,
		&quantity, &unit, &e.Confidence, &e.ExtractorMethod, &e.ExtractorVer); err != nil {
		return nil, err
	}
	if actor.Valid {
		e.Actor = &actor.String
	}
	if quantity.Valid {
		e.Quantity = &quantity.Float64
	}
	if unit.Valid {
		e.Unit = &unit.String
	}
	return &e, nil
}

const eventCols = `id, raw_memory_id, owner, timestamp, actor, action, target, quantity, unit, confidence, extractor_method, extractor_version`

func (s *SQLiteStore) GetEvent(id string) (*EventMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, memerr.New(memerr.KindNotFound, "event not found: "+id)
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "get event", err)
	}
	return e, nil
}

func (s *SQLiteStore) ListEventsByRawMemory(rawID string) ([]*EventMemory, error) {
	return s.queryEvents(`SELECT `+eventCols+` FROM events WHERE raw_memory_id = ? ORDER BY timestamp`, rawID)
}

func (s *SQLiteStore) ListEventsInWindow(owner string, start, end int64) ([]*EventMemory, error) {
	return s.queryEvents(`SELECT `+eventCols+` FROM events WHERE owner = ? AND timestamp >= ? AND timestamp <= ? ORDER BY timestamp`, owner, start, end)
}

func (s *SQLiteStore) ListEventsForEntity(owner, entityID string) ([]*EventMemory, error) {
	// Entities are linked to events indirectly (via target/actor text match
	// on canonical name), resolved one layer up in pkg/entity; here we
	// expose the raw window query the caller narrows.
	return s.queryEvents(`SELECT `+eventCols+` FROM events WHERE owner = ? AND (target = ? OR actor = ?) ORDER BY timestamp`, owner, entityID, entityID)
}

func (s *SQLiteStore) queryEvents(query string, args ...interface{}) ([]*EventMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "query events", err)
	}
	defer rows.Close()

	var out []*EventMemory
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan event", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// Entities
// =============================================================================

func (s *SQLiteStore) UpsertEntity(e *Entity) error {
	attrs, err := marshalJSON(e.Attributes)
	if err != nil {
		return memerr.Wrap(memerr.KindValidation, "marshal attributes", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO entities (id, owner, canonical_name, type, attributes, first_seen, last_seen, occurrence_count, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, canonical_name) DO UPDATE SET
			type = excluded.type,
			attributes = excluded.attributes,
			last_seen = excluded.last_seen,
			occurrence_count = excluded.occurrence_count,
			confidence = excluded.confidence`,
		e.ID, e.Owner, e.CanonicalName, string(e.Type), nullableString(attrs),
		e.FirstSeen, e.LastSeen, e.OccurrenceCount, e.Confidence)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "upsert entity", err)
	}
	return nil
}

func scanEntity(row scanner) (*Entity, error) {
	var e Entity
	var typ string
	var attrs sql.NullString

	if err := row.Scan(&e.ID, &e.Owner, &e.CanonicalName, &typ, &attrs,
		&e.FirstSeen, &e.LastSeen, &e.OccurrenceCount, &e.Confidence); err != nil {
		return nil, err
	}
	e.Type = EntityType(typ)
	e.Attributes = map[string]AttributeValue{}
	if attrs.Valid && attrs.String != "" {
		if err := json.Unmarshal([]byte(attrs.String), &e.Attributes); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

const entityCols = `id, owner, canonical_name, type, attributes, first_seen, last_seen, occurrence_count, confidence`

func (s *SQLiteStore) GetEntity(id string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT `+entityCols+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, memerr.New(memerr.KindNotFound, "entity not found: "+id)
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "get entity", err)
	}
	return e, nil
}

func (s *SQLiteStore) GetEntityByName(owner, canonicalName string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT `+entityCols+` FROM entities WHERE owner = ? AND canonical_name = ?`, owner, canonicalName)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "get entity by name", err)
	}
	return e, nil
}

func (s *SQLiteStore) ListEntities(owner string) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+entityCols+` FROM entities WHERE owner = ?`, owner)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "list entities", err)
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan entity", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// Entity relations
// =============================================================================

func (s *SQLiteStore) UpsertRelation(r *EntityRelation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO entity_relations (id, owner, source_id, target_id, relation_type, confidence, strength, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, source_id, target_id, relation_type) DO UPDATE SET
			confidence = excluded.confidence,
			strength = excluded.strength,
			last_seen = excluded.last_seen`,
		r.ID, r.Owner, r.SourceID, r.TargetID, r.RelationType, r.Confidence, r.Strength, r.FirstSeen, r.LastSeen)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "upsert relation", err)
	}
	return nil
}

func scanRelation(row scanner) (*EntityRelation, error) {
	var r EntityRelation
	if err := row.Scan(&r.ID, &r.Owner, &r.SourceID, &r.TargetID, &r.RelationType, &r.Confidence, &r.Strength, &r.FirstSeen, &r.LastSeen); err != nil {
		return nil, err
	}
	return &r, nil
}

const relationCols = `id, owner, source_id, target_id, relation_type, confidence, strength, first_seen, last_seen`

func (s *SQLiteStore) GetRelation(owner, sourceID, targetID, relType string) (*EntityRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT `+relationCols+` FROM entity_relations WHERE owner = ? AND source_id = ? AND target_id = ? AND relation_type = ?`,
		owner, sourceID, targetID, relType)
	r, err := scanRelation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "get relation", err)
	}
	return r, nil
}

// ListAllRelations returns every relation belonging to owner, used by
// pkg/exporter to build a full user data export.
func (s *SQLiteStore) ListAllRelations(owner string) ([]*EntityRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+relationCols+` FROM entity_relations WHERE owner = ?`, owner)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "list all relations", err)
	}
	defer rows.Close()

	var out []*EntityRelation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan relation", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListRelationsForEntity(owner, entityID string, minStrength float64) ([]*EntityRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT `+relationCols+` FROM entity_relations
		WHERE owner = ? AND (source_id = ? OR target_id = ?) AND strength >= ?`,
		owner, entityID, entityID, minStrength)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "list relations", err)
	}
	defer rows.Close()

	var out []*EntityRelation
	for rows.Next() {
		r, err := scanRelation(rows)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan relation", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// Derived views
// =============================================================================

func (s *SQLiteStore) CreateView(v *DerivedView) error {
	supporting, err := marshalJSON(v.SupportingEventIDs)
	if err != nil {
		return memerr.Wrap(memerr.KindValidation, "marshal supporting events", err)
	}
	counter, err := marshalJSON(v.CounterEvidenceIDs)
	if err != nil {
		return memerr.Wrap(memerr.KindValidation, "marshal counter evidence", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO derived_views (id, owner, hypothesis, view_type, supporting_event_ids, evidence_count,
			confidence, validation_count, counter_evidence_ids, counter_evidence_count, status, created_at, expires_at, source, promoted_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Owner, v.Hypothesis, string(v.ViewType), nullableString(supporting), v.EvidenceCount,
		v.Confidence, v.ValidationCount, nullableString(counter), v.CounterEvidenceCount,
		string(v.Status), v.CreatedAt, v.ExpiresAt, v.Source, v.PromotedTo)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "create view", err)
	}
	return nil
}

func scanView(row scanner) (*DerivedView, error) {
	var v DerivedView
	var viewType, status string
	var supporting, counter sql.NullString
	var source sql.NullString
	var promotedTo sql.NullString

	if err := row.Scan(&v.ID, &v.Owner, &v.Hypothesis, &viewType, &supporting, &v.EvidenceCount,
		&v.Confidence, &v.ValidationCount, &counter, &v.CounterEvidenceCount,
		&status, &v.CreatedAt, &v.ExpiresAt, &source, &promotedTo); err != nil {
		return nil, err
	}
	v.ViewType = ViewType(viewType)
	v.Status = ViewStatus(status)
	if source.Valid {
		v.Source = source.String
	}
	if promotedTo.Valid {
		v.PromotedTo = &promotedTo.String
	}
	if supporting.Valid && supporting.String != "" {
		json.Unmarshal([]byte(supporting.String), &v.SupportingEventIDs)
	}
	if counter.Valid && counter.String != "" {
		json.Unmarshal([]byte(counter.String), &v.CounterEvidenceIDs)
	}
	return &v, nil
}

const viewCols = `id, owner, hypothesis, view_type, supporting_event_ids, evidence_count, confidence, validation_count, counter_evidence_ids, counter_evidence_count, status, created_at, expires_at, source, promoted_to`

func (s *SQLiteStore) GetView(id string) (*DerivedView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT `+viewCols+` FROM derived_views WHERE id = ?`, id)
	v, err := scanView(row)
	if err == sql.ErrNoRows {
		return nil, memerr.New(memerr.KindNotFound, "view not found: "+id)
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "get view", err)
	}
	return v, nil
}

// UpdateView persists the full row. Per spec §4.5/§8, callers must not
// mutate any field but promoted_to once a view has left Active status;
// that invariant is enforced by pkg/cognitive, not here.
func (s *SQLiteStore) UpdateView(v *DerivedView) error {
	supporting, err := marshalJSON(v.SupportingEventIDs)
	if err != nil {
		return memerr.Wrap(memerr.KindValidation, "marshal supporting events", err)
	}
	counter, err := marshalJSON(v.CounterEvidenceIDs)
	if err != nil {
		return memerr.Wrap(memerr.KindValidation, "marshal counter evidence", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`
		UPDATE derived_views SET hypothesis=?, view_type=?, supporting_event_ids=?, evidence_count=?,
			confidence=?, validation_count=?, counter_evidence_ids=?, counter_evidence_count=?,
			status=?, expires_at=?, source=?, promoted_to=?
		WHERE id = ?`,
		v.Hypothesis, string(v.ViewType), nullableString(supporting), v.EvidenceCount,
		v.Confidence, v.ValidationCount, nullableString(counter), v.CounterEvidenceCount,
		string(v.Status), v.ExpiresAt, v.Source, v.PromotedTo, v.ID)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "update view", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return memerr.New(memerr.KindNotFound, "view not found: "+v.ID)
	}
	return nil
}

func (s *SQLiteStore) ListActiveViews(owner string) ([]*DerivedView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+viewCols+` FROM derived_views WHERE owner = ? AND status = ?`, owner, string(ViewActive))
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "list active views", err)
	}
	defer rows.Close()

	var out []*DerivedView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan view", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListAllViews returns every view belonging to owner regardless of
// status, used by pkg/exporter to build a full user data export.
func (s *SQLiteStore) ListAllViews(owner string) ([]*DerivedView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+viewCols+` FROM derived_views WHERE owner = ?`, owner)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "list all views", err)
	}
	defer rows.Close()

	var out []*DerivedView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan view", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListExpiringViews(before int64) ([]*DerivedView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+viewCols+` FROM derived_views WHERE status = ? AND expires_at <= ?`, string(ViewActive), before)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "list expiring views", err)
	}
	defer rows.Close()

	var out []*DerivedView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan view", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// =============================================================================
// Stable concepts
// =============================================================================

// CreateConcept inserts a concept row. Callers (pkg/cognitive) are
// responsible for deciding the new version and parent id; both the
// parent deprecation and the new insert are wrapped in one transaction
// so they commit or roll back together (spec §4.5/§5).
func (s *SQLiteStore) CreateConcept(c *StableConcept) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "begin tx", err)
	}
	defer tx.Rollback()

	if c.ParentConceptID != nil {
		if _, err := tx.Exec(`UPDATE stable_concepts SET is_deprecated = 1, deprecated_at = ? WHERE id = ?`,
			c.CreatedAt, *c.ParentConceptID); err != nil {
			return memerr.Wrap(memerr.KindStorage, "deprecate parent concept", err)
		}
	}

	var lastAccessedAt interface{}
	if c.LastAccessedAt != 0 {
		lastAccessedAt = c.LastAccessedAt
	}

	_, err = tx.Exec(`
		INSERT INTO stable_concepts (id, owner, canonical_name, display_name, concept_type, description, definition,
			version, parent_concept_id, is_deprecated, promoted_from_view_id, promotion_confidence,
			created_at, updated_at, deprecated_at, access_count, last_accessed_at, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Owner, c.CanonicalName, c.DisplayName, c.ConceptType, c.Description, string(c.Definition),
		c.Version, c.ParentConceptID, c.IsDeprecated, c.PromotedFromViewID, c.PromotionConfidence,
		c.CreatedAt, c.UpdatedAt, c.DeprecatedAt, c.AccessCount, lastAccessedAt, c.Source)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "create concept", err)
	}
	return tx.Commit()
}

func scanConcept(row scanner) (*StableConcept, error) {
	var c StableConcept
	var isDeprecated int
	var definition sql.NullString
	var parentID sql.NullString
	var deprecatedAt sql.NullInt64
	var lastAccessed sql.NullInt64
	var conceptType, description, source sql.NullString

	if err := row.Scan(&c.ID, &c.Owner, &c.CanonicalName, &c.DisplayName, &conceptType, &description, &definition,
		&c.Version, &parentID, &isDeprecated, &c.PromotedFromViewID, &c.PromotionConfidence,
		&c.CreatedAt, &c.UpdatedAt, &deprecatedAt, &c.AccessCount, &lastAccessed, &source); err != nil {
		return nil, err
	}
	c.IsDeprecated = isDeprecated != 0
	if conceptType.Valid {
		c.ConceptType = conceptType.String
	}
	if description.Valid {
		c.Description = description.String
	}
	if definition.Valid {
		c.Definition = json.RawMessage(definition.String)
	}
	if parentID.Valid {
		c.ParentConceptID = &parentID.String
	}
	if deprecatedAt.Valid {
		c.DeprecatedAt = &deprecatedAt.Int64
	}
	if lastAccessed.Valid {
		c.LastAccessedAt = lastAccessed.Int64
	}
	if source.Valid {
		c.Source = source.String
	}
	return &c, nil
}

const conceptCols = `id, owner, canonical_name, display_name, concept_type, description, definition, version, parent_concept_id, is_deprecated, promoted_from_view_id, promotion_confidence, created_at, updated_at, deprecated_at, access_count, last_accessed_at, source`

func (s *SQLiteStore) GetCurrentConcept(owner, canonicalName string) (*StableConcept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT `+conceptCols+` FROM stable_concepts WHERE owner = ? AND canonical_name = ? AND is_deprecated = 0`, owner, canonicalName)
	c, err := scanConcept(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "get current concept", err)
	}
	return c, nil
}

func (s *SQLiteStore) GetConcept(id string) (*StableConcept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT `+conceptCols+` FROM stable_concepts WHERE id = ?`, id)
	c, err := scanConcept(row)
	if err == sql.ErrNoRows {
		return nil, memerr.New(memerr.KindNotFound, "concept not found: "+id)
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "get concept", err)
	}
	return c, nil
}

// ListAllConcepts returns every concept version belonging to owner
// (both current and deprecated), used by pkg/exporter to build a full
// user data export.
func (s *SQLiteStore) ListAllConcepts(owner string) ([]*StableConcept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+conceptCols+` FROM stable_concepts WHERE owner = ? ORDER BY canonical_name, version`, owner)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "list all concepts", err)
	}
	defer rows.Close()

	var out []*StableConcept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan concept", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListConceptVersions(owner, canonicalName string) ([]*StableConcept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+conceptCols+` FROM stable_concepts WHERE owner = ? AND canonical_name = ? ORDER BY version`, owner, canonicalName)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "list concept versions", err)
	}
	defer rows.Close()

	var out []*StableConcept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "scan concept", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeprecateConcept(id string, deprecatedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE stable_concepts SET is_deprecated = 1, deprecated_at = ? WHERE id = ?`, deprecatedAt, id)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "deprecate concept", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return memerr.New(memerr.KindNotFound, "concept not found: "+id)
	}
	return nil
}

// TouchConceptAccess is a lazy, non-transactional single-row update per
// spec §4.5 — it deliberately does not share a transaction with the
// read that triggered it.
func (s *SQLiteStore) TouchConceptAccess(id string, accessedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE stable_concepts SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`, accessedAt, id)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "touch concept access", err)
	}
	return nil
}

// =============================================================================
// Plugin grants
// =============================================================================

func (s *SQLiteStore) PutPluginGrant(g *PluginGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO plugin_grants (plugin_id, name, version, permission, installed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(plugin_id) DO UPDATE SET name=excluded.name, version=excluded.version,
			permission=excluded.permission, installed_at=excluded.installed_at`,
		g.PluginID, g.Name, g.Version, g.Permission, g.InstalledAt)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "put plugin grant", err)
	}
	return nil
}

func (s *SQLiteStore) GetPluginGrant(pluginID string) (*PluginGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var g PluginGrant
	err := s.db.QueryRow(`SELECT plugin_id, name, version, permission, installed_at FROM plugin_grants WHERE plugin_id = ?`, pluginID).
		Scan(&g.PluginID, &g.Name, &g.Version, &g.Permission, &g.InstalledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "get plugin grant", err)
	}
	return &g, nil
}

// =============================================================================
// Audit log
// =============================================================================

// WriteAudit is independent of the ingestion transaction and never
// blocks the caller on failure beyond the write itself (spec §5, §7).
func (s *SQLiteStore) WriteAudit(e *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO audit_log (owner, action, detail, created_at) VALUES (?, ?, ?, ?)`,
		e.Owner, e.Action, nullableString(string(e.Detail)), e.CreatedAt)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "write audit", err)
	}
	return nil
}

func (s *SQLiteStore) CountAudit() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&n); err != nil {
		return 0, memerr.Wrap(memerr.KindStorage, "count audit", err)
	}
	return n, nil
}

// RotateAudit implements the count-based rotation left to the
// implementer by spec §9: once the table holds more than keep rows, the
// oldest rows beyond keep are trimmed (the 100k/90k thresholds spec.md
// names as acceptable correspond to a caller-chosen keep=90000 with a
// trigger at 100000, driven by the cron sweep in pkg/engine).
func (s *SQLiteStore) RotateAudit(keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		DELETE FROM audit_log WHERE id IN (
			SELECT id FROM audit_log ORDER BY id DESC LIMIT -1 OFFSET ?
		)`, keep)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "rotate audit", err)
	}
	return nil
}
