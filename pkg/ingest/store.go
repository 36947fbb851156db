// Package ingest implements the Raw Memory Store: the single entry
// point for turning a user input into a persisted RawMemory plus any
// events the Event Extractor derives from it (§4.1, §4.2).
package ingest

import (
	"context"
	"encoding/base64"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/cryptobox"
	"github.com/kittclouds/memoria/pkg/extraction"
	"github.com/kittclouds/memoria/pkg/memerr"
	"github.com/kittclouds/memoria/pkg/provider"
)

// Input is one user-submitted memory awaiting ingestion.
type Input struct {
	ContentType store.ContentType
	Text        string          // populated for ContentText
	Binary      []byte          // populated for ContentVoice/ContentImage/ContentDocument
	Metadata    map[string]any
	Timestamp   int64 // unix millis; 0 means "now"
}

// Result is what Put returns: the raw memory id plus any events
// extracted from it.
type Result struct {
	RawMemoryID string
	EventIDs    []string
}

// Store is the Raw Memory Store. Encryption is optional: pass a nil
// Box to persist plaintext.
type Store struct {
	store      store.Storer
	box        *cryptobox.Box
	provider   provider.Provider
	extractor  *extraction.Service
	log        *zap.Logger
	nowMillis  func() int64
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithBox enables symmetric encryption of plaintext/binary payloads.
func WithBox(box *cryptobox.Box) Option {
	return func(s *Store) { s.box = box }
}

// WithEmbeddingProvider enables best-effort embedding backfill on
// every text ingestion.
func WithEmbeddingProvider(p provider.Provider) Option {
	return func(s *Store) { s.provider = p }
}

// WithExtractor enables event extraction on every text ingestion.
func WithExtractor(e *extraction.Service) Option {
	return func(s *Store) { s.extractor = e }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides the time source (tests only).
func WithClock(now func() int64) Option {
	return func(s *Store) { s.nowMillis = now }
}

// New builds a Store over s with the given options.
func New(s store.Storer, opts ...Option) *Store {
	st := &Store{store: s, log: zap.NewNop()}
	for _, opt := range opts {
		opt(st)
	}
	if st.nowMillis == nil {
		st.nowMillis = defaultNowMillis
	}
	return st
}

// Put atomically persists in as a RawMemory: encrypted ciphertext or
// plaintext depending on whether a Box is configured, an optional
// embedding (best-effort, never fatal), and — for text content — any
// events the configured extractor derives from it. Event insertion and
// the raw row are treated as one logical unit: if event persistence
// fails, the raw row is rolled back so partial ingestion never leaks
// (§4.2 "partial ingestion is a fatal error").
func (s *Store) Put(ctx context.Context, owner string, in Input) (Result, error) {
	if err := s.validate(in); err != nil {
		return Result{}, err
	}

	raw := &store.RawMemory{
		ID:          uuid.NewString(),
		Owner:       owner,
		CreatedAt:   in.Timestamp,
		ContentType: in.ContentType,
	}
	if raw.CreatedAt == 0 {
		raw.CreatedAt = s.nowMillis()
	}
	if in.Metadata != nil {
		if encoded, err := marshalMetadata(in.Metadata); err == nil {
			raw.Metadata = encoded
		}
	}

	plaintext := s.payloadString(in)
	if s.box != nil {
		ciphertext, err := s.box.EncryptString(plaintext)
		if err != nil {
			return Result{}, memerr.Wrap(memerr.KindEncryption, "encrypt raw memory", err)
		}
		raw.Ciphertext = ciphertext
	} else {
		raw.Plaintext = &plaintext
	}

	if err := s.store.PutRawMemory(raw); err != nil {
		return Result{}, err
	}

	s.backfillEmbedding(ctx, raw.ID, plaintext)

	eventIDs, err := s.extractEvents(raw, plaintext)
	if err != nil {
		if delErr := s.store.DeleteRawMemory(raw.ID); delErr != nil {
			s.log.Error("rollback raw memory after event extraction failure", zap.String("raw_id", raw.ID), zap.Error(delErr))
		}
		return Result{}, err
	}

	return Result{RawMemoryID: raw.ID, EventIDs: eventIDs}, nil
}

// Get returns the raw memory, decrypting it first if a Box is
// configured.
func (s *Store) Get(id string) (*store.RawMemory, string, error) {
	raw, err := s.store.GetRawMemory(id)
	if err != nil {
		return nil, "", err
	}
	if s.box == nil {
		if raw.Plaintext == nil {
			return raw, "", nil
		}
		return raw, *raw.Plaintext, nil
	}
	plaintext, err := s.box.DecryptString(raw.Ciphertext)
	if err != nil {
		return nil, "", memerr.Wrap(memerr.KindEncryption, "decrypt raw memory", err)
	}
	return raw, plaintext, nil
}

func (s *Store) validate(in Input) error {
	switch in.ContentType {
	case store.ContentText, store.ContentAction, store.ContentExternal:
		if in.Text == "" {
			return memerr.New(memerr.KindValidation, "text content requires non-empty Text")
		}
	case store.ContentVoice, store.ContentImage, store.ContentDocument:
		if len(in.Binary) == 0 {
			return memerr.New(memerr.KindValidation, "binary content requires non-empty Binary")
		}
	default:
		return memerr.New(memerr.KindValidation, "unknown content type: "+string(in.ContentType))
	}
	return nil
}

// payloadString reduces any Input shape to the single string the
// store persists: text content is used verbatim; binary content is
// base64-encoded so every modality gets uniform downstream treatment
// regardless of encryption state (§4.1).
func (s *Store) payloadString(in Input) string {
	if len(in.Binary) > 0 {
		return base64.StdEncoding.EncodeToString(in.Binary)
	}
	return in.Text
}

// backfillEmbedding computes and stores an embedding for plaintext.
// Failure here is logged and swallowed — the raw row persists with a
// null embedding (§4.1).
func (s *Store) backfillEmbedding(ctx context.Context, rawID, plaintext string) {
	if s.provider == nil || plaintext == "" {
		return
	}
	vec, err := s.provider.Embed(ctx, plaintext)
	if err != nil {
		s.log.Warn("embedding backfill failed", zap.String("raw_id", rawID), zap.Error(err))
		return
	}
	if err := s.store.BackfillEmbedding(rawID, vec); err != nil {
		s.log.Warn("embedding persist failed", zap.String("raw_id", rawID), zap.Error(err))
	}
}

// extractEvents runs the configured extractor over text content and
// persists the resulting EventMemory rows.
func (s *Store) extractEvents(raw *store.RawMemory, plaintext string) ([]string, error) {
	if s.extractor == nil || raw.ContentType != store.ContentText {
		return nil, nil
	}

	fallback := unixMillisToTime(raw.CreatedAt)
	extracted, timestamps, err := s.extractor.Extract(context.Background(), plaintext, fallback)
	if err != nil {
		return nil, err
	}
	if len(extracted) == 0 {
		return nil, nil
	}

	events := make([]*store.EventMemory, 0, len(extracted))
	ids := make([]string, 0, len(extracted))
	for i, ev := range extracted {
		id := uuid.NewString()
		events = append(events, &store.EventMemory{
			ID:              id,
			RawMemoryID:     raw.ID,
			Owner:           raw.Owner,
			Timestamp:       timestamps[i].UnixMilli(),
			Action:          ev.Action,
			Target:          ev.Target,
			Quantity:        ev.Quantity,
			Unit:            ev.Unit,
			Confidence:      ev.Confidence,
			ExtractorMethod: string(ev.Method),
			ExtractorVer:    extractorVersion,
		})
		ids = append(ids, id)
	}

	if err := s.store.PutEvents(events); err != nil {
		return nil, err
	}
	return ids, nil
}

const extractorVersion = "v1"
