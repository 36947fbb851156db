// Package lifecycle implements the Data Lifecycle component: Hot/Warm/
// Cold age-based tiering, gzip compression of warm content, and
// cold-tier summarization over a raw memory's derived events (§4.10).
// Grounded on original_source/src/rust/src/data_lifecycle.rs, adapted
// from its Postgres/MinIO shape to the teacher's SQLite store and to
// klauspost/compress instead of flate2.
package lifecycle

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/memerr"
)

// compressedPrefix tags a plaintext/ciphertext payload that has been
// gzip-compressed in place, so Get callers elsewhere in the system
// know to decompress before use.
const compressedPrefix = "gzip:"

// coldReferencePrefix tags a payload whose original content has been
// replaced in the database by a textual summary plus a reference key.
// The original content is not exported or copied anywhere else.
const coldReferencePrefix = "cold-ref:"

// Config tunes tier age thresholds and the archiver's behavior.
type Config struct {
	HotThresholdMonths  int64 // default 3
	WarmThresholdMonths int64 // default 24
	EnableCompression   bool
	BatchSize           int // rows processed per archive pass, per tier
}

// DefaultConfig matches the reference system's defaults.
func DefaultConfig() Config {
	return Config{
		HotThresholdMonths:  3,
		WarmThresholdMonths: 24,
		EnableCompression:   true,
		BatchSize:           500,
	}
}

// TierFor classifies createdAt against now using cfg's thresholds.
func (cfg Config) TierFor(createdAt, now time.Time) store.Tier {
	ageMonths := int64(now.Sub(createdAt).Hours() / 24 / 30)
	switch {
	case ageMonths < cfg.HotThresholdMonths:
		return store.TierHot
	case ageMonths < cfg.WarmThresholdMonths:
		return store.TierWarm
	default:
		return store.TierCold
	}
}

// ArchiveStats summarizes one archive sweep.
type ArchiveStats struct {
	RawMemoriesArchived int
	SpaceSavedBytes      int64
	Duration             time.Duration
	Timestamp            time.Time
}

// TierDistribution is a per-tier row count for one owner.
type TierDistribution struct {
	Hot, Warm, Cold, Total int
}

// Manager runs the periodic archiver and answers tier-distribution
// queries.
type Manager struct {
	store store.Storer
	cfg   Config
	now   func() time.Time
}

// New builds a Manager over s with cfg.
func New(s store.Storer, cfg Config) *Manager {
	return &Manager{store: s, cfg: cfg, now: time.Now}
}

// CompressText gzip-compresses data and base64-encodes the result,
// tagged with compressedPrefix so DecompressText can recognize it.
func CompressText(data string) (string, int, int, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		return "", 0, 0, memerr.Wrap(memerr.KindStorage, "create gzip writer", err)
	}
	if _, err := w.Write([]byte(data)); err != nil {
		return "", 0, 0, memerr.Wrap(memerr.KindStorage, "gzip write", err)
	}
	if err := w.Close(); err != nil {
		return "", 0, 0, memerr.Wrap(memerr.KindStorage, "gzip close", err)
	}
	encoded := compressedPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())
	return encoded, len(data), len(encoded), nil
}

// DecompressText reverses CompressText. Payloads without the
// compressed-prefix tag are returned unchanged, since not every row
// passed through this package gets compressed (e.g. cold-tier rows
// already replaced by a summary reference).
func DecompressText(data string) (string, error) {
	if len(data) < len(compressedPrefix) || data[:len(compressedPrefix)] != compressedPrefix {
		return data, nil
	}
	raw, err := base64.StdEncoding.DecodeString(data[len(compressedPrefix):])
	if err != nil {
		return "", memerr.Wrap(memerr.KindStorage, "decode compressed payload", err)
	}
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", memerr.Wrap(memerr.KindStorage, "open gzip reader", err)
	}
	defer r.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return "", memerr.Wrap(memerr.KindStorage, "gzip read", err)
	}
	return out.String(), nil
}

// Summary is a generated digest of a batch of events, produced before
// their raw memory is replaced by a cold-tier reference.
type Summary struct {
	TimeRangeStart  int64
	TimeRangeEnd    int64
	EventCount      int
	TopEntities     []string
	Text            string
	AvgEventsPerDay float64
}

// GenerateSummary builds a Summary over events, the same shape the
// original's generate_summary produces, adapted to Go idiom (an error
// return for the empty-input case instead of a panic).
func GenerateSummary(events []*store.EventMemory) (Summary, error) {
	if len(events) == 0 {
		return Summary{}, memerr.New(memerr.KindValidation, "no events to summarize")
	}

	start, end := events[0].Timestamp, events[0].Timestamp
	seen := make(map[string]struct{})
	var entities []string
	for _, e := range events {
		if e.Timestamp < start {
			start = e.Timestamp
		}
		if e.Timestamp > end {
			end = e.Timestamp
		}
		if e.Actor != nil {
			if _, ok := seen[*e.Actor]; !ok {
				seen[*e.Actor] = struct{}{}
				entities = append(entities, *e.Actor)
			}
		}
		if _, ok := seen[e.Target]; !ok {
			seen[e.Target] = struct{}{}
			entities = append(entities, e.Target)
		}
	}
	sort.Strings(entities)
	if len(entities) > 10 {
		entities = entities[:10]
	}

	days := float64(end-start) / float64(24*time.Hour/time.Millisecond)
	if days < 1 {
		days = 1
	}

	text := fmt.Sprintf("%d events recorded between %s and %s; frequent activity: %v",
		len(events),
		time.UnixMilli(start).UTC().Format("2006-01"),
		time.UnixMilli(end).UTC().Format("2006-01"),
		entities)

	return Summary{
		TimeRangeStart:  start,
		TimeRangeEnd:    end,
		EventCount:      len(events),
		TopEntities:     entities,
		Text:            text,
		AvgEventsPerDay: float64(len(events)) / days,
	}, nil
}

// RunArchiveTask moves Hot rows older than HotThresholdMonths to Warm
// (compressing content in place) and Warm rows older than
// WarmThresholdMonths to Cold (replacing content with a generated
// summary reference), for owner ("" for every owner).
func (m *Manager) RunArchiveTask(owner string) (ArchiveStats, error) {
	start := m.now()
	var archived int
	var saved int64

	hotCutoff := start.AddDate(0, -int(m.cfg.HotThresholdMonths), 0).UnixMilli()
	hotRows, err := m.store.ListRawMemoriesByTier(owner, store.TierHot, hotCutoff, m.cfg.BatchSize)
	if err != nil {
		return ArchiveStats{}, err
	}
	for _, r := range hotRows {
		before, after, err := m.archiveToWarm(r)
		if err != nil {
			return ArchiveStats{}, err
		}
		saved += int64(before - after)
		archived++
	}

	warmCutoff := start.AddDate(0, -int(m.cfg.WarmThresholdMonths), 0).UnixMilli()
	warmRows, err := m.store.ListRawMemoriesByTier(owner, store.TierWarm, warmCutoff, m.cfg.BatchSize)
	if err != nil {
		return ArchiveStats{}, err
	}
	for _, r := range warmRows {
		if err := m.archiveToCold(r); err != nil {
			return ArchiveStats{}, err
		}
		archived++
	}

	return ArchiveStats{
		RawMemoriesArchived: archived,
		SpaceSavedBytes:      saved,
		Duration:             m.now().Sub(start),
		Timestamp:            m.now(),
	}, nil
}

func (m *Manager) archiveToWarm(r *store.RawMemory) (before, after int, err error) {
	if !m.cfg.EnableCompression {
		return 0, 0, m.store.SetRawMemoryTier(r.ID, store.TierWarm)
	}

	switch {
	case r.Plaintext != nil:
		compressed, origLen, compLen, err := CompressText(*r.Plaintext)
		if err != nil {
			return 0, 0, err
		}
		if err := m.store.ReplaceRawMemoryContent(r.ID, &compressed, nil, store.TierWarm); err != nil {
			return 0, 0, err
		}
		return origLen, compLen, nil
	case r.Ciphertext != nil:
		compressed, origLen, compLen, err := CompressText(string(r.Ciphertext))
		if err != nil {
			return 0, 0, err
		}
		if err := m.store.ReplaceRawMemoryContent(r.ID, nil, []byte(compressed), store.TierWarm); err != nil {
			return 0, 0, err
		}
		return origLen, compLen, nil
	}
	return 0, 0, m.store.SetRawMemoryTier(r.ID, store.TierWarm)
}

func (m *Manager) archiveToCold(r *store.RawMemory) error {
	events, err := m.store.ListEventsByRawMemory(r.ID)
	if err != nil {
		return err
	}

	var text string
	if len(events) > 0 {
		summary, err := GenerateSummary(events)
		if err != nil {
			return err
		}
		text = summary.Text
	} else {
		text = "no derived events"
	}
	reference := coldReferencePrefix + r.ID + " " + text
	return m.store.ReplaceRawMemoryContent(r.ID, &reference, nil, store.TierCold)
}

// TierDistribution reports how many of owner's raw memories sit in
// each tier right now.
func (m *Manager) TierDistribution(owner string) (TierDistribution, error) {
	counts, err := m.store.CountRawMemoriesByTier(owner)
	if err != nil {
		return TierDistribution{}, err
	}
	return TierDistribution{
		Hot:   counts[store.TierHot],
		Warm:  counts[store.TierWarm],
		Cold:  counts[store.TierCold],
		Total: counts[store.TierHot] + counts[store.TierWarm] + counts[store.TierCold],
	}, nil
}
