// Package engine wires every subsystem — ingest, extraction, entity
// resolution, pattern detection, the cognitive store, the plugin
// runtime, the resource manager, and the data lifecycle archiver —
// into the single library API named by spec.md §6 (Ingest, Query,
// Timeline, Stats), bundled as one context object rather than package
// globals (§9). Grounded on the teacher's `cmd/wasm/main.go`, which
// wires `pool`/`response`/`docstore` the same way behind one struct.
package engine

import (
	"context"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/kittclouds/memoria/internal/store"
	"github.com/kittclouds/memoria/pkg/cache"
	"github.com/kittclouds/memoria/pkg/cognitive"
	"github.com/kittclouds/memoria/pkg/cryptobox"
	"github.com/kittclouds/memoria/pkg/entity"
	"github.com/kittclouds/memoria/pkg/exporter"
	"github.com/kittclouds/memoria/pkg/extraction"
	"github.com/kittclouds/memoria/pkg/ingest"
	"github.com/kittclouds/memoria/pkg/lifecycle"
	"github.com/kittclouds/memoria/pkg/memerr"
	"github.com/kittclouds/memoria/pkg/pattern"
	"github.com/kittclouds/memoria/pkg/plugin"
	"github.com/kittclouds/memoria/pkg/provider"
	"github.com/kittclouds/memoria/pkg/resource"
	"github.com/kittclouds/memoria/pkg/router"
	"github.com/kittclouds/memoria/pkg/view"
)

// Config tunes the engine's subsystems. Zero values fall back to each
// subsystem's own defaults, matching the teacher's functional-option
// constructors rather than a single giant options struct.
type Config struct {
	Location        *time.Location
	DefaultPlugin   string
	PatternWindow   pattern.Config
	PatternLookback int // days, default 30
	Resource        resource.Config
	Lifecycle       lifecycle.Config
	Logger          *zap.Logger
}

// DefaultConfig returns sensible defaults for every embedded config.
func DefaultConfig() Config {
	return Config{
		Location:        time.UTC,
		DefaultPlugin:   "assistant",
		PatternWindow:   pattern.DefaultConfig(),
		PatternLookback: 30,
		Resource:        resource.DefaultConfig(),
		Lifecycle:       lifecycle.DefaultConfig(),
	}
}

// Engine bundles every memoria subsystem behind the library API a
// `cmd/` consumer (or an embedder) drives. It holds no global state;
// every method is safe to call concurrently across owners.
type Engine struct {
	store     store.Storer
	log       *zap.Logger
	cfg       Config
	ingest    *ingest.Store
	resolver  *entity.Resolver
	relations *entity.RelationLinker
	graph     *entity.Graph
	detector  *pattern.Detector
	cognitive *cognitive.Store
	runtime   *plugin.Runtime
	router    *router.Router
	resMgr    *resource.Manager
	scheduler *resource.Scheduler
	lifecycle *lifecycle.Manager
	exporter  *exporter.Exporter
	embCache  *cache.Embedding
	respCache *cache.Response
}

// New wires every subsystem over s. prov may be nil, in which case
// embedding backfill and the provider-first extraction path are
// skipped and the rule-based extractor runs alone. box may be nil to
// store plaintext.
func New(s store.Storer, prov provider.Provider, box *cryptobox.Box, cfg Config) (*Engine, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultPlugin == "" {
		cfg.DefaultPlugin = "assistant"
	}
	if cfg.PatternLookback <= 0 {
		cfg.PatternLookback = 30
	}
	if cfg.PatternWindow == (pattern.Config{}) {
		cfg.PatternWindow = pattern.DefaultConfig()
	}
	if cfg.Resource == (resource.Config{}) {
		cfg.Resource = resource.DefaultConfig()
	}
	if cfg.Lifecycle == (lifecycle.Config{}) {
		cfg.Lifecycle = lifecycle.DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	embCache := cache.NewEmbedding(0)
	respCache := cache.NewResponse(0)
	if prov != nil {
		prov = provider.NewCached(prov, embCache, respCache)
	}

	extractor, err := extraction.NewService(prov, cfg.Location)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindConfig, "build extraction service", err)
	}

	ingestOpts := []ingest.Option{ingest.WithExtractor(extractor), ingest.WithLogger(log)}
	if box != nil {
		ingestOpts = append(ingestOpts, ingest.WithBox(box))
	}
	if prov != nil {
		ingestOpts = append(ingestOpts, ingest.WithEmbeddingProvider(prov))
	}

	attrs := entity.NewAttributeExtractor()
	resolver := entity.NewResolver(s, attrs)
	relations := entity.NewRelationLinker(s)
	runtime := plugin.NewRuntime(s)

	resMgr := resource.New(cfg.Resource, nil)

	e := &Engine{
		store:     s,
		log:       log,
		cfg:       cfg,
		ingest:    ingest.New(s, ingestOpts...),
		resolver:  resolver,
		relations: relations,
		graph:     entity.NewGraph(s),
		detector:  pattern.NewDetector(s, cfg.PatternWindow),
		cognitive: cognitive.New(s),
		runtime:   runtime,
		router:    router.New(runtime, s, cfg.DefaultPlugin),
		resMgr:    resMgr,
		scheduler: resource.NewScheduler(resMgr),
		lifecycle: lifecycle.New(s, cfg.Lifecycle),
		exporter:  exporter.New(s),
		embCache:  embCache,
		respCache: respCache,
	}
	return e, nil
}

// Store exposes the underlying Storer for callers (e.g. cmd/memoryctl)
// that need direct read access beyond the four library operations.
func (e *Engine) Store() store.Storer { return e.store }

// InstallPlugin registers a plugin with the runtime under granted.
func (e *Engine) InstallPlugin(ctx context.Context, p plugin.Plugin, granted plugin.Permission) error {
	return e.runtime.Install(ctx, p, granted)
}

// IngestResult is what Ingest returns: the new raw memory id, any
// events the extractor derived from it, and the entities/relations the
// Entity Resolver grew while processing those events.
type IngestResult struct {
	ingest.Result
	LinkedEntities int
	LinkedRelations int
}

// Ingest persists in as a RawMemory, extracts events, and resolves any
// actor/target mentions in those events against the entity graph,
// growing relations between co-occurring entities (§4.1-§4.4 pipeline).
func (e *Engine) Ingest(ctx context.Context, owner string, in ingest.Input) (IngestResult, error) {
	res, err := e.ingest.Put(ctx, owner, in)
	if err != nil {
		return IngestResult{}, err
	}

	out := IngestResult{Result: res}
	for _, eventID := range res.EventIDs {
		ev, err := e.store.GetEvent(eventID)
		if err != nil {
			e.log.Warn("reread extracted event", zap.String("event_id", eventID), zap.Error(err))
			continue
		}

		target, err := e.resolver.Link(owner, ev.Target, ev.Action)
		if err != nil {
			e.log.Warn("link target entity", zap.String("event_id", eventID), zap.Error(err))
			continue
		}
		out.LinkedEntities++

		if ev.Actor != nil {
			actor, err := e.resolver.Link(owner, *ev.Actor, ev.Action)
			if err != nil {
				e.log.Warn("link actor entity", zap.String("event_id", eventID), zap.Error(err))
				continue
			}
			out.LinkedEntities++
			if _, err := e.relations.Link(owner, actor.ID, target.ID, "co_occurs", ev.Confidence); err != nil {
				e.log.Warn("link actor-target relation", zap.String("event_id", eventID), zap.Error(err))
				continue
			}
			out.LinkedRelations++
		}
	}

	if err := e.store.WriteAudit(&store.AuditEntry{Owner: owner, Action: "ingest", CreatedAt: e.now()}); err != nil {
		e.log.Warn("write audit entry", zap.Error(err))
	}
	return out, nil
}

// Query routes input through the Command Router: an explicit
// `@plugin query` addresses a specific installed plugin, anything else
// falls back to the configured default conversation plugin.
func (e *Engine) Query(ctx context.Context, owner, actor, input string) (string, error) {
	return e.router.Route(ctx, owner, actor, input)
}

// Timeline returns owner's events between start and end (unix millis).
func (e *Engine) Timeline(owner string, start, end int64) ([]*store.EventMemory, error) {
	return e.store.ListEventsInWindow(owner, start, end)
}

// Stats is the aggregate snapshot Stats() returns.
type Stats struct {
	RawMemoryTiers lifecycle.TierDistribution
	ActiveViews    int
	Concepts       int
	AuditEntries   int
}

// Stats reports owner's current memory-hierarchy footprint.
func (e *Engine) Stats(owner string) (Stats, error) {
	tiers, err := e.lifecycle.TierDistribution(owner)
	if err != nil {
		return Stats{}, err
	}
	views, err := e.store.ListActiveViews(owner)
	if err != nil {
		return Stats{}, err
	}
	concepts, err := e.store.ListAllConcepts(owner)
	if err != nil {
		return Stats{}, err
	}
	audits, err := e.store.CountAudit()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		RawMemoryTiers: tiers,
		ActiveViews:    len(views),
		Concepts:       len(concepts),
		AuditEntries:   audits,
	}, nil
}

// DetectPatterns runs a pattern-detection pass over owner's last
// PatternLookback days and materializes any surfaced pattern as a
// DerivedView, deduplicating against views already active.
func (e *Engine) DetectPatterns(owner string) (pattern.Result, int, error) {
	win := pattern.LastNDays(time.Now(), e.cfg.PatternLookback)
	result, err := e.detector.Detect(owner, win)
	if err != nil {
		return pattern.Result{}, 0, err
	}

	created := 0
	for _, p := range result.Patterns {
		v, ok := view.Generate(owner, p, time.Now())
		if !ok {
			continue
		}
		if err := e.store.CreateView(v); err != nil {
			e.log.Warn("create derived view", zap.String("pattern_id", p.ID), zap.Error(err))
			continue
		}
		created++
	}
	return result, created, nil
}

// SweepPromotions evaluates every active view for expiry and, for
// anything still active, attempts promotion through the Promotion
// Gate (§4.5).
func (e *Engine) SweepPromotions(owner string) (int, error) {
	active, err := e.store.ListActiveViews(owner)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	promoted := 0
	for _, v := range active {
		if changed, err := e.cognitive.EvaluateExpiry(v, now); err != nil {
			e.log.Warn("evaluate view expiry", zap.String("view_id", v.ID), zap.Error(err))
			continue
		} else if changed {
			continue
		}

		canonicalName := canonicalNameForView(v)
		concept, err := e.cognitive.TryPromote(owner, canonicalName, v, now)
		if err != nil {
			e.log.Warn("attempt promotion", zap.String("view_id", v.ID), zap.Error(err))
			continue
		}
		if concept != nil {
			promoted++
		}
	}
	return promoted, nil
}

// RecomputeRelationStrengths recomputes every one of owner's entity
// relation strengths from its co-occurrence window rather than the
// per-observation increment Ingest applies on each repeat (§4.4). It
// returns the number of relations successfully recomputed.
func (e *Engine) RecomputeRelationStrengths(owner string) (int, error) {
	relations, err := e.store.ListAllRelations(owner)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	recomputed := 0
	for _, r := range relations {
		if _, err := e.relations.RecomputeAndStore(owner, r.SourceID, r.TargetID, r.RelationType, entity.DefaultCoOccurrenceWindowHours, now); err != nil {
			e.log.Warn("recompute relation strength", zap.String("relation_id", r.ID), zap.Error(err))
			continue
		}
		recomputed++
	}
	return recomputed, nil
}

// ArchiveTier runs one Data Lifecycle sweep for owner ("" for every
// owner).
func (e *Engine) ArchiveTier(owner string) (lifecycle.ArchiveStats, error) {
	return e.lifecycle.RunArchiveTask(owner)
}

// RotateAuditLog trims the audit log to keep entries.
func (e *Engine) RotateAuditLog(keep int) error {
	return e.store.RotateAudit(keep)
}

// Export builds a full unencrypted data export for owner.
func (e *Engine) Export(owner string) (*exporter.UserDataExport, error) {
	return e.exporter.Export(owner)
}

// ExportEncrypted builds a checksummed, encrypted data export for
// owner using box.
func (e *Engine) ExportEncrypted(owner string, box *cryptobox.Box) (*exporter.EncryptedExport, error) {
	return e.exporter.ExportEncrypted(owner, box)
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

func (e *Engine) now() int64 { return time.Now().UnixMilli() }

// canonicalNameForView derives a StableConcept lookup key from a
// view's hypothesis text, so repeated detections of the same habit
// (same owner, same hypothesis) version the same concept chain instead
// of minting a new concept per view. Non-ASCII letters (Chinese verbs
// and targets chief among them) are kept verbatim rather than dropped,
// so two distinct CJK hypotheses sharing the same English prose
// template don't collapse onto the same slug.
func canonicalNameForView(v *store.DerivedView) string {
	out := make([]rune, 0, len(v.Hypothesis))
	lastDash := true
	for _, r := range v.Hypothesis {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			out = append(out, r-'A'+'a')
			lastDash = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			out = append(out, unicode.ToLower(r))
			lastDash = false
		case !lastDash:
			out = append(out, '_')
			lastDash = true
		}
	}
	for len(out) > 0 && out[len(out)-1] == '_' {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return v.ID
	}
	return string(out)
}
