package engine

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kittclouds/memoria/pkg/resource"
)

// CronSchedule names the five-field cron expressions driving the
// background sweeps. Defaults are conservative: pattern detection and
// promotion run hourly, archiving and audit rotation run once a day,
// since both touch every row for an owner and should not overlap a
// burst of live ingestion.
type CronSchedule struct {
	PatternDetection  string // default "0 * * * *"
	PromotionSweep    string // default "15 * * * *"
	RelationRecompute string // default "45 * * * *"
	TierArchive       string // default "0 3 * * *"
	AuditRotation     string // default "30 3 * * *"
	RotationKeep      int    // default 90_000, per audit.rs's rotation_threshold
}

// DefaultCronSchedule matches the reference system's cadences.
func DefaultCronSchedule() CronSchedule {
	return CronSchedule{
		PatternDetection:  "0 * * * *",
		PromotionSweep:    "15 * * * *",
		RelationRecompute: "45 * * * *",
		TierArchive:       "0 3 * * *",
		AuditRotation:     "30 3 * * *",
		RotationKeep:      90_000,
	}
}

// Scheduler runs the engine's five periodic sweeps on a cron timer,
// each gated through the Resource Manager's circuit breaker so a
// memory-pressured install sheds non-critical background work instead
// of letting it pile up against live ingestion (§4.9, §5).
type Scheduler struct {
	engine *Engine
	cron   *cron.Cron
	gate   *resource.Scheduler
	sched  CronSchedule
}

// NewScheduler builds a Scheduler over e using sched's cadences. owners
// lists every owner the sweeps should run for; an empty slice means
// "every owner" for the sweeps that support it (archive, audit).
func NewScheduler(e *Engine, sched CronSchedule, owners []string) *Scheduler {
	s := &Scheduler{
		engine: e,
		cron:   cron.New(),
		gate:   resource.NewScheduler(e.resMgr),
		sched:  sched,
	}

	s.cron.AddFunc(sched.PatternDetection, func() { s.runPerOwner(resource.High, owners, s.runPatternDetection) })
	s.cron.AddFunc(sched.PromotionSweep, func() { s.runPerOwner(resource.Medium, owners, s.runPromotionSweep) })
	s.cron.AddFunc(sched.RelationRecompute, func() { s.runPerOwner(resource.Low, owners, s.runRelationRecompute) })
	s.cron.AddFunc(sched.TierArchive, func() { s.runOnce(resource.Low, "tier_archive", s.runTierArchive) })
	s.cron.AddFunc(sched.AuditRotation, func() { s.runOnce(resource.Low, "audit_rotation", s.runAuditRotation) })
	return s
}

// Start begins running scheduled sweeps in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the cron timer and waits for any in-flight sweep to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

func (s *Scheduler) runPerOwner(priority resource.TaskPriority, owners []string, fn func(owner string) error) {
	for _, owner := range owners {
		task := resource.Task{ID: "owner_sweep", Priority: priority, EstimatedMemoryMB: 64}
		allowed, err := s.gate.ShouldSchedule(task)
		if err != nil {
			s.engine.log.Warn("resource gate check failed", zap.Error(err))
			continue
		}
		if !allowed {
			s.engine.log.Info("sweep skipped under resource pressure", zap.String("owner", owner))
			continue
		}
		if err := fn(owner); err != nil {
			s.engine.log.Warn("scheduled sweep failed", zap.String("owner", owner), zap.Error(err))
		}
	}
}

func (s *Scheduler) runOnce(priority resource.TaskPriority, name string, fn func() error) {
	task := resource.Task{ID: name, Priority: priority, EstimatedMemoryMB: 128}
	allowed, err := s.gate.ShouldSchedule(task)
	if err != nil {
		s.engine.log.Warn("resource gate check failed", zap.String("task", name), zap.Error(err))
		return
	}
	if !allowed {
		s.engine.log.Info("sweep skipped under resource pressure", zap.String("task", name))
		return
	}
	if err := fn(); err != nil {
		s.engine.log.Warn("scheduled sweep failed", zap.String("task", name), zap.Error(err))
	}
}

func (s *Scheduler) runPatternDetection(owner string) error {
	_, created, err := s.engine.DetectPatterns(owner)
	if err != nil {
		return err
	}
	if created > 0 {
		s.engine.log.Info("pattern detection created views", zap.String("owner", owner), zap.Int("count", created))
	}
	return nil
}

func (s *Scheduler) runPromotionSweep(owner string) error {
	promoted, err := s.engine.SweepPromotions(owner)
	if err != nil {
		return err
	}
	if promoted > 0 {
		s.engine.log.Info("promotion sweep promoted concepts", zap.String("owner", owner), zap.Int("count", promoted))
	}
	return nil
}

func (s *Scheduler) runRelationRecompute(owner string) error {
	recomputed, err := s.engine.RecomputeRelationStrengths(owner)
	if err != nil {
		return err
	}
	if recomputed > 0 {
		s.engine.log.Info("relation strength recompute completed", zap.String("owner", owner), zap.Int("count", recomputed))
	}
	return nil
}

func (s *Scheduler) runTierArchive() error {
	stats, err := s.engine.ArchiveTier("")
	if err != nil {
		return err
	}
	s.engine.log.Info("tier archive completed", zap.Int("archived", stats.RawMemoriesArchived), zap.Int64("bytes_saved", stats.SpaceSavedBytes))
	return nil
}

func (s *Scheduler) runAuditRotation() error {
	keep := s.sched.RotationKeep
	if keep <= 0 {
		keep = 90_000
	}
	count, err := s.engine.store.CountAudit()
	if err != nil {
		return err
	}
	if count < 100_000 {
		return nil
	}
	return s.engine.RotateAuditLog(keep)
}
