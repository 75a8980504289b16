package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vigilapp/vigil/internal/archive"
	"github.com/vigilapp/vigil/internal/ping"
	"github.com/vigilapp/vigil/internal/store"
)

// Config holds the cron expressions for the background jobs. All specs are
// evaluated in UTC.
type Config struct {
	GenerateSpec string
	SweepSpec    string
	ArchiveSpec  string
}

// Scheduler drives the recurring jobs: daily ping generation, the missed
// sweep, the nightly archive, and sent-log cleanup.
type Scheduler struct {
	cron    *cron.Cron
	cfg     Config
	gen     *ping.Generator
	sweeper *ping.Sweeper
	archive *archive.Manager
	push    *store.PushStore
	logger  *slog.Logger
}

func New(cfg Config, gen *ping.Generator, sw *ping.Sweeper, am *archive.Manager, push *store.PushStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		cfg:     cfg,
		gen:     gen,
		sweeper: sw,
		archive: am,
		push:    push,
		logger:  logger.With("component", "scheduler"),
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.GenerateSpec, s.runGenerate); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.SweepSpec, s.runSweep); err != nil {
		return err
	}
	if s.archive.Enabled() {
		if _, err := s.cron.AddFunc(s.cfg.ArchiveSpec, s.runArchive); err != nil {
			return err
		}
	}
	// Weekly sent-log trim, Sundays at 03:10 UTC.
	if _, err := s.cron.AddFunc("10 3 * * 0", s.runCleanup); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"generate", s.cfg.GenerateSpec,
		"sweep", s.cfg.SweepSpec,
		"archive_enabled", s.archive.Enabled(),
	)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runGenerate() {
	if _, err := s.gen.Run(nil); err != nil {
		s.logger.Error("scheduled generation", "error", err)
	}
}

func (s *Scheduler) runSweep() {
	if _, err := s.sweeper.Run(); err != nil {
		s.logger.Error("scheduled sweep", "error", err)
	}
}

func (s *Scheduler) runArchive() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := s.archive.Run(ctx); err != nil {
		s.logger.Error("scheduled archive", "error", err)
	}
}

func (s *Scheduler) runCleanup() {
	before := time.Now().UTC().AddDate(0, 0, -90)
	if err := s.push.CleanupSent(before); err != nil {
		s.logger.Error("sent-log cleanup", "error", err)
	}
}
