package harvest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// Runner is the part of Pipeline the scheduler drives.
type Runner interface {
	Run(ctx context.Context) (*domain.RunReport, error)
}

// Scheduler runs the extraction pipeline on a fixed interval.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

// NewScheduler creates a Scheduler that runs the pipeline every interval.
func NewScheduler(runner Runner, interval time.Duration, log *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("schedule interval must be positive")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron:   c,
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}

	if _, err := c.AddFunc("@every "+interval.String(), s.runExtraction); err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

// Start begins running scheduled extractions.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop cancels an active scheduled run before the next item and returns a
// context that is done once it has returned.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	s.cancel()
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// NextRun returns when the next extraction is due, or the zero time.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runExtraction() {
	s.log.Info("scheduled extraction starting")
	report, err := s.runner.Run(s.ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.log.Warn("scheduled extraction skipped, a run is already active")
	case err != nil:
		s.log.Error("scheduled extraction failed", "reason", report.Reason, "error", err)
	default:
		s.log.Info("scheduled extraction finished", "status", report.Status)
	}
}
