// Package sweeper periodically emits DAYS_IN_STAGE events for candidates that have spent at
// least a day in their current status.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

// DefaultSchedule runs the sweep at the top of every hour.
const DefaultSchedule = "0 * * * *"

var ErrAlreadyStarted = errors.New("sweeper already started")

// DaysInStageDispatcher receives the events produced by a sweep.
type DaysInStageDispatcher interface {
	OnDaysInStage(ctx context.Context, candidateID string, daysInStage int) []*models.WorkflowExecution
}

// Sweeper scans candidates on a cron schedule. Repeated sweeps are harmless: the dispatcher
// runs a DAYS_IN_STAGE workflow at most once per stage.
type Sweeper struct {
	candidates persistence.CandidateRepository
	dispatcher DaysInStageDispatcher
	schedule   string
	location   *time.Location
	now        func() time.Time
	logger     *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// WithLocation sets the time zone the cron schedule is read in.
func WithLocation(location *time.Location) Option {
	return func(s *Sweeper) {
		if location != nil {
			s.location = location
		}
	}
}

// New validates schedule, a standard five-field cron expression, and returns a stopped
// sweeper.
func New(candidates persistence.CandidateRepository, dispatcher DaysInStageDispatcher, schedule string, logger *slog.Logger, opts ...Option) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	_, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	sweeper := &Sweeper{
		candidates: candidates,
		dispatcher: dispatcher,
		schedule:   schedule,
		location:   time.UTC,
		now:        time.Now,
		logger:     logger.With("module", "sweeper", "schedule", schedule),
	}

	for _, opt := range opts {
		opt(sweeper)
	}

	return sweeper, nil
}

// Start schedules the sweep. Each sweep runs with ctx, so cancelling it aborts a sweep in
// progress; Stop prevents further ones.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	logger := cronLogger{logger: s.logger}

	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(logger),
		cron.WithChain(
			cron.SkipIfStillRunning(logger),
			cron.Recover(logger),
		),
	)

	_, err := s.cron.AddFunc(s.schedule, func() {
		_, err := s.Sweep(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "Sweep failed", "error", err)
		}
	})
	if err != nil {
		s.cron = nil

		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Sweeper started")

	return nil
}

// Stop unschedules the sweep and waits for a running one to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	scheduler := s.cron
	s.cron = nil
	s.mu.Unlock()

	if scheduler == nil {
		return nil
	}

	select {
	case <-scheduler.Stop().Done():
		s.logger.InfoContext(ctx, "Sweeper stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep emits one DAYS_IN_STAGE event for every candidate at least one whole day into its
// stage and returns the number of runs launched.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	candidates, err := s.candidates.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load candidates: %w", err)
	}

	now := s.now()
	launched := 0
	scanned := 0

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return launched, ctx.Err()
		}

		days, known := candidate.DaysInStage(now)
		if !known || days < 1 {
			continue
		}

		scanned++
		launched += len(s.dispatcher.OnDaysInStage(ctx, candidate.ID, days))
	}

	s.logger.InfoContext(ctx, "Sweep finished", "candidates", len(candidates), "in_stage", scanned, "launched", launched)

	return launched, nil
}

// cronLogger routes the scheduler's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
