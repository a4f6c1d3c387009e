package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

// Suppression reasons, used in logs and as the reason attribute of the suppressed counter.
const (
	ReasonSchedule      = "schedule_window"
	ReasonDailyCap      = "daily_cap"
	ReasonCandidateCap  = "candidate_cap"
	ReasonStageOnce     = "stage_once"
	ReasonStartFailed   = "start_failed"
	ReasonSubmitFailed  = "submit_failed"
	ReasonLimiterFailed = "limiter_failed"
)

// Suppression is returned by gating when a matched workflow must not run now.
type Suppression struct {
	Reason string
	Detail string
}

func (s *Suppression) Error() string {
	return fmt.Sprintf("run suppressed (%s): %s", s.Reason, s.Detail)
}

// Reservation holds capacity taken by a Limiter. It is released when the run could not be
// recorded, so the capacity is not lost.
type Reservation interface {
	Release(ctx context.Context) error
}

// Limiter enforces the daily and per-candidate execution caps of a workflow. Reserve
// returns a *Suppression when a cap is reached.
type Limiter interface {
	Reserve(ctx context.Context, workflow *models.Workflow, candidateID string, now time.Time) (Reservation, error)
}

type noReservation struct{}

func (noReservation) Release(context.Context) error { return nil }

// StoreLimiter counts recorded executions. It is atomic only while the caller holds the
// workflow lock until the run is recorded, which the Dispatcher does.
type StoreLimiter struct {
	executions persistence.ExecutionRepository
	location   *time.Location
}

func NewStoreLimiter(executions persistence.ExecutionRepository, location *time.Location) *StoreLimiter {
	if location == nil {
		location = time.UTC
	}

	return &StoreLimiter{executions: executions, location: location}
}

func (l *StoreLimiter) Reserve(ctx context.Context, workflow *models.Workflow, candidateID string, now time.Time) (Reservation, error) {
	if limit := workflow.MaxExecutionsPerDay; limit != nil {
		count, err := l.executions.Count(ctx, models.ExecutionFilter{
			WorkflowID: workflow.ID,
			Since:      StartOfDay(now, l.location),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count executions today: %w", err)
		}

		if count >= *limit {
			return nil, &Suppression{Reason: ReasonDailyCap, Detail: fmt.Sprintf("%d of %d executions today", count, *limit)}
		}
	}

	if limit := workflow.MaxExecutionsPerCandidate; limit != nil {
		count, err := l.executions.Count(ctx, models.ExecutionFilter{
			WorkflowID:  workflow.ID,
			CandidateID: candidateID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count executions for candidate: %w", err)
		}

		if count >= *limit {
			return nil, &Suppression{Reason: ReasonCandidateCap, Detail: fmt.Sprintf("%d of %d executions for candidate", count, *limit)}
		}
	}

	return noReservation{}, nil
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, location *time.Location) time.Time {
	local := t.In(location)

	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location)
}
