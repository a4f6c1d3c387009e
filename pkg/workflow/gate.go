package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

// Gate decides whether a matched workflow may launch now. It checks the schedule window,
// the once-per-stage rule of DAYS_IN_STAGE workflows, and the execution caps.
type Gate struct {
	executions persistence.ExecutionRepository
	limiter    Limiter
	location   *time.Location
}

// NewGate creates a gate evaluating schedules in location. A nil limiter counts stored
// executions.
func NewGate(executions persistence.ExecutionRepository, limiter Limiter, location *time.Location) *Gate {
	if location == nil {
		location = time.UTC
	}

	if limiter == nil {
		limiter = NewStoreLimiter(executions, location)
	}

	return &Gate{executions: executions, limiter: limiter, location: location}
}

// Admit returns a reservation when workflow may run for candidate at now, a *Suppression
// when it must not, or an error when gating itself failed.
func (g *Gate) Admit(ctx context.Context, workflow *models.Workflow, candidate *models.Candidate, now time.Time) (Reservation, error) {
	if schedule := workflow.Schedule; schedule != nil && !schedule.Allows(now.In(g.location)) {
		detail := "outside the allowed days and hours"
		if !schedule.Enabled {
			detail = "schedule disabled"
		}

		return nil, &Suppression{Reason: ReasonSchedule, Detail: detail}
	}

	if workflow.Trigger.Type() == models.TriggerDaysInStage && candidate.StageEnteredAt != nil {
		count, err := g.executions.Count(ctx, models.ExecutionFilter{
			WorkflowID:  workflow.ID,
			CandidateID: candidate.ID,
			Since:       *candidate.StageEnteredAt,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count executions in stage: %w", err)
		}

		if count > 0 {
			return nil, &Suppression{Reason: ReasonStageOnce, Detail: "already ran in the current stage"}
		}
	}

	return g.limiter.Reserve(ctx, workflow, candidate.ID, now)
}
