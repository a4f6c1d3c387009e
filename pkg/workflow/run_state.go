package workflow

import (
	"context"
	"fmt"

	"github.com/qmuntal/stateless"

	"github.com/dukex/recruitflow/pkg/models"
)

const (
	triggerSucceed = "succeed"
	triggerFail    = "fail"
)

// runState guards the in-memory lifecycle of one execution: running moves to completed or
// failed exactly once, and terminal states accept no further transitions.
type runState struct {
	fsm *stateless.StateMachine
}

func newRunState() *runState {
	fsm := stateless.NewStateMachine(models.ExecutionStatusRunning)

	fsm.Configure(models.ExecutionStatusRunning).
		Permit(triggerSucceed, models.ExecutionStatusCompleted).
		Permit(triggerFail, models.ExecutionStatusFailed)

	fsm.Configure(models.ExecutionStatusCompleted)
	fsm.Configure(models.ExecutionStatusFailed)

	return &runState{fsm: fsm}
}

// close moves the run to its terminal status.
func (s *runState) close(ctx context.Context, failed bool) (models.ExecutionStatus, error) {
	trigger := triggerSucceed
	if failed {
		trigger = triggerFail
	}

	if err := s.fsm.FireCtx(ctx, trigger); err != nil {
		return s.status(), fmt.Errorf("failed to close run: %w", err)
	}

	return s.status(), nil
}

func (s *runState) status() models.ExecutionStatus {
	return s.fsm.MustState().(models.ExecutionStatus) //nolint:forcetypeassert // only ExecutionStatus states are configured
}
