package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/recruitflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)
		candidateErr := persistence.NewCandidateError("GetByID", "candidate-1", persistence.ErrCandidateNotFound)
		executionErr := persistence.NewExecutionError("Complete", "exec-1", persistence.ErrExecutionClosed)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsCandidateNotFound(candidateErr))
		assert.False(t, persistence.IsExecutionNotFound(executionErr))
		assert.True(t, errors.Is(executionErr, persistence.ErrExecutionClosed))
		assert.True(t, persistence.IsNotFound(fmt.Errorf("load: %w", candidateErr)))
	})

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("Save", "workflow-123", persistence.ErrTriggerTypeChanged)

		assert.Contains(t, err.Error(), "Save")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "trigger type cannot change")
	})

	t.Run("candidate error contains context", func(t *testing.T) {
		err := persistence.NewCandidateError("Save", "candidate-9", errors.New("disk full"))

		assert.Contains(t, err.Error(), "candidate-9")
		assert.Contains(t, err.Error(), "disk full")
	})
}
