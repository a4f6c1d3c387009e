package file

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

// ExecutionRepository stores execution audit records as JSON files.
type ExecutionRepository struct {
	store *Persistence
}

func (er *ExecutionRepository) Create(_ context.Context, execution *models.WorkflowExecution) error {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	var existing models.WorkflowExecution

	err := er.store.read(executionsDir, execution.ID, &existing)
	if err == nil {
		return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	if !errors.Is(err, errRecordNotFound) {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return er.store.write(executionsDir, execution.ID, execution)
}

func (er *ExecutionRepository) Complete(_ context.Context, execution *models.WorkflowExecution) error {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	var existing models.WorkflowExecution

	err := er.store.read(executionsDir, execution.ID, &existing)
	if errors.Is(err, errRecordNotFound) {
		return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return persistence.NewExecutionError("Complete", execution.ID, err)
	}

	if existing.Status != models.ExecutionStatusRunning {
		return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionClosed)
	}

	return er.store.write(executionsDir, execution.ID, execution)
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	err := er.store.read(executionsDir, id, &execution)
	if errors.Is(err, errRecordNotFound) {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	executions, err := er.all(func(execution *models.WorkflowExecution) bool {
		return execution.WorkflowID == workflowID
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}

func (er *ExecutionRepository) Count(_ context.Context, filter models.ExecutionFilter) (int, error) {
	executions, err := er.all(func(execution *models.WorkflowExecution) bool {
		if filter.WorkflowID != "" && execution.WorkflowID != filter.WorkflowID {
			return false
		}

		if filter.CandidateID != "" && execution.CandidateID != filter.CandidateID {
			return false
		}

		return filter.Since.IsZero() || !execution.StartedAt.Before(filter.Since)
	})
	if err != nil {
		return 0, err
	}

	return len(executions), nil
}

func (er *ExecutionRepository) all(keep func(*models.WorkflowExecution) bool) ([]*models.WorkflowExecution, error) {
	ids, err := er.store.ids(executionsDir)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.WorkflowExecution, 0)

	for _, id := range ids {
		var execution models.WorkflowExecution

		err := er.store.read(executionsDir, id, &execution)
		if errors.Is(err, errRecordNotFound) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to load execution %s: %w", id, err)
		}

		if keep(&execution) {
			executions = append(executions, &execution)
		}
	}

	return executions, nil
}
