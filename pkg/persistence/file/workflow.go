package file

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	store *Persistence
}

// GetAll returns every stored workflow ordered by creation time.
func (wr *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	ids, err := wr.store.ids(workflowsDir)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		var workflow models.Workflow

		err := wr.store.read(workflowsDir, id, &workflow)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, &workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := wr.store.read(workflowsDir, workflowID, &workflow)
	if errors.Is(err, errRecordNotFound) {
		return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", workflowID, err)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) GetActiveByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	workflows, err := wr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*models.Workflow, 0, len(workflows))

	for _, workflow := range workflows {
		if workflow.IsActive && workflow.Trigger.Type() == triggerType {
			active = append(active, workflow)
		}
	}

	return active, nil
}

// Save saves a workflow to the file system.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	var existing models.Workflow

	err := wr.store.read(workflowsDir, workflow.ID, &existing)

	switch {
	case err == nil:
		if existing.Trigger.Type() != workflow.Trigger.Type() {
			return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrTriggerTypeChanged)
		}
	case !errors.Is(err, errRecordNotFound):
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	return wr.store.write(workflowsDir, workflow.ID, workflow)
}

// Delete removes a workflow by its ID.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	return wr.store.remove(workflowsDir, id)
}

func (wr *WorkflowRepository) RecordExecution(_ context.Context, id string, succeeded bool, at time.Time) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	var workflow models.Workflow

	err := wr.store.read(workflowsDir, id, &workflow)
	if errors.Is(err, errRecordNotFound) {
		return persistence.NewWorkflowError("RecordExecution", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return persistence.NewWorkflowError("RecordExecution", id, err)
	}

	workflow.ExecutionCount++

	if succeeded {
		workflow.SuccessCount++
	} else {
		workflow.FailureCount++
	}

	lastExecutedAt := at.UTC()
	workflow.LastExecutedAt = &lastExecutedAt

	return wr.store.write(workflowsDir, id, &workflow)
}
