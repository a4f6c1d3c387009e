package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

// Repository manages workflow definitions on top of the persistence layer. The counters
// and the last execution time belong to the orchestrator and survive every update.
type Repository struct {
	persistence persistence.Persistence
	now         func() time.Time
}

func NewRepository(persistence persistence.Persistence) *Repository {
	return &Repository{
		persistence: persistence,
		now:         time.Now,
	}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (r *Repository) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	return workflows, nil
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.persistence.WorkflowRepository().GetByID(ctx, id)
}

// Create validates and stores a new workflow with zeroed counters.
func (r *Repository) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	err := workflow.Validate()
	if err != nil {
		return nil, err
	}

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}

		workflow.ID = id.String()
	}

	now := r.now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	workflow.ExecutionCount = 0
	workflow.SuccessCount = 0
	workflow.FailureCount = 0
	workflow.LastExecutedAt = nil

	err = r.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Update replaces the definition of workflow id. Changing the trigger type is rejected
// with persistence.ErrTriggerTypeChanged.
func (r *Repository) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := r.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = workflow.Validate()
	if err != nil {
		return nil, err
	}

	workflow.ID = id
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = r.now().UTC()
	workflow.ExecutionCount = existing.ExecutionCount
	workflow.SuccessCount = existing.SuccessCount
	workflow.FailureCount = existing.FailureCount
	workflow.LastExecutedAt = existing.LastExecutedAt

	err = r.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// SetActive turns firing of workflow id on or off.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) (*models.Workflow, error) {
	workflow, err := r.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.IsActive == active {
		return workflow, nil
	}

	workflow.IsActive = active
	workflow.UpdatedAt = r.now().UTC()

	err = r.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	return r.persistence.WorkflowRepository().Delete(ctx, id)
}

// Import creates a workflow from a JSON definition, or updates it when the definition
// names an existing workflow id.
func (r *Repository) Import(ctx context.Context, definition []byte) (*models.Workflow, error) {
	workflow, err := models.ParseWorkflowDefinition(definition)
	if err != nil {
		return nil, err
	}

	if workflow.ID != "" {
		_, err = r.persistence.WorkflowRepository().GetByID(ctx, workflow.ID)
		if err == nil {
			return r.Update(ctx, workflow.ID, workflow)
		}

		if !persistence.IsWorkflowNotFound(err) {
			return nil, err
		}
	}

	return r.Create(ctx, workflow)
}

// Executions returns the most recent executions of workflow id, newest first.
func (r *Repository) Executions(ctx context.Context, id string, limit int) ([]*models.WorkflowExecution, error) {
	_, err := r.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return r.persistence.ExecutionRepository().ListByWorkflow(ctx, id, limit)
}

func (r *Repository) Execution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return r.persistence.ExecutionRepository().GetByID(ctx, id)
}
