// Package persistence provides the storage abstraction for workflows, executions and the
// candidate records workflows act upon.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/recruitflow/pkg/models"
)

// Persistence groups the repositories of one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	CandidateRepository() CandidateRepository
	TaskRepository() TaskRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions and their aggregate counters.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)

	// GetActiveByTriggerType returns the active workflows whose trigger has the given type.
	GetActiveByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error)

	// Save creates or replaces a workflow. Changing the trigger type of an existing
	// workflow is rejected with ErrTriggerTypeChanged.
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error

	// RecordExecution atomically increments executionCount and exactly one of
	// successCount/failureCount, and sets lastExecutedAt.
	RecordExecution(ctx context.Context, id string, succeeded bool, at time.Time) error
}

// ExecutionRepository stores workflow execution audit records.
type ExecutionRepository interface {
	// Create persists a new running execution.
	Create(ctx context.Context, execution *models.WorkflowExecution) error

	// Complete closes a running execution, writing its status, results and completedAt.
	// Closing an execution that is not running fails with ErrExecutionClosed.
	Complete(ctx context.Context, execution *models.WorkflowExecution) error

	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)

	// ListByWorkflow returns the most recent executions of a workflow, newest first.
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error)

	// Count returns the number of executions matching filter, by startedAt.
	Count(ctx context.Context, filter models.ExecutionFilter) (int, error)
}

// CandidateRepository gives access to the CRM candidate records.
type CandidateRepository interface {
	GetByID(ctx context.Context, id string) (*models.Candidate, error)
	Save(ctx context.Context, candidate *models.Candidate) error
	GetAll(ctx context.Context) ([]*models.Candidate, error)
}

// TaskRepository creates follow-up tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	ListByCandidate(ctx context.Context, candidateID string) ([]*models.Task, error)
}
