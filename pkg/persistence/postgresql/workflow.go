package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

const workflowColumns = `
			id
		  , name
		  , description
		  , is_active
		  , priority
		  , test_mode
		  , trigger
		  , actions
		  , schedule
		  , max_executions_per_day
		  , max_executions_per_candidate
		  , execution_count
		  , success_count
		  , failure_count
		  , last_executed_at
		  , created_at
		  , updated_at
`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns all workflows from the database.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
		ORDER BY created_at
	`

	return r.query(ctx, query)
}

func (r *WorkflowRepository) GetActiveByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE trigger_type = $1 AND is_active AND deleted_at IS NULL
		ORDER BY priority DESC, created_at
	`

	return r.query(ctx, query, string(triggerType))
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// Save upserts a workflow. Execution counters are only written on insert; afterwards they
// belong to RecordExecution.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) (err error) {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	triggerJSON, err := json.Marshal(workflow.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger: %w", err)
	}

	actionsJSON, err := json.Marshal(workflow.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	var scheduleJSON []byte

	if workflow.Schedule != nil {
		scheduleJSON, err = json.Marshal(workflow.Schedule)
		if err != nil {
			return fmt.Errorf("failed to marshal schedule: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existingType string

	err = tx.QueryRowContext(ctx,
		`SELECT trigger_type FROM workflows WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		workflow.ID,
	).Scan(&existingType)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	case existingType != string(workflow.Trigger.Type()):
		err = persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrTriggerTypeChanged)

		return err
	}

	query := `
		INSERT INTO workflows (id, name, description, is_active, priority, test_mode, trigger_type,
trigger, actions, schedule, max_executions_per_day, max_executions_per_candidate,
execution_count, success_count, failure_count, last_executed_at, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NULL)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			priority = EXCLUDED.priority,
			test_mode = EXCLUDED.test_mode,
			trigger_type = EXCLUDED.trigger_type,
			trigger = EXCLUDED.trigger,
			actions = EXCLUDED.actions,
			schedule = EXCLUDED.schedule,
			max_executions_per_day = EXCLUDED.max_executions_per_day,
			max_executions_per_candidate = EXCLUDED.max_executions_per_candidate,
			updated_at = EXCLUDED.updated_at,
			deleted_at = NULL
	`

	_, err = tx.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.IsActive,
		workflow.Priority,
		workflow.TestMode,
		string(workflow.Trigger.Type()),
		triggerJSON,
		actionsJSON,
		scheduleJSON,
		nullableInt(workflow.MaxExecutionsPerDay),
		nullableInt(workflow.MaxExecutionsPerCandidate),
		workflow.ExecutionCount,
		workflow.SuccessCount,
		workflow.FailureCount,
		workflow.LastExecutedAt,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete soft deletes a workflow by setting deleted_at timestamp.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// RecordExecution increments the counters in a single statement, so concurrent runs never
// lose an update.
func (r *WorkflowRepository) RecordExecution(ctx context.Context, id string, succeeded bool, at time.Time) error {
	query := `
		UPDATE workflows SET
			execution_count = execution_count + 1,
			success_count = success_count + CASE WHEN $2 THEN 1 ELSE 0 END,
			failure_count = failure_count + CASE WHEN $2 THEN 0 ELSE 1 END,
			last_executed_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, succeeded, at.UTC())
	if err != nil {
		return persistence.NewWorkflowError("RecordExecution", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("RecordExecution", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) query(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow        models.Workflow
		triggerJSON     []byte
		actionsJSON     []byte
		scheduleJSON    []byte
		maxPerDay       sql.NullInt64
		maxPerCandidate sql.NullInt64
		lastExecutedAt  sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.IsActive,
		&workflow.Priority,
		&workflow.TestMode,
		&triggerJSON,
		&actionsJSON,
		&scheduleJSON,
		&maxPerDay,
		&maxPerCandidate,
		&workflow.ExecutionCount,
		&workflow.SuccessCount,
		&workflow.FailureCount,
		&lastExecutedAt,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(triggerJSON, &workflow.Trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger: %w", err)
	}

	err = json.Unmarshal(actionsJSON, &workflow.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	if scheduleJSON != nil {
		workflow.Schedule = &models.Schedule{}

		err = json.Unmarshal(scheduleJSON, workflow.Schedule)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
		}
	}

	workflow.MaxExecutionsPerDay = intPointer(maxPerDay)
	workflow.MaxExecutionsPerCandidate = intPointer(maxPerCandidate)
	workflow.LastExecutedAt = timePointer(lastExecutedAt)
	workflow.CreatedAt = workflow.CreatedAt.UTC()
	workflow.UpdatedAt = workflow.UpdatedAt.UTC()

	return &workflow, nil
}
