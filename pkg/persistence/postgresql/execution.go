package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

const uniqueViolation = "23505"

const executionColumns = `
			id
		  , workflow_id
		  , workflow_name
		  , candidate_id
		  , candidate_name
		  , trigger
		  , actions
		  , status
		  , started_at
		  , completed_at
		  , executed_by
		  , test_mode
		  , results
		  , error
`

// ExecutionRepository handles workflow execution records.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	triggerJSON, actionsJSON, resultsJSON, err := marshalExecution(execution)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_executions (id, workflow_id, workflow_name, candidate_id, candidate_name,
trigger, actions, status, started_at, completed_at, executed_by, test_mode, results, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.WorkflowName,
		execution.CandidateID,
		execution.CandidateName,
		triggerJSON,
		actionsJSON,
		string(execution.Status),
		execution.StartedAt.UTC(),
		execution.CompletedAt,
		execution.ExecutedBy,
		execution.TestMode,
		resultsJSON,
		execution.Error,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
		}

		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

// Complete closes the execution only while it is still running.
func (r *ExecutionRepository) Complete(ctx context.Context, execution *models.WorkflowExecution) error {
	resultsJSON, err := json.Marshal(execution.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	query := `
		UPDATE workflow_executions SET
			status = $2,
			completed_at = $3,
			results = $4,
			error = $5
		WHERE id = $1 AND status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		string(execution.Status),
		execution.CompletedAt,
		resultsJSON,
		execution.Error,
	)
	if err != nil {
		return persistence.NewExecutionError("Complete", execution.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		return nil
	}

	var exists bool

	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM workflow_executions WHERE id = $1)`, execution.ID).Scan(&exists)
	if err != nil {
		return persistence.NewExecutionError("Complete", execution.ID, err)
	}

	if !exists {
		return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionNotFound)
	}

	return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionClosed)
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`

	args := []any{workflowID}

	if limit > 0 {
		query += ` LIMIT $2`

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) Count(ctx context.Context, filter models.ExecutionFilter) (int, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.WorkflowID != "" {
		args = append(args, filter.WorkflowID)
		conditions = append(conditions, "workflow_id = $"+strconv.Itoa(len(args)))
	}

	if filter.CandidateID != "" {
		args = append(args, filter.CandidateID)
		conditions = append(conditions, "candidate_id = $"+strconv.Itoa(len(args)))
	}

	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		conditions = append(conditions, "started_at >= $"+strconv.Itoa(len(args)))
	}

	query := `SELECT COUNT(*) FROM workflow_executions`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}

	var count int

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}

	return count, nil
}

func marshalExecution(execution *models.WorkflowExecution) ([]byte, []byte, []byte, error) {
	triggerJSON, err := json.Marshal(execution.Trigger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal trigger: %w", err)
	}

	actionsJSON, err := json.Marshal(execution.Actions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal actions: %w", err)
	}

	results := execution.Results
	if results == nil {
		results = []models.ActionResult{}
	}

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal results: %w", err)
	}

	return triggerJSON, actionsJSON, resultsJSON, nil
}

func scanExecution(row scanner) (*models.WorkflowExecution, error) {
	var (
		execution   models.WorkflowExecution
		status      string
		triggerJSON []byte
		actionsJSON []byte
		resultsJSON []byte
		completedAt sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.WorkflowName,
		&execution.CandidateID,
		&execution.CandidateName,
		&triggerJSON,
		&actionsJSON,
		&status,
		&execution.StartedAt,
		&completedAt,
		&execution.ExecutedBy,
		&execution.TestMode,
		&resultsJSON,
		&execution.Error,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(triggerJSON, &execution.Trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger: %w", err)
	}

	err = json.Unmarshal(actionsJSON, &execution.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	err = json.Unmarshal(resultsJSON, &execution.Results)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}

	execution.Status = models.ExecutionStatus(status)
	execution.StartedAt = execution.StartedAt.UTC()
	execution.CompletedAt = timePointer(completedAt)

	return &execution, nil
}
