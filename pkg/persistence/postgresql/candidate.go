package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

// CandidateRepository stores candidate documents as JSONB.
type CandidateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCandidateRepository creates a new candidate repository.
func NewCandidateRepository(db *sql.DB, logger *slog.Logger) *CandidateRepository {
	return &CandidateRepository{db: db, logger: logger}
}

func (r *CandidateRepository) GetByID(ctx context.Context, id string) (*models.Candidate, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx, `SELECT data FROM candidates WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewCandidateError("GetByID", id, persistence.ErrCandidateNotFound)
	}

	if err != nil {
		return nil, persistence.NewCandidateError("GetByID", id, err)
	}

	var candidate models.Candidate

	err = json.Unmarshal(data, &candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal candidate %s: %w", id, err)
	}

	return &candidate, nil
}

func (r *CandidateRepository) Save(ctx context.Context, candidate *models.Candidate) error {
	data, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate %s: %w", candidate.ID, err)
	}

	query := `
		INSERT INTO candidates (id, status, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query, candidate.ID, candidate.Status, data)
	if err != nil {
		return persistence.NewCandidateError("Save", candidate.ID, err)
	}

	return nil
}

func (r *CandidateRepository) GetAll(ctx context.Context) ([]*models.Candidate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM candidates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	candidates := make([]*models.Candidate, 0)

	for rows.Next() {
		var data []byte

		err := rows.Scan(&data)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}

		var candidate models.Candidate

		err = json.Unmarshal(data, &candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal candidate: %w", err)
		}

		candidates = append(candidates, &candidate)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}

	return candidates, nil
}

// TaskRepository stores follow-up tasks.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, candidate_id, workflow_id, data, created_at) VALUES ($1, $2, $3, $4, $5)`,
		task.ID, task.CandidateID, task.WorkflowID, data, task.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) ListByCandidate(ctx context.Context, candidateID string) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM tasks WHERE candidate_id = $1 ORDER BY created_at`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		var data []byte

		err := rows.Scan(&data)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		var task models.Task

		err = json.Unmarshal(data, &task)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal task: %w", err)
		}

		tasks = append(tasks, &task)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}
