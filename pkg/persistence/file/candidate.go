package file

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

// CandidateRepository stores candidate records as JSON files.
type CandidateRepository struct {
	store *Persistence
}

func (cr *CandidateRepository) GetByID(_ context.Context, id string) (*models.Candidate, error) {
	var candidate models.Candidate

	err := cr.store.read(candidatesDir, id, &candidate)
	if errors.Is(err, errRecordNotFound) {
		return nil, persistence.NewCandidateError("GetByID", id, persistence.ErrCandidateNotFound)
	}

	if err != nil {
		return nil, persistence.NewCandidateError("GetByID", id, err)
	}

	return &candidate, nil
}

func (cr *CandidateRepository) Save(_ context.Context, candidate *models.Candidate) error {
	cr.store.mu.Lock()
	defer cr.store.mu.Unlock()

	err := cr.store.write(candidatesDir, candidate.ID, candidate)
	if err != nil {
		return persistence.NewCandidateError("Save", candidate.ID, err)
	}

	return nil
}

func (cr *CandidateRepository) GetAll(_ context.Context) ([]*models.Candidate, error) {
	ids, err := cr.store.ids(candidatesDir)
	if err != nil {
		return nil, err
	}

	candidates := make([]*models.Candidate, 0, len(ids))

	for _, id := range ids {
		var candidate models.Candidate

		err := cr.store.read(candidatesDir, id, &candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to load candidate %s: %w", id, err)
		}

		candidates = append(candidates, &candidate)
	}

	return candidates, nil
}

// TaskRepository stores follow-up tasks as JSON files.
type TaskRepository struct {
	store *Persistence
}

func (tr *TaskRepository) Create(_ context.Context, task *models.Task) error {
	tr.store.mu.Lock()
	defer tr.store.mu.Unlock()

	return tr.store.write(tasksDir, task.ID, task)
}

func (tr *TaskRepository) ListByCandidate(_ context.Context, candidateID string) ([]*models.Task, error) {
	ids, err := tr.store.ids(tasksDir)
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.Task, 0)

	for _, id := range ids {
		var task models.Task

		err := tr.store.read(tasksDir, id, &task)
		if err != nil {
			return nil, fmt.Errorf("failed to load task %s: %w", id, err)
		}

		if task.CandidateID == candidateID {
			tasks = append(tasks, &task)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}
