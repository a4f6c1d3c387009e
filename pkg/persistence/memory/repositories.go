package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	memdb "github.com/hashicorp/go-memdb"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

type workflowRecord struct {
	ID          string
	TriggerType string
	Active      bool
	Workflow    *models.Workflow
}

type executionRecord struct {
	ID          string
	WorkflowID  string
	CandidateID string
	Execution   *models.WorkflowExecution
}

type candidateRecord struct {
	ID        string
	Candidate *models.Candidate
}

type taskRecord struct {
	ID          string
	CandidateID string
	Task        *models.Task
}

// WorkflowRepository handles workflow persistence operations in memory.
type WorkflowRepository struct {
	db *memdb.MemDB
}

func (r *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableWorkflows, indexID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return collectWorkflows(it)
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	record, err := r.get(txn, id)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return clone(record.Workflow)
}

func (r *WorkflowRepository) GetActiveByTriggerType(_ context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableWorkflows, indexTrigger, string(triggerType), true)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows by trigger type: %w", err)
	}

	return collectWorkflows(it)
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	stored, err := clone(workflow)
	if err != nil {
		return fmt.Errorf("failed to copy workflow: %w", err)
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	existing, err := r.get(txn, workflow.ID)

	switch {
	case err == nil:
		if existing.TriggerType != string(workflow.Trigger.Type()) {
			return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrTriggerTypeChanged)
		}
	case !persistence.IsWorkflowNotFound(err):
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	err = txn.Insert(tableWorkflows, &workflowRecord{
		ID:          stored.ID,
		TriggerType: string(stored.Trigger.Type()),
		Active:      stored.IsActive,
		Workflow:    stored,
	})
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	txn.Commit()

	return nil
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	_, err := txn.DeleteAll(tableWorkflows, indexID, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	txn.Commit()

	return nil
}

func (r *WorkflowRepository) RecordExecution(_ context.Context, id string, succeeded bool, at time.Time) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	record, err := r.get(txn, id)
	if err != nil {
		return persistence.NewWorkflowError("RecordExecution", id, err)
	}

	updated := *record.Workflow
	updated.ExecutionCount++

	if succeeded {
		updated.SuccessCount++
	} else {
		updated.FailureCount++
	}

	lastExecutedAt := at
	updated.LastExecutedAt = &lastExecutedAt

	err = txn.Insert(tableWorkflows, &workflowRecord{
		ID:          record.ID,
		TriggerType: record.TriggerType,
		Active:      record.Active,
		Workflow:    &updated,
	})
	if err != nil {
		return persistence.NewWorkflowError("RecordExecution", id, err)
	}

	txn.Commit()

	return nil
}

func (r *WorkflowRepository) get(txn *memdb.Txn, id string) (*workflowRecord, error) {
	raw, err := txn.First(tableWorkflows, indexID, id)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	return raw.(*workflowRecord), nil
}

func collectWorkflows(it memdb.ResultIterator) ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0)

	for raw := it.Next(); raw != nil; raw = it.Next() {
		workflow, err := clone(raw.(*workflowRecord).Workflow)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// ExecutionRepository handles execution audit records in memory.
type ExecutionRepository struct {
	db *memdb.MemDB
}

func (r *ExecutionRepository) Create(_ context.Context, execution *models.WorkflowExecution) error {
	stored, err := clone(execution)
	if err != nil {
		return fmt.Errorf("failed to copy execution: %w", err)
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tableExecutions, indexID, execution.ID)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	if existing != nil {
		return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	err = txn.Insert(tableExecutions, newExecutionRecord(stored))
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	txn.Commit()

	return nil
}

func (r *ExecutionRepository) Complete(_ context.Context, execution *models.WorkflowExecution) error {
	stored, err := clone(execution)
	if err != nil {
		return fmt.Errorf("failed to copy execution: %w", err)
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableExecutions, indexID, execution.ID)
	if err != nil {
		return persistence.NewExecutionError("Complete", execution.ID, err)
	}

	if raw == nil {
		return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionNotFound)
	}

	if raw.(*executionRecord).Execution.Status != models.ExecutionStatusRunning {
		return persistence.NewExecutionError("Complete", execution.ID, persistence.ErrExecutionClosed)
	}

	err = txn.Insert(tableExecutions, newExecutionRecord(stored))
	if err != nil {
		return persistence.NewExecutionError("Complete", execution.ID, err)
	}

	txn.Commit()

	return nil
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableExecutions, indexID, id)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	if raw == nil {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	return clone(raw.(*executionRecord).Execution)
}

func (r *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.WorkflowExecution, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableExecutions, indexWorkflow, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0)

	for raw := it.Next(); raw != nil; raw = it.Next() {
		executions = append(executions, raw.(*executionRecord).Execution)
	}

	sort.SliceStable(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	result := make([]*models.WorkflowExecution, 0, len(executions))

	for _, execution := range executions {
		copied, err := clone(execution)
		if err != nil {
			return nil, err
		}

		result = append(result, copied)
	}

	return result, nil
}

func (r *ExecutionRepository) Count(_ context.Context, filter models.ExecutionFilter) (int, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	var (
		it  memdb.ResultIterator
		err error
	)

	switch {
	case filter.WorkflowID != "" && filter.CandidateID != "":
		it, err = txn.Get(tableExecutions, indexWorkflowCandidate, filter.WorkflowID, filter.CandidateID)
	case filter.WorkflowID != "":
		it, err = txn.Get(tableExecutions, indexWorkflow, filter.WorkflowID)
	default:
		it, err = txn.Get(tableExecutions, indexID)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}

	count := 0

	for raw := it.Next(); raw != nil; raw = it.Next() {
		record := raw.(*executionRecord)

		if filter.CandidateID != "" && record.CandidateID != filter.CandidateID {
			continue
		}

		if !filter.Since.IsZero() && record.Execution.StartedAt.Before(filter.Since) {
			continue
		}

		count++
	}

	return count, nil
}

func newExecutionRecord(execution *models.WorkflowExecution) *executionRecord {
	return &executionRecord{
		ID:          execution.ID,
		WorkflowID:  execution.WorkflowID,
		CandidateID: execution.CandidateID,
		Execution:   execution,
	}
}

// CandidateRepository keeps candidate records in memory.
type CandidateRepository struct {
	db *memdb.MemDB
}

func (r *CandidateRepository) GetByID(_ context.Context, id string) (*models.Candidate, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableCandidates, indexID, id)
	if err != nil {
		return nil, persistence.NewCandidateError("GetByID", id, err)
	}

	if raw == nil {
		return nil, persistence.NewCandidateError("GetByID", id, persistence.ErrCandidateNotFound)
	}

	return clone(raw.(*candidateRecord).Candidate)
}

func (r *CandidateRepository) Save(_ context.Context, candidate *models.Candidate) error {
	stored, err := clone(candidate)
	if err != nil {
		return fmt.Errorf("failed to copy candidate: %w", err)
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	err = txn.Insert(tableCandidates, &candidateRecord{ID: stored.ID, Candidate: stored})
	if err != nil {
		return persistence.NewCandidateError("Save", candidate.ID, err)
	}

	txn.Commit()

	return nil
}

func (r *CandidateRepository) GetAll(_ context.Context) ([]*models.Candidate, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableCandidates, indexID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	candidates := make([]*models.Candidate, 0)

	for raw := it.Next(); raw != nil; raw = it.Next() {
		candidate, err := clone(raw.(*candidateRecord).Candidate)
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// TaskRepository keeps follow-up tasks in memory.
type TaskRepository struct {
	db *memdb.MemDB
}

func (r *TaskRepository) Create(_ context.Context, task *models.Task) error {
	stored, err := clone(task)
	if err != nil {
		return fmt.Errorf("failed to copy task: %w", err)
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	err = txn.Insert(tableTasks, &taskRecord{ID: stored.ID, CandidateID: stored.CandidateID, Task: stored})
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}

	txn.Commit()

	return nil
}

func (r *TaskRepository) ListByCandidate(_ context.Context, candidateID string) ([]*models.Task, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableTasks, indexCandidate, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*models.Task, 0)

	for raw := it.Next(); raw != nil; raw = it.Next() {
		task, err := clone(raw.(*taskRecord).Task)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, task)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}
