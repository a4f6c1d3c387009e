// Package workflow matches candidate events against workflows, gates and schedules the
// resulting runs, and executes them.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/recruitflow/pkg/actions"
	"github.com/dukex/recruitflow/pkg/eventbus"
	"github.com/dukex/recruitflow/pkg/events"
	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/otelhelper"
	"github.com/dukex/recruitflow/pkg/persistence"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 200 * time.Millisecond

	deferredMessage = "deferred execution is not supported"
)

// ActionRunner executes a single action. *actions.Executor satisfies it.
type ActionRunner interface {
	Execute(ctx context.Context, action models.Action, candidate *models.Candidate, workflow *models.Workflow) (*actions.Outcome, error)
}

// Executor runs workflows against candidates and owns the execution records: it is the only
// component that writes them.
type Executor struct {
	workflows  persistence.WorkflowRepository
	executions persistence.ExecutionRepository
	candidates persistence.CandidateRepository
	actions    ActionRunner
	publisher  eventbus.EventPublisher
	tracer     trace.Tracer
	metrics    *otelhelper.Metrics
	logger     *slog.Logger

	retryAttempts uint64
	retryDelay    time.Duration
	now           func() time.Time
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithPublisher publishes execution lifecycle events.
func WithPublisher(publisher eventbus.EventPublisher) ExecutorOption {
	return func(e *Executor) {
		e.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

func WithMetrics(metrics *otelhelper.Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = metrics
	}
}

// WithRetry bounds the retries of execution record and counter writes.
func WithRetry(attempts uint64, delay time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.retryAttempts = attempts
		e.retryDelay = delay
	}
}

func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		e.now = now
	}
}

func NewExecutor(store persistence.Persistence, runner ActionRunner, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	executor := &Executor{
		workflows:     store.WorkflowRepository(),
		executions:    store.ExecutionRepository(),
		candidates:    store.CandidateRepository(),
		actions:       runner,
		tracer:        otelhelper.NoopTracer("recruitflow"),
		logger:        logger.With("module", "workflow_executor"),
		retryAttempts: DefaultRetryAttempts,
		retryDelay:    DefaultRetryDelay,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Run starts and executes workflowID for candidateID synchronously and returns the closed
// execution record.
func (e *Executor) Run(ctx context.Context, workflowID, candidateID, executedBy string) (*models.WorkflowExecution, error) {
	execution, err := e.Start(ctx, workflowID, candidateID, executedBy)
	if err != nil {
		return nil, err
	}

	return e.Execute(ctx, execution)
}

// Start loads the workflow and the candidate and persists a running execution snapshot.
// A missing workflow or candidate, or a workflow without actions, yields a *LoadError and
// no record.
func (e *Executor) Start(ctx context.Context, workflowID, candidateID, executedBy string) (*models.WorkflowExecution, error) {
	logger := e.logger.With("workflow_id", workflowID, "candidate_id", candidateID)

	workflow, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load workflow", "error", err)

		return nil, &LoadError{Entity: "workflow", ID: workflowID, Err: err}
	}

	if !workflow.Runnable() {
		return nil, &LoadError{Entity: "workflow", ID: workflowID, Err: ErrNotRunnable}
	}

	candidate, err := e.candidates.GetByID(ctx, candidateID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load candidate", "error", err)

		return nil, &LoadError{Entity: "candidate", ID: candidateID, Err: err}
	}

	if executedBy == "" {
		executedBy = models.ExecutedBySystem
	}

	execution := &models.WorkflowExecution{
		ID:            newExecutionID(),
		WorkflowID:    workflow.ID,
		WorkflowName:  workflow.Name,
		CandidateID:   candidate.ID,
		CandidateName: candidate.FullName(),
		Trigger:       workflow.Trigger,
		Actions:       workflow.Actions,
		Status:        models.ExecutionStatusRunning,
		StartedAt:     e.now().UTC(),
		ExecutedBy:    executedBy,
		TestMode:      workflow.TestMode,
		Results:       []models.ActionResult{},
	}

	err = e.persist(ctx, "create", execution.ID, func(ctx context.Context) error {
		return e.executions.Create(ctx, execution)
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create execution record", "error", err)

		return nil, err
	}

	logger.InfoContext(ctx, "Workflow execution started", "execution_id", execution.ID, "executed_by", executedBy)

	started := events.WorkflowExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.WorkflowExecutionStartedEvent, workflow.ID, candidate.ID),
		ExecutionID:  execution.ID,
		WorkflowName: workflow.Name,
		TriggerType:  string(workflow.Trigger.Type()),
		ExecutedBy:   executedBy,
		TestMode:     workflow.TestMode,
	}
	e.publish(ctx, execution.ID, started)

	return execution, nil
}

// Execute runs the actions of a running execution in order and closes it. A failed action
// never stops the run; the execution is failed when any action failed and completed
// otherwise. The returned error is a *LoadError when the candidate disappeared after Start
// and a *PersistenceError when the record could not be closed.
func (e *Executor) Execute(ctx context.Context, execution *models.WorkflowExecution) (*models.WorkflowExecution, error) {
	logger := e.logger.With(
		"execution_id", execution.ID,
		"workflow_id", execution.WorkflowID,
		"candidate_id", execution.CandidateID,
	)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
		attribute.String(otelhelper.WorkflowNameKey, execution.WorkflowName),
		attribute.String(otelhelper.TriggerTypeKey, string(execution.Trigger.Type())),
		attribute.String(otelhelper.CandidateIDKey, execution.CandidateID),
	)
	defer span.End()

	state := newRunState()

	// reload so queued runs see the changes of the runs before them
	candidate, err := e.candidates.GetByID(ctx, execution.CandidateID)
	if err != nil {
		loadErr := &LoadError{Entity: "candidate", ID: execution.CandidateID, Err: err}
		otelhelper.SetError(span, loadErr)
		logger.ErrorContext(ctx, "Candidate disappeared before execution", "error", err)

		execution.Error = loadErr.Error()

		closeErr := e.close(ctx, execution, state, true)
		if closeErr != nil {
			return execution, errors.Join(loadErr, closeErr)
		}

		return execution, loadErr
	}

	workflow := &models.Workflow{
		ID:       execution.WorkflowID,
		Name:     execution.WorkflowName,
		TestMode: execution.TestMode,
		Trigger:  execution.Trigger,
		Actions:  execution.Actions,
	}

	for index, action := range execution.Actions {
		result := e.runAction(ctx, logger, index, action, candidate, workflow)
		execution.Results = append(execution.Results, result)
	}

	err = e.close(ctx, execution, state, execution.HasFailures())
	if err != nil {
		otelhelper.SetError(span, err)

		return execution, err
	}

	span.SetAttributes(attribute.String("recruitflow.execution.status", string(execution.Status)))

	return execution, nil
}

// Abort closes a running execution as failed without running its actions.
func (e *Executor) Abort(ctx context.Context, execution *models.WorkflowExecution, cause error) error {
	execution.Error = cause.Error()

	return e.close(ctx, execution, newRunState(), true)
}

func (e *Executor) runAction(
	ctx context.Context,
	logger *slog.Logger,
	index int,
	action models.Action,
	candidate *models.Candidate,
	workflow *models.Workflow,
) models.ActionResult {
	result := models.ActionResult{ActionIndex: index, ActionType: action.Type()}

	if action.DelayMinutes > 0 {
		result.Status = models.ActionResultSkipped
		result.Message = fmt.Sprintf("%s: action delayed by %d minutes", deferredMessage, action.DelayMinutes)
		e.countAction(ctx, result)

		return result
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.action",
		attribute.String(otelhelper.ActionTypeKey, string(action.Type())),
		attribute.Int(otelhelper.ActionIndexKey, index),
	)
	defer span.End()

	outcome, err := e.actions.Execute(ctx, action, candidate, workflow)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.WarnContext(ctx, "Action failed", "action_index", index, "action_type", action.Type(), "error", err)

		result.Status = models.ActionResultFailed
		result.Error = err.Error()
		e.countAction(ctx, result)

		return result
	}

	result.Status = models.ActionResultSuccess
	if outcome != nil {
		result.Message = outcome.Message
		result.Metadata = outcome.Metadata
	}

	logger.DebugContext(ctx, "Action succeeded", "action_index", index, "action_type", action.Type())
	e.countAction(ctx, result)

	return result
}

// close moves the execution to its terminal status, writes the record and bumps the
// workflow counters. Writes outlive the caller's cancellation so a started run is always
// closed.
func (e *Executor) close(ctx context.Context, execution *models.WorkflowExecution, state *runState, failed bool) error {
	status, err := state.close(ctx, failed)
	if err != nil {
		return err
	}

	completedAt := e.now().UTC()
	execution.Status = status
	execution.CompletedAt = &completedAt

	writeCtx := context.WithoutCancel(ctx)
	logger := e.logger.With("execution_id", execution.ID, "workflow_id", execution.WorkflowID)

	err = e.persist(writeCtx, "complete", execution.ID, func(ctx context.Context) error {
		return e.executions.Complete(ctx, execution)
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to close execution record", "error", err)

		return err
	}

	succeeded := status == models.ExecutionStatusCompleted

	err = e.persist(writeCtx, "record execution", execution.ID, func(ctx context.Context) error {
		return e.workflows.RecordExecution(ctx, execution.WorkflowID, succeeded, completedAt)
	})
	if err != nil {
		// the audit record is closed; only the aggregate counters are behind
		logger.ErrorContext(ctx, "Failed to update workflow counters", "error", err)

		return err
	}

	duration := completedAt.Sub(execution.StartedAt)

	logger.InfoContext(ctx, "Workflow execution finished",
		"status", status,
		"duration", duration,
		"actions", len(execution.Results))

	e.recordRun(ctx, execution, duration)
	e.publish(writeCtx, execution.ID, closedEvent(execution, duration))

	return nil
}

func closedEvent(execution *models.WorkflowExecution, duration time.Duration) eventbus.Event {
	if execution.Status == models.ExecutionStatusFailed {
		failed := events.WorkflowExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionFailedEvent, execution.WorkflowID, execution.CandidateID),
			ExecutionID: execution.ID,
			Status:      string(execution.Status),
			DurationMs:  duration.Milliseconds(),
			Failures:    []events.ActionFailure{},
		}

		for _, result := range execution.Results {
			if result.Status == models.ActionResultFailed {
				failed.Failures = append(failed.Failures, events.ActionFailure{
					ActionIndex: result.ActionIndex,
					ActionType:  string(result.ActionType),
					Message:     result.Error,
				})
			}
		}

		if len(failed.Failures) == 0 && execution.Error != "" {
			failed.Failures = append(failed.Failures, events.ActionFailure{ActionIndex: -1, Message: execution.Error})
		}

		return failed
	}

	completed := events.WorkflowExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, execution.WorkflowID, execution.CandidateID),
		ExecutionID: execution.ID,
		Status:      string(execution.Status),
		DurationMs:  duration.Milliseconds(),
	}

	for _, result := range execution.Results {
		if result.Status == models.ActionResultSkipped {
			completed.ActionsSkipped++
		} else {
			completed.ActionsExecuted++
		}
	}

	return completed
}

// persist retries a store write with a constant backoff. Conflicts are not retried.
func (e *Executor) persist(ctx context.Context, op, executionID string, write func(context.Context) error) error {
	backoff := retry.WithMaxRetries(e.retryAttempts, retry.NewConstant(e.retryDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := write(ctx)
		if err == nil {
			return nil
		}

		if permanent(err) {
			return err
		}

		e.logger.WarnContext(ctx, "Retrying store write", "op", op, "execution_id", executionID, "error", err)

		return retry.RetryableError(err)
	})
	if err != nil {
		return &PersistenceError{Op: op, ExecutionID: executionID, Err: err}
	}

	return nil
}

func permanent(err error) bool {
	return errors.Is(err, persistence.ErrExecutionAlreadyExists) ||
		errors.Is(err, persistence.ErrExecutionClosed) ||
		errors.Is(err, persistence.ErrWorkflowNotFound)
}

func (e *Executor) publish(ctx context.Context, executionID string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, executionID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish execution event",
			"execution_id", executionID,
			"event_type", event.GetType(),
			"error", err)
	}
}

func (e *Executor) countAction(ctx context.Context, result models.ActionResult) {
	if e.metrics == nil {
		return
	}

	e.metrics.Actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(otelhelper.ActionTypeKey, string(result.ActionType)),
		attribute.String("status", string(result.Status)),
	))
}

func (e *Executor) recordRun(ctx context.Context, execution *models.WorkflowExecution, duration time.Duration) {
	if e.metrics == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
		attribute.String("status", string(execution.Status)),
		attribute.String("test_mode", strconv.FormatBool(execution.TestMode)),
	)

	e.metrics.Executions.Add(ctx, 1, attrs)
	e.metrics.RunDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func newExecutionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
