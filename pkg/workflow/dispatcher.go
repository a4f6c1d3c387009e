package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/otelhelper"
	"github.com/dukex/recruitflow/pkg/persistence"
)

// Dispatcher is the entry point for candidate events. It selects the workflows an event
// fires, gates them, records their runs and hands them to the Supervisor. It never waits
// for a run to finish and never returns run failures to the caller.
type Dispatcher struct {
	workflows  persistence.WorkflowRepository
	candidates persistence.CandidateRepository
	matcher    *TriggerMatcher
	gate       *Gate
	executor   *Executor
	supervisor *Supervisor
	tracer     trace.Tracer
	metrics    *otelhelper.Metrics
	logger     *slog.Logger
	now        func() time.Time

	workflowLocks keyedMutex
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithDispatcherTracer(tracer trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

func WithDispatcherMetrics(metrics *otelhelper.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func NewDispatcher(
	store persistence.Persistence,
	gate *Gate,
	executor *Executor,
	supervisor *Supervisor,
	logger *slog.Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	dispatcher := &Dispatcher{
		workflows:  store.WorkflowRepository(),
		candidates: store.CandidateRepository(),
		matcher:    NewTriggerMatcher(logger),
		gate:       gate,
		executor:   executor,
		supervisor: supervisor,
		tracer:     otelhelper.NoopTracer("recruitflow"),
		logger:     logger.With("module", "dispatcher"),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(dispatcher)
	}

	return dispatcher
}

func (d *Dispatcher) OnStatusChanged(ctx context.Context, candidateID, oldStatus, newStatus string) []*models.WorkflowExecution {
	return d.OnEvent(ctx, candidateID, models.StatusChangedEvent(candidateID, oldStatus, newStatus))
}

func (d *Dispatcher) OnTagAdded(ctx context.Context, candidateID, tag string) []*models.WorkflowExecution {
	return d.OnEvent(ctx, candidateID, models.TagAddedEvent(candidateID, tag))
}

func (d *Dispatcher) OnTagRemoved(ctx context.Context, candidateID, tag string) []*models.WorkflowExecution {
	return d.OnEvent(ctx, candidateID, models.TagRemovedEvent(candidateID, tag))
}

func (d *Dispatcher) OnDaysInStage(ctx context.Context, candidateID string, days int) []*models.WorkflowExecution {
	return d.OnEvent(ctx, candidateID, models.DaysInStageEvent(candidateID, days))
}

func (d *Dispatcher) OnScoreThreshold(ctx context.Context, candidateID string, score float64) []*models.WorkflowExecution {
	return d.OnEvent(ctx, candidateID, models.ScoreThresholdEvent(candidateID, score))
}

func (d *Dispatcher) OnNoActivity(ctx context.Context, candidateID string) []*models.WorkflowExecution {
	return d.OnEvent(ctx, candidateID, models.NoActivityEvent(candidateID))
}

// OnEvent launches every active workflow that event fires for candidateID, highest
// priority first, and returns the running executions it recorded. Failures are logged.
func (d *Dispatcher) OnEvent(ctx context.Context, candidateID string, event models.EventContext) []*models.WorkflowExecution {
	event.CandidateID = candidateID

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "workflow.dispatch",
		attribute.String(otelhelper.EventTypeKey, string(event.Type)),
		attribute.String(otelhelper.CandidateIDKey, candidateID),
	)
	defer span.End()

	logger := d.logger.With("event_type", event.Type, "candidate_id", candidateID)

	workflows, err := d.workflows.GetActiveByTriggerType(ctx, event.Type)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to load workflows", "error", err)

		return nil
	}

	if len(workflows) == 0 {
		logger.DebugContext(ctx, "No active workflows for event")

		return nil
	}

	candidate, err := d.candidates.GetByID(ctx, candidateID)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.WarnContext(ctx, "Failed to load candidate, no workflow fires", "error", err)

		return nil
	}

	sort.SliceStable(workflows, func(i, j int) bool {
		return workflows[i].Priority > workflows[j].Priority
	})

	var launched []*models.WorkflowExecution

	for _, workflow := range workflows {
		if !d.matcher.Matches(workflow, candidate, event) {
			continue
		}

		execution := d.launch(ctx, logger.With("workflow_id", workflow.ID), workflow, candidate)
		if execution != nil {
			launched = append(launched, execution)
		}
	}

	span.SetAttributes(attribute.Int("recruitflow.launched", len(launched)))

	return launched
}

// launch gates and records one run under the workflow lock, so concurrent events cannot
// both pass a cap that only one more run fits under.
func (d *Dispatcher) launch(ctx context.Context, logger *slog.Logger, workflow *models.Workflow, candidate *models.Candidate) *models.WorkflowExecution {
	unlock := d.workflowLocks.Lock(workflow.ID)
	defer unlock()

	reservation, err := d.gate.Admit(ctx, workflow, candidate, d.now())
	if err != nil {
		var suppression *Suppression
		if errors.As(err, &suppression) {
			d.suppress(ctx, logger, workflow, suppression.Reason, suppression.Detail)

			return nil
		}

		logger.ErrorContext(ctx, "Failed to evaluate execution limits", "error", err)
		d.count(ctx, workflow, ReasonLimiterFailed)

		return nil
	}

	execution, err := d.executor.Start(ctx, workflow.ID, candidate.ID, models.ExecutedBySystem)
	if err != nil {
		d.release(ctx, logger, reservation)
		logger.ErrorContext(ctx, "Failed to start workflow run", "error", err)
		d.count(ctx, workflow, ReasonStartFailed)

		return nil
	}

	// callers get the record as started; the supervised run owns execution from here on
	started := *execution

	err = d.supervisor.Submit(ctx, Job{
		ExecutionID: execution.ID,
		WorkflowID:  workflow.ID,
		CandidateID: candidate.ID,
		Run: func(ctx context.Context) error {
			_, err := d.executor.Execute(ctx, execution)

			return err
		},
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to submit workflow run", "execution_id", execution.ID, "error", err)
		d.count(ctx, workflow, ReasonSubmitFailed)

		abortErr := d.executor.Abort(ctx, execution, err)
		if abortErr != nil {
			logger.ErrorContext(ctx, "Failed to close unsubmitted run", "execution_id", execution.ID, "error", abortErr)
		}

		return nil
	}

	logger.InfoContext(ctx, "Workflow run launched", "execution_id", started.ID, "priority", workflow.Priority)

	return &started
}

// RunManual runs workflowID for candidateID on behalf of executedBy and waits for the
// closed record. A manual run skips the trigger, the activation flag, the schedule and the
// caps, but still queues behind the other runs of the candidate.
func (d *Dispatcher) RunManual(ctx context.Context, workflowID, candidateID, executedBy string) (*models.WorkflowExecution, error) {
	execution, err := d.executor.Start(ctx, workflowID, candidateID, executedBy)
	if err != nil {
		return nil, err
	}

	var closed *models.WorkflowExecution

	finished := make(chan error, 1)

	err = d.supervisor.Submit(ctx, Job{
		ExecutionID: execution.ID,
		WorkflowID:  workflowID,
		CandidateID: candidateID,
		Run: func(ctx context.Context) error {
			var err error

			closed, err = d.executor.Execute(ctx, execution)

			return err
		},
		Finished: func(err error) {
			finished <- err
		},
	})
	if err != nil {
		return nil, errors.Join(err, d.executor.Abort(ctx, execution, err))
	}

	select {
	case err := <-finished:
		if closed == nil && err == nil {
			err = ErrRunAborted
		}

		return closed, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) suppress(ctx context.Context, logger *slog.Logger, workflow *models.Workflow, reason, detail string) {
	logger.InfoContext(ctx, "Workflow run suppressed", "reason", reason, "detail", detail)
	d.count(ctx, workflow, reason)
}

func (d *Dispatcher) count(ctx context.Context, workflow *models.Workflow, reason string) {
	if d.metrics == nil {
		return
	}

	d.metrics.Suppressed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ReasonKey, reason),
	))
}

func (d *Dispatcher) release(ctx context.Context, logger *slog.Logger, reservation Reservation) {
	err := reservation.Release(context.WithoutCancel(ctx))
	if err != nil {
		logger.WarnContext(ctx, "Failed to release execution reservation", "error", err)
	}
}
