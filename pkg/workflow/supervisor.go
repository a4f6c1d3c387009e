package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/dukex/recruitflow/pkg/eventbus"
	"github.com/dukex/recruitflow/pkg/events"
	"github.com/dukex/recruitflow/pkg/otelhelper"
)

const DefaultConcurrency = 8

// Dead-letter reasons.
const (
	DeadLetterPanic    = "panic"
	DeadLetterError    = "error"
	DeadLetterAborted  = "aborted"
	DeadLetterLockWait = "lock_unavailable"
)

// Job is one supervised run.
type Job struct {
	ExecutionID string
	WorkflowID  string
	CandidateID string
	Run         func(ctx context.Context) error

	// Finished, when set, is called once the job ran or was dropped, with the error that
	// dead-lettered it or nil.
	Finished func(err error)
}

// Supervisor runs jobs on a bounded pool. Jobs of the same candidate run one at a time in
// submission order; jobs of different candidates run in parallel. A job that panics or
// returns an error is dead-lettered: logged, counted and published.
type Supervisor struct {
	sem       *semaphore.Weighted
	locker    CandidateLocker
	publisher eventbus.EventPublisher
	metrics   *otelhelper.Metrics
	logger    *slog.Logger

	mu     sync.Mutex
	queues map[string][]Job
	closed bool
	wg     sync.WaitGroup

	ctx    context.Context //nolint:containedctx // cancelled to abort queued jobs on forced shutdown
	cancel context.CancelFunc
}

// SupervisorOption customizes a Supervisor.
type SupervisorOption func(*Supervisor)

func WithCandidateLocker(locker CandidateLocker) SupervisorOption {
	return func(s *Supervisor) {
		s.locker = locker
	}
}

// WithDeadLetterPublisher publishes dead-lettered jobs.
func WithDeadLetterPublisher(publisher eventbus.EventPublisher) SupervisorOption {
	return func(s *Supervisor) {
		s.publisher = publisher
	}
}

func WithSupervisorMetrics(metrics *otelhelper.Metrics) SupervisorOption {
	return func(s *Supervisor) {
		s.metrics = metrics
	}
}

func NewSupervisor(concurrency int64, logger *slog.Logger, opts ...SupervisorOption) *Supervisor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	ctx, cancel := context.WithCancel(context.Background())

	supervisor := &Supervisor{
		sem:    semaphore.NewWeighted(concurrency),
		locker: LocalLocker{},
		logger: logger.With("module", "supervisor"),
		queues: make(map[string][]Job),
		ctx:    ctx,
		cancel: cancel,
	}

	for _, opt := range opts {
		opt(supervisor)
	}

	return supervisor
}

// Submit queues job and returns immediately. The job runs detached from ctx's
// cancellation but keeps its values, such as the trace.
func (s *Supervisor) Submit(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSupervisorClosed
	}

	queue := s.queues[job.CandidateID]
	s.queues[job.CandidateID] = append(queue, job)

	if len(queue) == 0 {
		s.wg.Add(1)

		go s.drain(context.WithoutCancel(ctx), job.CandidateID)
	}

	return nil
}

// drain runs the queue of one candidate until it is empty.
func (s *Supervisor) drain(parent context.Context, candidateID string) {
	defer s.wg.Done()

	for {
		s.mu.Lock()

		queue := s.queues[candidateID]
		if len(queue) == 0 {
			delete(s.queues, candidateID)
			s.mu.Unlock()

			return
		}

		job := queue[0]
		s.mu.Unlock()

		s.run(parent, job)

		s.mu.Lock()
		s.queues[candidateID] = s.queues[candidateID][1:]
		s.mu.Unlock()
	}
}

func (s *Supervisor) run(parent context.Context, job Job) {
	var err error

	if job.Finished != nil {
		defer func() { job.Finished(err) }()
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	err = s.sem.Acquire(ctx, 1)
	if err != nil {
		s.deadLetter(parent, job, DeadLetterAborted, err)

		return
	}
	defer s.sem.Release(1)

	unlock, err := s.locker.Lock(ctx, job.CandidateID)
	if err != nil {
		s.deadLetter(parent, job, DeadLetterLockWait, err)

		return
	}

	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "Failed to release candidate lock", "candidate_id", job.CandidateID, "error", err)
		}
	}()

	var reason string

	reason, err = s.invoke(ctx, job)
	if err != nil {
		s.deadLetter(parent, job, reason, err)
	}
}

func (s *Supervisor) invoke(ctx context.Context, job Job) (reason string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.ErrorContext(ctx, "Recovered from panic in supervised run",
				"execution_id", job.ExecutionID,
				"panic", recovered,
				"stack", string(debug.Stack()))

			reason = DeadLetterPanic
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()

	if err := job.Run(ctx); err != nil {
		return DeadLetterError, err
	}

	return "", nil
}

func (s *Supervisor) deadLetter(ctx context.Context, job Job, reason string, err error) {
	s.logger.ErrorContext(ctx, "Supervised run dead-lettered",
		"execution_id", job.ExecutionID,
		"workflow_id", job.WorkflowID,
		"candidate_id", job.CandidateID,
		"reason", reason,
		"error", err)

	if s.metrics != nil {
		s.metrics.DeadLetters.Add(ctx, 1, metric.WithAttributes(attribute.String(otelhelper.ReasonKey, reason)))
	}

	if s.publisher == nil {
		return
	}

	event := events.WorkflowExecutionDeadLettered{
		BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionDeadLetteredEvent, job.WorkflowID, job.CandidateID),
		ExecutionID: job.ExecutionID,
		Reason:      reason,
		Error:       err.Error(),
	}

	if pubErr := s.publisher.Publish(ctx, job.ExecutionID, event); pubErr != nil {
		s.logger.ErrorContext(ctx, "Failed to publish dead letter", "execution_id", job.ExecutionID, "error", pubErr)
	}
}

// Pending returns the number of jobs queued or running.
func (s *Supervisor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := 0
	for _, queue := range s.queues {
		pending += len(queue)
	}

	return pending
}

// Shutdown stops accepting jobs and waits for queued ones. When ctx ends first, jobs still
// waiting are aborted and dead-lettered, and running ones see their context cancelled.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()

		return nil
	case <-ctx.Done():
		s.cancel()
		<-done

		return errors.Join(errors.New("supervisor shutdown interrupted"), ctx.Err())
	}
}
