package workflow_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukex/recruitflow/pkg/actions"
	"github.com/dukex/recruitflow/pkg/mocks"
	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
	"github.com/dukex/recruitflow/pkg/persistence/memory"
	"github.com/dukex/recruitflow/pkg/testutil"
	"github.com/dukex/recruitflow/pkg/workflow"
)

type harness struct {
	store      *memory.Persistence
	email      *mocks.MockEmailService
	notifier   *mocks.MockNotifier
	executor   *workflow.Executor
	supervisor *workflow.Supervisor
	dispatcher *workflow.Dispatcher
}

type harnessOptions struct {
	runner   workflow.ActionRunner
	limiter  func(store *memory.Persistence) workflow.Limiter
	now      func() time.Time
	location *time.Location

	saveFailures int
	saveErr      error
}

type harnessOption func(*harnessOptions)

func withRunner(runner workflow.ActionRunner) harnessOption {
	return func(o *harnessOptions) { o.runner = runner }
}

func withLimiter(limiter func(store *memory.Persistence) workflow.Limiter) harnessOption {
	return func(o *harnessOptions) { o.limiter = limiter }
}

// withFailingCandidateSaves makes the first failures candidate saves of the action runner
// return err.
func withFailingCandidateSaves(failures int, err error) harnessOption {
	return func(o *harnessOptions) {
		o.saveFailures = failures
		o.saveErr = err
	}
}

func withClock(now time.Time) harnessOption {
	return func(o *harnessOptions) { o.now = func() time.Time { return now } }
}

func withLocation(location *time.Location) harnessOption {
	return func(o *harnessOptions) { o.location = location }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	options := &harnessOptions{now: time.Now, location: time.UTC}
	for _, opt := range opts {
		opt(options)
	}

	emailService := &mocks.MockEmailService{}
	notifier := &mocks.MockNotifier{}

	runner := options.runner
	if runner == nil {
		var actionStore persistence.Persistence = store
		if options.saveFailures > 0 {
			actionStore = testutil.FailingCandidateSaves(store, options.saveFailures, options.saveErr)
		}

		runner = actions.NewExecutor(actionStore, emailService, notifier, actions.StaticUserDirectory{}, slog.Default(),
			actions.WithClock(options.now))
	}

	executor := workflow.NewExecutor(store, runner, slog.Default(),
		workflow.WithClock(options.now),
		workflow.WithRetry(2, time.Millisecond))
	supervisor := workflow.NewSupervisor(4, slog.Default())

	var limiter workflow.Limiter
	if options.limiter != nil {
		limiter = options.limiter(store)
	}

	gate := workflow.NewGate(store.ExecutionRepository(), limiter, options.location)
	dispatcher := workflow.NewDispatcher(store, gate, executor, supervisor, slog.Default(),
		workflow.WithDispatcherClock(options.now))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = supervisor.Shutdown(ctx)
	})

	return &harness{
		store:      store,
		email:      emailService,
		notifier:   notifier,
		executor:   executor,
		supervisor: supervisor,
		dispatcher: dispatcher,
	}
}

func (h *harness) saveWorkflow(t *testing.T, wf *models.Workflow) *models.Workflow {
	t.Helper()
	require.NoError(t, h.store.WorkflowRepository().Save(context.Background(), wf))

	return wf
}

func (h *harness) saveCandidate(t *testing.T, candidate *models.Candidate) *models.Candidate {
	t.Helper()
	require.NoError(t, h.store.CandidateRepository().Save(context.Background(), candidate))

	return candidate
}

// wait drains the supervisor so every launched run is closed.
func (h *harness) wait(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, h.supervisor.Shutdown(ctx))
}

func (h *harness) execution(t *testing.T, id string) *models.WorkflowExecution {
	t.Helper()

	execution, err := h.store.ExecutionRepository().GetByID(context.Background(), id)
	require.NoError(t, err)

	return execution
}

func (h *harness) count(t *testing.T, filter models.ExecutionFilter) int {
	t.Helper()

	count, err := h.store.ExecutionRepository().Count(context.Background(), filter)
	require.NoError(t, err)

	return count
}

// trackingRunner records how many actions run at once per candidate.
type trackingRunner struct {
	delay time.Duration

	mu      sync.Mutex
	running map[string]int
	peak    map[string]int
	order   []string
}

func newTrackingRunner(delay time.Duration) *trackingRunner {
	return &trackingRunner{delay: delay, running: map[string]int{}, peak: map[string]int{}}
}

func (r *trackingRunner) Execute(_ context.Context, _ models.Action, candidate *models.Candidate, wf *models.Workflow) (*actions.Outcome, error) {
	r.mu.Lock()
	r.running[candidate.ID]++
	if r.running[candidate.ID] > r.peak[candidate.ID] {
		r.peak[candidate.ID] = r.running[candidate.ID]
	}
	r.order = append(r.order, wf.ID)
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	r.running[candidate.ID]--
	r.mu.Unlock()

	return &actions.Outcome{Message: "ok"}, nil
}

func (r *trackingRunner) peakFor(candidateID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.peak[candidateID]
}

func (r *trackingRunner) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.order...)
}
