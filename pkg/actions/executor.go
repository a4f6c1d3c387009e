// Package actions executes the side effects of workflow actions against candidate records
// and external collaborators.
package actions

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/recruitflow/pkg/email"
	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/notification"
	"github.com/dukex/recruitflow/pkg/persistence"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultCompanyName = "Our Company"
	defaultTaskDueDays = 7
	testModePrefix     = "[test mode] "
	currentDateLayout  = "January 2, 2006"
)

// Outcome describes a successful action.
type Outcome struct {
	Message  string
	Metadata map[string]any
}

// Executor runs single actions. It is safe for concurrent use; callers serialize runs that
// touch the same candidate.
type Executor struct {
	candidates persistence.CandidateRepository
	tasks      persistence.TaskRepository
	email      email.Service
	notifier   notification.Notifier
	users      UserDirectory
	httpClient *http.Client
	logger     *slog.Logger

	companyName string
	timeout     time.Duration
	now         func() time.Time
}

// Option customizes an Executor.
type Option func(*Executor)

// WithTimeout bounds every action. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithCompanyName sets the value of the companyName template variable.
func WithCompanyName(name string) Option {
	return func(e *Executor) {
		if name != "" {
			e.companyName = name
		}
	}
}

// WithHTTPClient replaces the client used by WEBHOOK actions.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Executor) {
		e.httpClient = client
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

func NewExecutor(
	store persistence.Persistence,
	emailService email.Service,
	notifier notification.Notifier,
	users UserDirectory,
	logger *slog.Logger,
	opts ...Option,
) *Executor {
	executor := &Executor{
		candidates:  store.CandidateRepository(),
		tasks:       store.TaskRepository(),
		email:       emailService,
		notifier:    notifier,
		users:       users,
		logger:      logger.With("module", "action_executor"),
		companyName: DefaultCompanyName,
		timeout:     DefaultTimeout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(executor)
	}

	if executor.httpClient == nil {
		executor.httpClient = &http.Client{Timeout: executor.timeout}
	}

	return executor
}

// Execute performs action for candidate on behalf of workflow. candidate is updated only
// after a change is persisted, so later actions of the same run observe the changes of
// earlier successful actions and none of a failed one.
// Every failure is returned as an *ExecutionError.
func (e *Executor) Execute(ctx context.Context, action models.Action, candidate *models.Candidate, workflow *models.Workflow) (*Outcome, error) {
	if action.Spec == nil {
		return nil, newExecutionError("", "action has no configuration", nil)
	}

	err := validateSpec(action.Spec)
	if err != nil {
		return nil, err
	}

	if workflow.TestMode {
		return e.dryRun(action.Spec, candidate), nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	logger := e.logger.With("action_type", action.Type(), "workflow_id", workflow.ID, "candidate_id", candidate.ID)
	logger.DebugContext(ctx, "Executing action")

	switch spec := action.Spec.(type) {
	case *models.SendEmailAction:
		return e.sendEmail(ctx, spec, candidate)
	case *models.AddTagAction:
		return e.addTag(ctx, spec, candidate)
	case *models.RemoveTagAction:
		return e.removeTag(ctx, spec, candidate)
	case *models.ChangeStatusAction:
		return e.changeStatus(ctx, spec, candidate, workflow)
	case *models.AddNoteAction:
		return e.addNote(ctx, spec, candidate)
	case *models.CreateTaskAction:
		return e.createTask(ctx, spec, candidate, workflow)
	case *models.AssignUserAction:
		return e.assignUser(ctx, spec, candidate, workflow)
	case *models.SendNotificationAction:
		return e.sendNotification(ctx, spec, candidate, workflow)
	case *models.WebhookAction:
		return e.callWebhook(ctx, spec, candidate, workflow)
	default:
		return nil, newExecutionError(action.Type(), "unsupported action type", nil)
	}
}

// Variables returns the template variables available to email subjects, bodies and notes.
func (e *Executor) Variables(candidate *models.Candidate) map[string]any {
	return map[string]any{
		"firstName":   candidate.FirstName,
		"lastName":    candidate.LastName,
		"fullName":    candidate.FullName(),
		"email":       candidate.Email,
		"position":    candidate.Position,
		"companyName": e.companyName,
		"currentDate": e.now().Format(currentDateLayout),
	}
}

// updateCandidate applies change to a copy of candidate and saves the copy. candidate only
// takes the new state once the save succeeds, so a failed action leaves nothing behind for
// later actions of the run to persist. change reports whether anything changed; when it did
// not, nothing is saved.
func (e *Executor) updateCandidate(
	ctx context.Context,
	actionType models.ActionType,
	candidate *models.Candidate,
	change func(*models.Candidate) bool,
) (bool, error) {
	updated := candidate.Clone()
	if !change(updated) {
		return false, nil
	}

	updated.UpdatedAt = e.now().UTC()

	err := e.candidates.Save(ctx, updated)
	if err != nil {
		return false, newExecutionError(actionType, "failed to save candidate", err)
	}

	*candidate = *updated

	return true, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
