package workflow

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dukex/recruitflow/pkg/events"
	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

var (
	// ErrNotRunnable is returned when a workflow has no actions to execute.
	ErrNotRunnable = errors.New("workflow has no actions")

	// ErrSupervisorClosed is returned when a run is submitted after Shutdown.
	ErrSupervisorClosed = errors.New("supervisor is shut down")

	// ErrRunAborted is returned when a supervised run ended without closing its record.
	ErrRunAborted = errors.New("workflow run aborted")

	// ErrLockNotHeld is returned when releasing a candidate lock owned by someone else.
	ErrLockNotHeld = errors.New("candidate lock not held")
)

// LoadError reports that a run could not start because the workflow or the candidate
// could not be loaded. No execution record exists when it is returned.
type LoadError struct {
	Entity string
	ID     string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s %s: %v", e.Entity, e.ID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// PersistenceError reports that an execution record or the workflow counters could not be
// written after retrying. Actions already executed are not re-run.
type PersistenceError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err is or wraps a *LoadError.
func IsLoadError(err error) bool {
	var loadErr *LoadError

	return errors.As(err, &loadErr)
}

// IsValidationError reports whether err rejects the caller's input: a malformed workflow
// definition or candidate event. Such errors map to HTTP 400.
func IsValidationError(err error) bool {
	var definitionErr *models.DefinitionError

	var fieldErrs validator.ValidationErrors

	return errors.As(err, &definitionErr) ||
		errors.As(err, &fieldErrs) ||
		errors.Is(err, models.ErrMissingTrigger) ||
		errors.Is(err, models.ErrMissingActionSpec) ||
		errors.Is(err, models.ErrNegativeDelay) ||
		errors.Is(err, models.ErrUnknownTriggerType) ||
		errors.Is(err, models.ErrUnknownActionType) ||
		errors.Is(err, events.ErrInvalidEventData)
}

// IsConflictError reports whether err refuses a change to the current state of a workflow.
func IsConflictError(err error) bool {
	return errors.Is(err, persistence.ErrTriggerTypeChanged) ||
		errors.Is(err, ErrNotRunnable)
}
