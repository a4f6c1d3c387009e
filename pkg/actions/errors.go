package actions

import (
	"errors"
	"fmt"

	"github.com/dukex/recruitflow/pkg/models"
)

var (
	// ErrMissingConfig is wrapped by errors about absent required action fields.
	ErrMissingConfig = errors.New("missing required configuration")

	// ErrInvalidRecipient is wrapped when an email or notification has no usable recipient.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrWebhookStatus is wrapped when a webhook answers with a non-2xx status.
	ErrWebhookStatus = errors.New("webhook returned non-success status")
)

// ExecutionError reports why one action failed. Reason is meant for the execution record.
type ExecutionError struct {
	ActionType models.ActionType
	Reason     string
	Err        error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s action failed: %s: %v", e.ActionType, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s action failed: %s", e.ActionType, e.Reason)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func newExecutionError(actionType models.ActionType, reason string, err error) *ExecutionError {
	return &ExecutionError{ActionType: actionType, Reason: reason, Err: err}
}

func missing(actionType models.ActionType, field string) *ExecutionError {
	return newExecutionError(actionType, field+" is required", ErrMissingConfig)
}
