// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrCandidateNotFound indicates a candidate was not found by the given identifier.
	ErrCandidateNotFound = errors.New("candidate not found")

	// ErrExecutionNotFound indicates a workflow execution was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionClosed indicates an attempt to close an execution that is no longer running.
	ErrExecutionClosed = errors.New("execution already closed")

	// ErrExecutionAlreadyExists indicates an execution with the same identifier already exists.
	ErrExecutionAlreadyExists = errors.New("execution already exists")

	// ErrTriggerTypeChanged indicates an update tried to change the trigger type of a workflow.
	ErrTriggerTypeChanged = errors.New("trigger type cannot change after creation")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// ExecutionError wraps execution-related errors with additional context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// CandidateError wraps candidate-related errors with additional context.
type CandidateError struct {
	Op          string
	CandidateID string
	Err         error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("%s operation failed for candidate %s: %v", e.Op, e.CandidateID, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

func (e *CandidateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewCandidateError(op, candidateID string, err error) *CandidateError {
	return &CandidateError{Op: op, CandidateID: candidateID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsCandidateNotFound checks if an error indicates a candidate was not found.
func IsCandidateNotFound(err error) bool {
	return errors.Is(err, ErrCandidateNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsNotFound checks if an error is any of the not-found errors.
func IsNotFound(err error) bool {
	return IsWorkflowNotFound(err) || IsCandidateNotFound(err) || IsExecutionNotFound(err)
}
