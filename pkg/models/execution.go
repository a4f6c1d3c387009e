package models

import "time"

// ExecutedBySystem marks executions launched by the event dispatcher rather than a user.
const ExecutedBySystem = "system"

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether the status is final.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// ActionResultStatus is the outcome of a single action within an execution.
type ActionResultStatus string

const (
	ActionResultSuccess ActionResultStatus = "success"
	ActionResultFailed  ActionResultStatus = "failed"
	ActionResultSkipped ActionResultStatus = "skipped"
)

// ActionResult records what happened to one action of a run.
type ActionResult struct {
	ActionIndex int                `json:"actionIndex"`
	ActionType  ActionType         `json:"actionType"`
	Status      ActionResultStatus `json:"status"`
	Message     string             `json:"message,omitempty"`
	Error       string             `json:"error,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
}

// WorkflowExecution is the audit record of one run of a workflow against one candidate.
// It is created as running and closed exactly once.
type WorkflowExecution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflowId"`
	WorkflowName  string          `json:"workflowName"`
	CandidateID   string          `json:"candidateId"`
	CandidateName string          `json:"candidateName"`
	Trigger       Trigger         `json:"trigger"`
	Actions       []Action        `json:"actions"`
	Status        ExecutionStatus `json:"status"`
	StartedAt     time.Time       `json:"startedAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	ExecutedBy    string          `json:"executedBy"`
	TestMode      bool            `json:"testMode,omitempty"`
	Results       []ActionResult  `json:"results"`
	Error         string          `json:"error,omitempty"`
}

// HasFailures reports whether any recorded action failed.
func (e *WorkflowExecution) HasFailures() bool {
	for _, result := range e.Results {
		if result.Status == ActionResultFailed {
			return true
		}
	}

	return false
}

// ExecutionFilter narrows execution counts. Empty fields are ignored.
type ExecutionFilter struct {
	WorkflowID  string
	CandidateID string
	Since       time.Time
}
