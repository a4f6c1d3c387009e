package models

import "time"

const (
	TaskStatusPending = "pending"

	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"

	// Unassigned is the assignee of tasks that resolve to nobody.
	Unassigned = "unassigned"
)

// Task is a follow-up item created for a recruiter.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CandidateID string    `json:"candidateId"`
	WorkflowID  string    `json:"workflowId,omitempty"`
	AssignedTo  string    `json:"assignedTo"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	DueDate     time.Time `json:"dueDate"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}
