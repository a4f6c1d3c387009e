// Package events defines event types and structures for candidate and workflow execution notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single topic every recruitflow event is published to.
const Topic = "recruitflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Candidate domain events emitted by the CRM.
	CandidateEventReceivedEvent EventType = "candidate.event.received"

	// Workflow execution lifecycle events.
	WorkflowExecutionStartedEvent      EventType = "workflow.execution.started"
	WorkflowExecutionCompletedEvent    EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent       EventType = "workflow.execution.failed"
	WorkflowExecutionDeadLetteredEvent EventType = "workflow.execution.dead_lettered"

	// Notifications addressed to recruiters.
	NotificationRequestedEvent EventType = "notification.requested"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	CandidateID string         `json:"candidate_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Workflow execution lifecycle events

type WorkflowExecutionStarted struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	WorkflowName string `json:"workflow_name"`
	TriggerType  string `json:"trigger_type"`
	ExecutedBy   string `json:"executed_by"`
	TestMode     bool   `json:"test_mode,omitempty"`
}

func (w WorkflowExecutionStarted) GetType() EventType {
	return WorkflowExecutionStartedEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID     string `json:"execution_id"`
	Status          string `json:"status"`
	DurationMs      int64  `json:"duration_ms"`
	ActionsExecuted int    `json:"actions_executed"`
	ActionsSkipped  int    `json:"actions_skipped"`
}

func (w WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	ExecutionID string          `json:"execution_id"`
	Status      string          `json:"status"`
	DurationMs  int64           `json:"duration_ms"`
	Failures    []ActionFailure `json:"failures"`
}

// ActionFailure identifies one failed action of a run.
type ActionFailure struct {
	ActionIndex int    `json:"action_index"`
	ActionType  string `json:"action_type"`
	Message     string `json:"message"`
}

func (w WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

// WorkflowExecutionDeadLettered is published when a supervised run could not be carried
// out at all: it panicked, or the orchestrator returned an error.
type WorkflowExecutionDeadLettered struct {
	BaseEvent

	ExecutionID string `json:"execution_id,omitempty"`
	Reason      string `json:"reason"`
	Error       string `json:"error"`
}

func (w WorkflowExecutionDeadLettered) GetType() EventType {
	return WorkflowExecutionDeadLetteredEvent
}

type NotificationRequested struct {
	BaseEvent

	Recipient string `json:"recipient"`
	Title     string `json:"title"`
	Message   string `json:"message"`
}

func (n NotificationRequested) GetType() EventType {
	return NotificationRequestedEvent
}

func NewBaseEvent(eventType EventType, workflowID, candidateID string) BaseEvent {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return BaseEvent{
		ID:          id.String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		CandidateID: candidateID,
		Metadata:    make(map[string]any),
	}
}
