// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukex/recruitflow/pkg/models"
)

// CreateTestWorkflow creates an active STATUS_CHANGED workflow with one ADD_TAG action.
// Overrides are applied in order.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Description: "A workflow for testing",
		IsActive:    true,
		Trigger:     models.NewTrigger(&models.StatusChangedCondition{ToStatus: models.StringSet{"interview"}}),
		Actions:     []models.Action{models.NewAction(&models.AddTagAction{TagName: "automated"})},
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithID sets the workflow ID.
func WithID(id string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.ID = id
	}
}

// WithName sets the workflow name.
func WithName(name string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Name = name
	}
}

// WithTrigger replaces the trigger condition.
func WithTrigger(condition models.TriggerCondition) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Trigger = models.NewTrigger(condition)
	}
}

// WithActions replaces the action list.
func WithActions(actions ...models.Action) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Actions = actions
	}
}

// WithActive sets the workflow active flag.
func WithActive(active bool) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.IsActive = active
	}
}

// WithPriority sets the workflow priority.
func WithPriority(priority int) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Priority = priority
	}
}

// WithTestMode marks the workflow as a dry run.
func WithTestMode() func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.TestMode = true
	}
}

// WithSchedule sets the execution window.
func WithSchedule(schedule models.Schedule) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Schedule = &schedule
	}
}

// WithMaxPerDay sets the daily execution cap.
func WithMaxPerDay(limit int) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.MaxExecutionsPerDay = &limit
	}
}

// WithMaxPerCandidate sets the per-candidate execution cap.
func WithMaxPerCandidate(limit int) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.MaxExecutionsPerCandidate = &limit
	}
}

// CreateTestCandidate creates a candidate in the "interview" stage.
func CreateTestCandidate(overrides ...func(*models.Candidate)) *models.Candidate {
	entered := time.Now().UTC().Add(-48 * time.Hour)

	candidate := &models.Candidate{
		ID:             uuid.New().String(),
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Email:          "ada@example.com",
		Position:       "Backend Engineer",
		Status:         "interview",
		Tags:           []string{},
		Notes:          []models.Note{},
		Activities:     []models.Activity{},
		AssignedTo:     "recruiter-1",
		StageEnteredAt: &entered,
		UpdatedAt:      time.Now().UTC(),
	}

	for _, override := range overrides {
		override(candidate)
	}

	return candidate
}

// WithCandidateID sets the candidate ID.
func WithCandidateID(id string) func(*models.Candidate) {
	return func(c *models.Candidate) {
		c.ID = id
	}
}

// WithStatus sets the candidate status.
func WithStatus(status string) func(*models.Candidate) {
	return func(c *models.Candidate) {
		c.Status = status
	}
}

// WithTags sets the candidate tags.
func WithTags(tags ...string) func(*models.Candidate) {
	return func(c *models.Candidate) {
		c.Tags = tags
	}
}

// WithEmail sets the candidate email.
func WithEmail(email string) func(*models.Candidate) {
	return func(c *models.Candidate) {
		c.Email = email
	}
}

// WithStageEnteredAt sets when the candidate entered the current stage.
func WithStageEnteredAt(at time.Time) func(*models.Candidate) {
	return func(c *models.Candidate) {
		c.StageEnteredAt = &at
	}
}

// WithAssignedTo sets the candidate owner. An empty id leaves the candidate unassigned.
func WithAssignedTo(userID string) func(*models.Candidate) {
	return func(c *models.Candidate) {
		c.AssignedTo = userID
	}
}

// CreateRunningExecution creates a running execution record for workflow and candidate.
func CreateRunningExecution(workflow *models.Workflow, candidate *models.Candidate, startedAt time.Time) *models.WorkflowExecution {
	return &models.WorkflowExecution{
		ID:            uuid.New().String(),
		WorkflowID:    workflow.ID,
		WorkflowName:  workflow.Name,
		CandidateID:   candidate.ID,
		CandidateName: candidate.FullName(),
		Trigger:       workflow.Trigger,
		Actions:       workflow.Actions,
		Status:        models.ExecutionStatusRunning,
		StartedAt:     startedAt,
		ExecutedBy:    models.ExecutedBySystem,
		Results:       []models.ActionResult{},
	}
}
