package web

import "github.com/dukex/recruitflow/pkg/models"

// StatusChangedRequest reports that a candidate moved between pipeline statuses.
type StatusChangedRequest struct {
	CandidateID string `json:"candidateId" validate:"required"`
	OldStatus   string `json:"oldStatus"`
	NewStatus   string `json:"newStatus"   validate:"required"`
}

// TagRequest reports a tag added to or removed from a candidate.
type TagRequest struct {
	CandidateID string `json:"candidateId" validate:"required"`
	Tag         string `json:"tag"         validate:"required"`
}

type DaysInStageRequest struct {
	CandidateID string `json:"candidateId" validate:"required"`
	DaysInStage *int   `json:"daysInStage" validate:"required,min=0"`
}

type ScoreRequest struct {
	CandidateID string   `json:"candidateId" validate:"required"`
	Score       *float64 `json:"score"       validate:"required"`
}

// RunWorkflowRequest starts a manual run. The acting user comes from the X-User-ID header.
type RunWorkflowRequest struct {
	CandidateID string `json:"candidateId" validate:"required"`
}

// EventAcceptedResponse is returned for every accepted candidate event. Executions lists
// the runs launched in this process; it is empty when the event was queued for the workers.
type EventAcceptedResponse struct {
	Event      models.EventContext `json:"event"`
	Queued     bool                `json:"queued"`
	Executions []string            `json:"executions"`
}
