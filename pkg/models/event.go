package models

import "time"

// EventContext describes the domain event a workflow trigger is evaluated against.
// Fields that do not apply to Type are left empty.
type EventContext struct {
	Type        TriggerType `json:"type"`
	CandidateID string      `json:"candidateId"`
	OldStatus   string      `json:"oldStatus,omitempty"`
	NewStatus   string      `json:"newStatus,omitempty"`
	Tag         string      `json:"tag,omitempty"`
	DaysInStage *int        `json:"daysInStage,omitempty"`
	Score       *float64    `json:"score,omitempty"`
	OccurredAt  time.Time   `json:"occurredAt"`
}

func StatusChangedEvent(candidateID, oldStatus, newStatus string) EventContext {
	return EventContext{
		Type:        TriggerStatusChanged,
		CandidateID: candidateID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		OccurredAt:  time.Now().UTC(),
	}
}

func TagAddedEvent(candidateID, tag string) EventContext {
	return EventContext{Type: TriggerTagAdded, CandidateID: candidateID, Tag: tag, OccurredAt: time.Now().UTC()}
}

func TagRemovedEvent(candidateID, tag string) EventContext {
	return EventContext{Type: TriggerTagRemoved, CandidateID: candidateID, Tag: tag, OccurredAt: time.Now().UTC()}
}

func DaysInStageEvent(candidateID string, days int) EventContext {
	return EventContext{Type: TriggerDaysInStage, CandidateID: candidateID, DaysInStage: &days, OccurredAt: time.Now().UTC()}
}

func ScoreThresholdEvent(candidateID string, score float64) EventContext {
	return EventContext{Type: TriggerScoreThreshold, CandidateID: candidateID, Score: &score, OccurredAt: time.Now().UTC()}
}

func NoActivityEvent(candidateID string) EventContext {
	return EventContext{Type: TriggerNoActivity, CandidateID: candidateID, OccurredAt: time.Now().UTC()}
}
