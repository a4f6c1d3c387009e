package events

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/recruitflow/pkg/models"
)

// ErrInvalidEventData is returned when a candidate event is missing the fields its type needs.
var ErrInvalidEventData = errors.New("invalid event data")

// CandidateEventReceived carries a candidate domain event from the CRM to the workers
// that dispatch it to workflows.
type CandidateEventReceived struct {
	BaseEvent

	Event models.EventContext `json:"event"`
}

func (c CandidateEventReceived) GetType() EventType {
	return CandidateEventReceivedEvent
}

// NewCandidateEventReceived wraps a domain event for publishing.
func NewCandidateEventReceived(event models.EventContext) *CandidateEventReceived {
	return &CandidateEventReceived{
		BaseEvent: NewBaseEvent(CandidateEventReceivedEvent, "", event.CandidateID),
		Event:     event,
	}
}

// Validate checks that the wrapped event names a candidate, has a known type and carries
// the field its type is evaluated on.
func (c *CandidateEventReceived) Validate() error {
	event := c.Event

	if event.CandidateID == "" {
		return fmt.Errorf("%w: candidateId is required", ErrInvalidEventData)
	}

	if !slices.Contains(models.TriggerTypes, event.Type) {
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidEventData, event.Type)
	}

	switch event.Type {
	case models.TriggerStatusChanged:
		if event.NewStatus == "" {
			return fmt.Errorf("%w: newStatus is required", ErrInvalidEventData)
		}
	case models.TriggerTagAdded, models.TriggerTagRemoved:
		if event.Tag == "" {
			return fmt.Errorf("%w: tag is required", ErrInvalidEventData)
		}
	case models.TriggerDaysInStage:
		if event.DaysInStage == nil {
			return fmt.Errorf("%w: daysInStage is required", ErrInvalidEventData)
		}
	case models.TriggerScoreThreshold:
		if event.Score == nil {
			return fmt.Errorf("%w: score is required", ErrInvalidEventData)
		}
	case models.TriggerNoActivity:
	}

	return nil
}
