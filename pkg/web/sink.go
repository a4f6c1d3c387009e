package web

import (
	"context"

	"github.com/dukex/recruitflow/pkg/eventbus"
	"github.com/dukex/recruitflow/pkg/events"
	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/workflow"
)

// EventSink takes the candidate events accepted by the API. Accept returns the ids of the
// runs it launched, or queued=true when the event was handed to other processes.
type EventSink interface {
	Accept(ctx context.Context, event models.EventContext) (executions []string, queued bool, err error)
}

// DispatchSink dispatches events in this process.
type DispatchSink struct {
	dispatcher *workflow.Dispatcher
}

func NewDispatchSink(dispatcher *workflow.Dispatcher) *DispatchSink {
	return &DispatchSink{dispatcher: dispatcher}
}

func (s *DispatchSink) Accept(ctx context.Context, event models.EventContext) ([]string, bool, error) {
	err := events.NewCandidateEventReceived(event).Validate()
	if err != nil {
		return nil, false, err
	}

	launched := s.dispatcher.OnEvent(ctx, event.CandidateID, event)

	ids := make([]string, 0, len(launched))
	for _, execution := range launched {
		ids = append(ids, execution.ID)
	}

	return ids, false, nil
}

// PublishSink publishes events for the workers consuming the event bus.
type PublishSink struct {
	publisher eventbus.EventPublisher
}

func NewPublishSink(publisher eventbus.EventPublisher) *PublishSink {
	return &PublishSink{publisher: publisher}
}

func (s *PublishSink) Accept(ctx context.Context, event models.EventContext) ([]string, bool, error) {
	err := workflow.PublishCandidateEvent(ctx, s.publisher, events.NewCandidateEventReceived(event))
	if err != nil {
		return nil, false, err
	}

	return []string{}, true, nil
}
