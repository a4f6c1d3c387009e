package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/recruitflow/pkg/eventbus"
	"github.com/dukex/recruitflow/pkg/events"
)

// Manager consumes candidate events from the event bus and dispatches them, so events
// published by other processes reach this worker's dispatcher.
type Manager struct {
	workerID   string
	bus        eventbus.EventSubscriber
	dispatcher *Dispatcher
	supervisor *Supervisor
	logger     *slog.Logger
}

func NewManager(workerID string, bus eventbus.EventSubscriber, dispatcher *Dispatcher, supervisor *Supervisor, logger *slog.Logger) *Manager {
	return &Manager{
		workerID:   workerID,
		bus:        bus,
		dispatcher: dispatcher,
		supervisor: supervisor,
		logger: logger.With(
			"module", "worker_manager",
			"worker_id", workerID,
		),
	}
}

// Start registers the candidate event handler and consumes until ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	err := m.bus.Handle(events.CandidateEventReceivedEvent, m.handleCandidateEvent)
	if err != nil {
		return fmt.Errorf("failed to register candidate event handler: %w", err)
	}

	err = m.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	m.logger.InfoContext(ctx, "Worker consuming candidate events")

	<-ctx.Done()

	return nil
}

// Stop waits for the runs already handed to the supervisor.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Stopping worker", "pending_runs", m.supervisor.Pending())

	return m.supervisor.Shutdown(ctx)
}

func (m *Manager) handleCandidateEvent(ctx context.Context, event any) error {
	received, ok := event.(*events.CandidateEventReceived)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	err := received.Validate()
	if err != nil {
		// redelivery cannot fix a malformed event
		m.logger.WarnContext(ctx, "Discarding invalid candidate event", "event_id", received.ID, "error", err)

		return nil
	}

	launched := m.dispatcher.OnEvent(ctx, received.Event.CandidateID, received.Event)

	m.logger.DebugContext(ctx, "Candidate event dispatched",
		"event_id", received.ID,
		"event_type", received.Event.Type,
		"candidate_id", received.Event.CandidateID,
		"launched", len(launched))

	return nil
}

// PublishCandidateEvent puts a candidate event on the bus for the workers to dispatch.
func PublishCandidateEvent(ctx context.Context, publisher eventbus.EventPublisher, event *events.CandidateEventReceived) error {
	err := event.Validate()
	if err != nil {
		return err
	}

	return publisher.Publish(ctx, event.Event.CandidateID, event)
}
