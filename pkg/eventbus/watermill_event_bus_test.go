package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/recruitflow/pkg/channels/gochannel"
	"github.com/dukex/recruitflow/pkg/eventbus"
	"github.com/dukex/recruitflow/pkg/events"
	"github.com/dukex/recruitflow/pkg/models"
)

func newTestBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(slog.Default(), pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversTypedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)
	received := make(chan *events.CandidateEventReceived, 1)

	require.NoError(t, bus.Handle(events.CandidateEventReceivedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.CandidateEventReceived)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	published := events.NewCandidateEventReceived(models.TagAddedEvent("cand-1", "hot"))
	require.NoError(t, bus.Publish(ctx, "cand-1", published))

	select {
	case event := <-received:
		assert.Equal(t, published.ID, event.ID)
		assert.Equal(t, "hot", event.Event.Tag)
		assert.Equal(t, models.TriggerTagAdded, event.Event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	var calls atomic.Int32

	require.NoError(t, bus.Handle(events.NotificationRequestedEvent, func(context.Context, any) error {
		calls.Add(1)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	started := events.WorkflowExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.WorkflowExecutionStartedEvent, "wf-1", "cand-1"),
		ExecutionID: "exec-1",
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", started))

	notification := events.NotificationRequested{
		BaseEvent: events.NewBaseEvent(events.NotificationRequestedEvent, "wf-1", "cand-1"),
		Recipient: "recruiter-1",
		Message:   "hello",
	}
	require.NoError(t, bus.Publish(ctx, "recruiter-1", notification))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatermillEventBus_RedeliversOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	var attempts atomic.Int32

	require.NoError(t, bus.Handle(events.WorkflowExecutionDeadLetteredEvent, func(context.Context, any) error {
		if attempts.Add(1) == 1 {
			return errors.New("temporary failure")
		}

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	deadLettered := events.WorkflowExecutionDeadLettered{
		BaseEvent: events.NewBaseEvent(events.WorkflowExecutionDeadLetteredEvent, "wf-1", "cand-1"),
		Reason:    "panic",
		Error:     "boom",
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", deadLettered))

	assert.Eventually(t, func() bool { return attempts.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}
