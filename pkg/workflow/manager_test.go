package workflow_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/recruitflow/pkg/channels/gochannel"
	"github.com/dukex/recruitflow/pkg/eventbus"
	"github.com/dukex/recruitflow/pkg/events"
	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/testutil"
	"github.com/dukex/recruitflow/pkg/workflow"
)

func startManager(t *testing.T, h *harness) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(slog.Default(), pub, sub)
	manager := workflow.NewManager("worker-test", bus, h.dispatcher, h.supervisor, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- manager.Start(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		require.NoError(t, bus.Close())
	})

	return bus
}

func TestManager_DispatchesPublishedEvents(t *testing.T) {
	h := newHarness(t)
	candidate := h.saveCandidate(t, testutil.CreateTestCandidate())
	wf := h.saveWorkflow(t, testutil.CreateTestWorkflow())

	bus := startManager(t, h)

	event := events.NewCandidateEventReceived(models.StatusChangedEvent(candidate.ID, "new", "interview"))
	require.NoError(t, workflow.PublishCandidateEvent(context.Background(), bus, event))

	assert.Eventually(t, func() bool {
		return h.count(t, models.ExecutionFilter{WorkflowID: wf.ID}) == 1
	}, 5*time.Second, 10*time.Millisecond)

	h.wait(t)

	executions, err := h.store.ExecutionRepository().ListByWorkflow(context.Background(), wf.ID, 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusCompleted, executions[0].Status)
}

func TestManager_DiscardsInvalidEvents(t *testing.T) {
	h := newHarness(t)
	candidate := h.saveCandidate(t, testutil.CreateTestCandidate())
	wf := h.saveWorkflow(t, testutil.CreateTestWorkflow())

	bus := startManager(t, h)

	// a status change without the new status cannot be evaluated
	invalid := events.NewCandidateEventReceived(models.EventContext{Type: models.TriggerStatusChanged, CandidateID: candidate.ID})
	require.NoError(t, bus.Publish(context.Background(), candidate.ID, invalid))

	// the invalid event is acked, so the next one is delivered
	valid := events.NewCandidateEventReceived(models.StatusChangedEvent(candidate.ID, "new", "interview"))
	require.NoError(t, workflow.PublishCandidateEvent(context.Background(), bus, valid))

	assert.Eventually(t, func() bool {
		return h.count(t, models.ExecutionFilter{WorkflowID: wf.ID}) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPublishCandidateEvent_Validates(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(slog.Default(), pub, sub)

	err = workflow.PublishCandidateEvent(context.Background(), bus, events.NewCandidateEventReceived(models.TagAddedEvent("", "hot")))
	require.ErrorIs(t, err, events.ErrInvalidEventData)

	err = workflow.PublishCandidateEvent(context.Background(), bus, events.NewCandidateEventReceived(models.TagAddedEvent("candidate-1", "")))
	require.ErrorIs(t, err, events.ErrInvalidEventData)
}

func TestManager_StopDrainsRuns(t *testing.T) {
	h := newHarness(t, withRunner(newTrackingRunner(50*time.Millisecond)))
	candidate := h.saveCandidate(t, testutil.CreateTestCandidate())
	h.saveWorkflow(t, testutil.CreateTestWorkflow())

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	manager := workflow.NewManager("worker-test", eventbus.NewWatermillEventBus(slog.Default(), pub, sub), h.dispatcher, h.supervisor, slog.Default())

	launched := h.dispatcher.OnStatusChanged(context.Background(), candidate.ID, "new", "interview")
	require.Len(t, launched, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, manager.Stop(ctx))
	assert.Equal(t, models.ExecutionStatusCompleted, h.execution(t, launched[0].ID).Status)
}
