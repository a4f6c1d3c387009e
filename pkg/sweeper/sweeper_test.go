package sweeper_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence/memory"
	"github.com/dukex/recruitflow/pkg/sweeper"
	"github.com/dukex/recruitflow/pkg/testutil"
)

type mockDispatcher struct {
	mock.Mock

	calls atomic.Int32
}

func (m *mockDispatcher) OnDaysInStage(ctx context.Context, candidateID string, daysInStage int) []*models.WorkflowExecution {
	m.calls.Add(1)
	args := m.Called(ctx, candidateID, daysInStage)

	return args.Get(0).([]*models.WorkflowExecution)
}

func TestSweep_EmitsForCandidatesInStage(t *testing.T) {
	store, err := memory.NewPersistence()
	require.NoError(t, err)

	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

	stale := testutil.CreateTestCandidate(testutil.WithStageEnteredAt(now.Add(-3*24*time.Hour - time.Hour)))
	fresh := testutil.CreateTestCandidate(testutil.WithStageEnteredAt(now.Add(-12 * time.Hour)))
	unknown := testutil.CreateTestCandidate()
	unknown.StageEnteredAt = nil

	for _, candidate := range []*models.Candidate{stale, fresh, unknown} {
		require.NoError(t, store.CandidateRepository().Save(context.Background(), candidate))
	}

	dispatcher := &mockDispatcher{}
	dispatcher.On("OnDaysInStage", mock.Anything, stale.ID, 3).
		Return([]*models.WorkflowExecution{{ID: "exec-1"}}).Once()

	s, err := sweeper.New(store.CandidateRepository(), dispatcher, "", slog.Default(), sweeper.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	launched, err := s.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, launched)
	dispatcher.AssertExpectations(t)
}

func TestNew_RejectsInvalidSchedule(t *testing.T) {
	store, err := memory.NewPersistence()
	require.NoError(t, err)

	_, err = sweeper.New(store.CandidateRepository(), &mockDispatcher{}, "every tuesday", slog.Default())
	require.Error(t, err)
}

func TestSweeper_StartRunsOnSchedule(t *testing.T) {
	store, err := memory.NewPersistence()
	require.NoError(t, err)

	candidate := testutil.CreateTestCandidate(testutil.WithStageEnteredAt(time.Now().Add(-48 * time.Hour)))
	require.NoError(t, store.CandidateRepository().Save(context.Background(), candidate))

	dispatcher := &mockDispatcher{}
	dispatcher.On("OnDaysInStage", mock.Anything, candidate.ID, 2).Return([]*models.WorkflowExecution{})

	s, err := sweeper.New(store.CandidateRepository(), dispatcher, "@every 1s", slog.Default())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), sweeper.ErrAlreadyStarted)

	assert.Eventually(t, func() bool {
		return dispatcher.calls.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
