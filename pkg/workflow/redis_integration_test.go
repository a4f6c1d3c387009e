//go:build integration

package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence/memory"
	"github.com/dukex/recruitflow/pkg/testutil"
	"github.com/dukex/recruitflow/pkg/workflow"
)

func setupRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{fmt.Sprintf("%s:%s", host, port.Port())},
	})

	t.Cleanup(func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	})

	require.NoError(t, client.Ping(ctx).Err())

	return client
}

func TestRedisLimiter_DailyCapAcrossLimiters(t *testing.T) {
	client := setupRedis(t)

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	wf := testutil.CreateTestWorkflow(testutil.WithMaxPerDay(3))
	now := time.Now()

	// two limiters sharing one Redis act like two dispatcher processes
	limiters := []workflow.Limiter{
		workflow.NewRedisLimiter(client, store.ExecutionRepository(), time.UTC, slog.Default()),
		workflow.NewRedisLimiter(client, store.ExecutionRepository(), time.UTC, slog.Default()),
	}

	var admitted atomic.Int32

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func(limiter workflow.Limiter) {
			defer wg.Done()

			_, err := limiter.Reserve(context.Background(), wf, fmt.Sprintf("candidate-%d", i), now)
			if err == nil {
				admitted.Add(1)
			}
		}(limiters[i%2])
	}

	wg.Wait()

	assert.Equal(t, int32(3), admitted.Load())
}

func TestRedisLimiter_SeedsFromStoreAndReleases(t *testing.T) {
	client := setupRedis(t)

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	candidate := testutil.CreateTestCandidate()
	wf := testutil.CreateTestWorkflow(testutil.WithMaxPerCandidate(2))
	now := time.Now()

	require.NoError(t, store.ExecutionRepository().Create(context.Background(), testutil.CreateRunningExecution(wf, candidate, now)))

	limiter := workflow.NewRedisLimiter(client, store.ExecutionRepository(), time.UTC, slog.Default())

	reservation, err := limiter.Reserve(context.Background(), wf, candidate.ID, now)
	require.NoError(t, err)

	_, err = limiter.Reserve(context.Background(), wf, candidate.ID, now)

	var suppression *workflow.Suppression
	require.ErrorAs(t, err, &suppression)
	assert.Equal(t, workflow.ReasonCandidateCap, suppression.Reason)

	require.NoError(t, reservation.Release(context.Background()))

	_, err = limiter.Reserve(context.Background(), wf, candidate.ID, now)
	require.NoError(t, err)
}

// failDailyDecr fails every DECR of a daily cap counter.
type failDailyDecr struct{}

func (failDailyDecr) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (failDailyDecr) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "decr" && strings.Contains(fmt.Sprint(cmd.Args()[1]), ":day:") {
			return errors.New("connection reset by peer")
		}

		return next(ctx, cmd)
	}
}

func (failDailyDecr) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisLimiter_LogsFailedRelease(t *testing.T) {
	client := setupRedis(t)
	client.AddHook(failDailyDecr{})

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	candidate := testutil.CreateTestCandidate()
	wf := testutil.CreateTestWorkflow(testutil.WithMaxPerDay(5), testutil.WithMaxPerCandidate(1))
	now := time.Now()

	require.NoError(t, store.ExecutionRepository().Create(context.Background(), testutil.CreateRunningExecution(wf, candidate, now)))

	var logs bytes.Buffer

	limiter := workflow.NewRedisLimiter(client, store.ExecutionRepository(), time.UTC,
		slog.New(slog.NewTextHandler(&logs, nil)))

	_, err = limiter.Reserve(context.Background(), wf, candidate.ID, now)

	var suppression *workflow.Suppression
	require.ErrorAs(t, err, &suppression)
	assert.Equal(t, workflow.ReasonCandidateCap, suppression.Reason)
	assert.Contains(t, logs.String(), "Failed to release execution reservation")
	assert.Contains(t, logs.String(), "connection reset by peer")
	assert.Contains(t, logs.String(), wf.ID)
}

func TestRedisLimiter_WithDispatcher(t *testing.T) {
	client := setupRedis(t)

	h := newHarness(t, withLimiter(func(store *memory.Persistence) workflow.Limiter {
		return workflow.NewRedisLimiter(client, store.ExecutionRepository(), time.UTC, slog.Default())
	}))

	candidate := h.saveCandidate(t, testutil.CreateTestCandidate())
	wf := h.saveWorkflow(t, testutil.CreateTestWorkflow(testutil.WithMaxPerCandidate(1)))

	require.Len(t, h.dispatcher.OnStatusChanged(context.Background(), candidate.ID, "new", "interview"), 1)
	assert.Empty(t, h.dispatcher.OnStatusChanged(context.Background(), candidate.ID, "new", "interview"))

	h.wait(t)
	assert.Equal(t, 1, h.count(t, models.ExecutionFilter{WorkflowID: wf.ID}))
}

func TestRedisLocker_ExcludesHolders(t *testing.T) {
	client := setupRedis(t)

	locker := workflow.NewRedisLocker(client, time.Minute, 100*time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "candidate-1")
	require.NoError(t, err)

	_, err = locker.Lock(context.Background(), "candidate-1")
	require.Error(t, err)

	other, err := locker.Lock(context.Background(), "candidate-2")
	require.NoError(t, err)
	require.NoError(t, other(context.Background()))

	require.NoError(t, unlock(context.Background()))
	require.ErrorIs(t, unlock(context.Background()), workflow.ErrLockNotHeld)

	again, err := locker.Lock(context.Background(), "candidate-1")
	require.NoError(t, err)
	require.NoError(t, again(context.Background()))
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	client := setupRedis(t)

	locker := workflow.NewRedisLocker(client, 100*time.Millisecond, time.Second)

	stale, err := locker.Lock(context.Background(), "candidate-1")
	require.NoError(t, err)

	// waits for the first lock to expire
	current, err := locker.Lock(context.Background(), "candidate-1")
	require.NoError(t, err)

	require.ErrorIs(t, stale(context.Background()), workflow.ErrLockNotHeld)
	require.NoError(t, current(context.Background()))
}

func TestSupervisor_WithRedisLocker(t *testing.T) {
	client := setupRedis(t)

	candidate := testutil.CreateTestCandidate()

	// holding the lock here stands in for another worker process running the candidate
	locker := workflow.NewRedisLocker(client, time.Minute, 5*time.Second)
	unlock, err := locker.Lock(context.Background(), candidate.ID)
	require.NoError(t, err)

	supervisor := workflow.NewSupervisor(2, slog.Default(), workflow.WithCandidateLocker(locker))

	var ran atomic.Bool

	require.NoError(t, supervisor.Submit(context.Background(), workflow.Job{
		CandidateID: candidate.ID,
		Run: func(context.Context) error {
			ran.Store(true)

			return nil
		},
	}))

	time.Sleep(300 * time.Millisecond)
	assert.False(t, ran.Load(), "job ran while another process held the candidate lock")

	require.NoError(t, unlock(context.Background()))
	shutdown(t, supervisor)

	assert.True(t, ran.Load())
}
