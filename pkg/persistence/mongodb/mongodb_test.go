//go:build integration

package mongodb_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
	"github.com/dukex/recruitflow/pkg/persistence/mongodb"
	"github.com/dukex/recruitflow/pkg/persistence/persistencetest"
	"github.com/dukex/recruitflow/pkg/testutil"
)

func setupMongo(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	return fmt.Sprintf("mongodb://%s:%s", host, port.Port())
}

func TestPersistenceContract(t *testing.T) {
	uri := setupMongo(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		// A fresh database per subtest keeps the contract checks independent.
		store, err := mongodb.NewPersistence(t.Context(), logger, uri, "recruitflow_"+uuid.NewString()[:8])
		require.NoError(t, err)

		t.Cleanup(func() {
			_ = store.Close(context.Background())
		})

		return store
	})
}

func TestWorkflowRepository_SaveKeepsStoredCounters(t *testing.T) {
	uri := setupMongo(t)

	store, err := mongodb.NewPersistence(t.Context(), slog.Default(), uri, "recruitflow_counters")
	require.NoError(t, err)

	defer func() {
		_ = store.Close(context.Background())
	}()

	repo := store.WorkflowRepository()
	workflow := testutil.CreateTestWorkflow(testutil.WithSchedule(models.Schedule{Enabled: true, Hours: []int{9}}))

	require.NoError(t, repo.Save(t.Context(), workflow))
	require.NoError(t, repo.RecordExecution(t.Context(), workflow.ID, false, time.Now()))

	workflow.Schedule = nil
	workflow.Description = "Body with $dollar signs"
	require.NoError(t, repo.Save(t.Context(), workflow))

	loaded, err := repo.GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.Schedule)
	assert.Equal(t, "Body with $dollar signs", loaded.Description)
	assert.Equal(t, 1, loaded.ExecutionCount)
	assert.Equal(t, 1, loaded.FailureCount)
	require.NotNil(t, loaded.LastExecutedAt)
}
