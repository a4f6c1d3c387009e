package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
	"github.com/dukex/recruitflow/pkg/persistence/memory"
	"github.com/dukex/recruitflow/pkg/persistence/persistencetest"
	"github.com/dukex/recruitflow/pkg/testutil"
)

func newStore(t *testing.T) persistence.Persistence {
	t.Helper()

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	return store
}

func TestPersistenceContract(t *testing.T) {
	persistencetest.Run(t, newStore)
}

func TestWorkflowRepository_ReturnsCopies(t *testing.T) {
	store := newStore(t)
	repo := store.WorkflowRepository()

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, repo.Save(t.Context(), workflow))

	workflow.Name = "Mutated after save"
	workflow.Actions = append(workflow.Actions, models.NewAction(&models.RemoveTagAction{TagName: "cold"}))

	loaded, err := repo.GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	require.Equal(t, "Test Workflow", loaded.Name)
	require.Len(t, loaded.Actions, 1)

	loaded.Name = "Mutated after load"

	again, err := repo.GetByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	require.Equal(t, "Test Workflow", again.Name)
}
