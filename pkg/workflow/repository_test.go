package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/recruitflow/pkg/mocks"
	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
	"github.com/dukex/recruitflow/pkg/persistence/memory"
	"github.com/dukex/recruitflow/pkg/testutil"
	"github.com/dukex/recruitflow/pkg/workflow"
)

func newRepository(t *testing.T) (*workflow.Repository, *memory.Persistence) {
	t.Helper()

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	return workflow.NewRepository(store), store
}

func TestRepository_HealthCheck(t *testing.T) {
	repo, _ := newRepository(t)

	message, ok := repo.HealthCheck(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	store := mocks.NewMockPersistence()
	store.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

	message, ok = workflow.NewRepository(store).HealthCheck(context.Background())
	assert.False(t, ok)
	assert.Contains(t, message, "connection refused")
}

func TestRepository_CreateAssignsIDAndZeroesCounters(t *testing.T) {
	repo, _ := newRepository(t)

	wf := testutil.CreateTestWorkflow(testutil.WithID(""))
	wf.ExecutionCount = 7
	wf.SuccessCount = 7

	created, err := repo.Create(context.Background(), wf)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Zero(t, created.ExecutionCount)
	assert.Zero(t, created.SuccessCount)
	assert.False(t, created.CreatedAt.IsZero())

	stored, err := repo.FetchByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, stored.Name)
}

func TestRepository_CreateRejectsInvalidWorkflow(t *testing.T) {
	repo, _ := newRepository(t)

	_, err := repo.Create(context.Background(), testutil.CreateTestWorkflow(testutil.WithActions()))
	require.Error(t, err)

	all, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRepository_UpdatePreservesCounters(t *testing.T) {
	repo, store := newRepository(t)

	created, err := repo.Create(context.Background(), testutil.CreateTestWorkflow())
	require.NoError(t, err)
	require.NoError(t, store.WorkflowRepository().RecordExecution(context.Background(), created.ID, true, time.Now()))

	update := testutil.CreateTestWorkflow(testutil.WithName("Renamed workflow"), testutil.WithPriority(3))

	updated, err := repo.Update(context.Background(), created.ID, update)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Renamed workflow", updated.Name)
	assert.Equal(t, 1, updated.ExecutionCount)
	assert.Equal(t, 1, updated.SuccessCount)
	assert.NotNil(t, updated.LastExecutedAt)
}

func TestRepository_UpdateRejectsTriggerTypeChange(t *testing.T) {
	repo, _ := newRepository(t)

	created, err := repo.Create(context.Background(), testutil.CreateTestWorkflow())
	require.NoError(t, err)

	_, err = repo.Update(context.Background(), created.ID, testutil.CreateTestWorkflow(
		testutil.WithTrigger(&models.TagAddedCondition{TagFilter: models.TagFilter{Tag: "hot"}}),
	))
	require.ErrorIs(t, err, persistence.ErrTriggerTypeChanged)
}

func TestRepository_UpdateMissingWorkflow(t *testing.T) {
	repo, _ := newRepository(t)

	_, err := repo.Update(context.Background(), "missing", testutil.CreateTestWorkflow())
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRepository_SetActive(t *testing.T) {
	repo, store := newRepository(t)

	created, err := repo.Create(context.Background(), testutil.CreateTestWorkflow())
	require.NoError(t, err)

	_, err = repo.SetActive(context.Background(), created.ID, false)
	require.NoError(t, err)

	active, err := store.WorkflowRepository().GetActiveByTriggerType(context.Background(), models.TriggerStatusChanged)
	require.NoError(t, err)
	assert.Empty(t, active)

	activated, err := repo.SetActive(context.Background(), created.ID, true)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
}

func TestRepository_Delete(t *testing.T) {
	repo, _ := newRepository(t)

	created, err := repo.Create(context.Background(), testutil.CreateTestWorkflow())
	require.NoError(t, err)

	require.NoError(t, repo.Delete(context.Background(), created.ID))

	err = repo.Delete(context.Background(), created.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRepository_Import(t *testing.T) {
	repo, _ := newRepository(t)

	definition := []byte(`{
		"id": "wf-interview",
		"name": "Interview follow-up",
		"isActive": true,
		"trigger": {"type": "STATUS_CHANGED", "toStatus": ["interview"]},
		"actions": [{"type": "ADD_TAG", "tagName": "hot"}]
	}`)

	created, err := repo.Import(context.Background(), definition)
	require.NoError(t, err)
	assert.Equal(t, "wf-interview", created.ID)
	assert.Equal(t, models.TriggerStatusChanged, created.Trigger.Type())

	// importing the same id again updates in place
	renamed := []byte(`{
		"id": "wf-interview",
		"name": "Interview follow-up v2",
		"trigger": {"type": "STATUS_CHANGED", "toStatus": "interview"},
		"actions": [{"type": "ADD_TAG", "tagName": "hot"}]
	}`)

	updated, err := repo.Import(context.Background(), renamed)
	require.NoError(t, err)
	assert.Equal(t, "Interview follow-up v2", updated.Name)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	all, err := repo.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRepository_ImportRejectsInvalidDefinition(t *testing.T) {
	repo, _ := newRepository(t)

	_, err := repo.Import(context.Background(), []byte(`{"name": "No", "trigger": {"type": "SOMETHING"}, "actions": []}`))

	var definitionErr *models.DefinitionError
	require.ErrorAs(t, err, &definitionErr)
	assert.NotEmpty(t, definitionErr.Violations)
}

func TestRepository_Executions(t *testing.T) {
	h := newHarness(t)
	repo := workflow.NewRepository(h.store)

	candidate := h.saveCandidate(t, testutil.CreateTestCandidate())
	wf := h.saveWorkflow(t, testutil.CreateTestWorkflow())

	launched := h.dispatcher.OnStatusChanged(context.Background(), candidate.ID, "new", "interview")
	require.Len(t, launched, 1)
	h.wait(t)

	executions, err := repo.Executions(context.Background(), wf.ID, 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, launched[0].ID, executions[0].ID)

	execution, err := repo.Execution(context.Background(), launched[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	_, err = repo.Executions(context.Background(), "missing", 10)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}
