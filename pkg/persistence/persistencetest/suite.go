// Package persistencetest holds the behavioral checks every persistence backend must pass.
package persistencetest

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
	"github.com/dukex/recruitflow/pkg/testutil"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) persistence.Persistence

// Run exercises the repository contracts against the store built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("workflow round trip", func(t *testing.T) {
		store := newStore(t)
		repo := store.WorkflowRepository()

		days := 7
		workflow := testutil.CreateTestWorkflow(
			testutil.WithTrigger(&models.DaysInStageCondition{DaysInStage: &days}),
			testutil.WithActions(
				models.NewAction(&models.SendEmailAction{EmailTo: models.EmailToCandidate, EmailSubject: "Hi {{firstName}}"}),
				models.Action{Spec: &models.CreateTaskAction{TaskTitle: "Call"}, DelayMinutes: 30},
			),
			testutil.WithMaxPerDay(5),
		)

		require.NoError(t, repo.Save(t.Context(), workflow))
		assert.False(t, workflow.CreatedAt.IsZero())

		loaded, err := repo.GetByID(t.Context(), workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.Name, loaded.Name)
		assert.Equal(t, models.TriggerDaysInStage, loaded.Trigger.Type())
		require.Len(t, loaded.Actions, 2)
		assert.Equal(t, models.ActionSendEmail, loaded.Actions[0].Type())
		assert.Equal(t, 30, loaded.Actions[1].DelayMinutes)
		require.NotNil(t, loaded.MaxExecutionsPerDay)
		assert.Equal(t, 5, *loaded.MaxExecutionsPerDay)

		condition, ok := loaded.Trigger.Condition.(*models.DaysInStageCondition)
		require.True(t, ok)
		require.NotNil(t, condition.DaysInStage)
		assert.Equal(t, 7, *condition.DaysInStage)
	})

	t.Run("workflow not found", func(t *testing.T) {
		store := newStore(t)

		_, err := store.WorkflowRepository().GetByID(t.Context(), uuid.NewString())
		require.Error(t, err)
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("trigger type is immutable", func(t *testing.T) {
		store := newStore(t)
		repo := store.WorkflowRepository()

		workflow := testutil.CreateTestWorkflow()
		require.NoError(t, repo.Save(t.Context(), workflow))

		workflow.Name = "Renamed workflow"
		require.NoError(t, repo.Save(t.Context(), workflow))

		workflow.Trigger = models.NewTrigger(&models.TagAddedCondition{TagFilter: models.TagFilter{Tag: "hot"}})

		err := repo.Save(t.Context(), workflow)
		require.Error(t, err)
		assert.ErrorIs(t, err, persistence.ErrTriggerTypeChanged)
	})

	t.Run("active workflows by trigger type", func(t *testing.T) {
		store := newStore(t)
		repo := store.WorkflowRepository()

		active := testutil.CreateTestWorkflow(testutil.WithName("Active status workflow"))
		inactive := testutil.CreateTestWorkflow(testutil.WithName("Inactive status workflow"), testutil.WithActive(false))
		tagged := testutil.CreateTestWorkflow(
			testutil.WithName("Tag workflow"),
			testutil.WithTrigger(&models.TagAddedCondition{TagFilter: models.TagFilter{Tag: "hot"}}),
		)

		for _, workflow := range []*models.Workflow{active, inactive, tagged} {
			require.NoError(t, repo.Save(t.Context(), workflow))
		}

		found, err := repo.GetActiveByTriggerType(t.Context(), models.TriggerStatusChanged)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, active.ID, found[0].ID)

		all, err := repo.GetAll(t.Context())
		require.NoError(t, err)
		assert.Len(t, all, 3)

		require.NoError(t, repo.Delete(t.Context(), tagged.ID))

		found, err = repo.GetActiveByTriggerType(t.Context(), models.TriggerTagAdded)
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("record execution counters are consistent under concurrency", func(t *testing.T) {
		store := newStore(t)
		repo := store.WorkflowRepository()

		workflow := testutil.CreateTestWorkflow()
		require.NoError(t, repo.Save(t.Context(), workflow))

		var wg sync.WaitGroup

		at := time.Now().UTC().Truncate(time.Second)

		for i := range 10 {
			wg.Add(1)

			go func(succeeded bool) {
				defer wg.Done()

				assert.NoError(t, repo.RecordExecution(t.Context(), workflow.ID, succeeded, at))
			}(i < 6)
		}

		wg.Wait()

		loaded, err := repo.GetByID(t.Context(), workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, loaded.ExecutionCount)
		assert.Equal(t, 6, loaded.SuccessCount)
		assert.Equal(t, 4, loaded.FailureCount)
		assert.Equal(t, loaded.ExecutionCount, loaded.SuccessCount+loaded.FailureCount)
		require.NotNil(t, loaded.LastExecutedAt)
		assert.True(t, at.Equal(*loaded.LastExecutedAt))
	})

	t.Run("execution closes exactly once", func(t *testing.T) {
		store := newStore(t)
		repo := store.ExecutionRepository()

		workflow := testutil.CreateTestWorkflow()
		candidate := testutil.CreateTestCandidate()
		execution := testutil.CreateRunningExecution(workflow, candidate, time.Now().UTC().Truncate(time.Second))

		require.NoError(t, repo.Create(t.Context(), execution))

		err := repo.Create(t.Context(), execution)
		assert.ErrorIs(t, err, persistence.ErrExecutionAlreadyExists)

		completedAt := time.Now().UTC().Truncate(time.Second)
		execution.Status = models.ExecutionStatusCompleted
		execution.CompletedAt = &completedAt
		execution.Results = []models.ActionResult{
			{ActionIndex: 0, ActionType: models.ActionAddTag, Status: models.ActionResultSuccess, Message: "Tag added"},
		}

		require.NoError(t, repo.Complete(t.Context(), execution))

		execution.Status = models.ExecutionStatusFailed

		err = repo.Complete(t.Context(), execution)
		assert.ErrorIs(t, err, persistence.ErrExecutionClosed)

		loaded, err := repo.GetByID(t.Context(), execution.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
		require.NotNil(t, loaded.CompletedAt)
		require.Len(t, loaded.Results, 1)
		assert.Equal(t, models.ActionResultSuccess, loaded.Results[0].Status)
		assert.Equal(t, workflow.Trigger.Type(), loaded.Trigger.Type())

		_, err = repo.GetByID(t.Context(), uuid.NewString())
		assert.True(t, persistence.IsExecutionNotFound(err))
	})

	t.Run("execution listing and counting", func(t *testing.T) {
		store := newStore(t)
		repo := store.ExecutionRepository()

		workflow := testutil.CreateTestWorkflow()
		first := testutil.CreateTestCandidate()
		second := testutil.CreateTestCandidate()
		now := time.Now().UTC().Truncate(time.Second)

		old := testutil.CreateRunningExecution(workflow, first, now.Add(-48*time.Hour))
		recent := testutil.CreateRunningExecution(workflow, first, now.Add(-time.Hour))
		latest := testutil.CreateRunningExecution(workflow, second, now)
		other := testutil.CreateRunningExecution(testutil.CreateTestWorkflow(), first, now)

		for _, execution := range []*models.WorkflowExecution{old, recent, latest, other} {
			require.NoError(t, repo.Create(t.Context(), execution))
		}

		listed, err := repo.ListByWorkflow(t.Context(), workflow.ID, 2)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, latest.ID, listed[0].ID)
		assert.Equal(t, recent.ID, listed[1].ID)

		count, err := repo.Count(t.Context(), models.ExecutionFilter{WorkflowID: workflow.ID})
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		count, err = repo.Count(t.Context(), models.ExecutionFilter{WorkflowID: workflow.ID, CandidateID: first.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		count, err = repo.Count(t.Context(), models.ExecutionFilter{WorkflowID: workflow.ID, Since: now.Add(-24 * time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("candidates and tasks", func(t *testing.T) {
		store := newStore(t)

		candidate := testutil.CreateTestCandidate(testutil.WithTags("python"))
		require.NoError(t, store.CandidateRepository().Save(t.Context(), candidate))

		candidate.AddTag("hot")
		require.NoError(t, store.CandidateRepository().Save(t.Context(), candidate))

		loaded, err := store.CandidateRepository().GetByID(t.Context(), candidate.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"python", "hot"}, loaded.Tags)
		assert.Equal(t, candidate.FullName(), loaded.FullName())

		_, err = store.CandidateRepository().GetByID(t.Context(), uuid.NewString())
		assert.True(t, persistence.IsCandidateNotFound(err))

		all, err := store.CandidateRepository().GetAll(t.Context())
		require.NoError(t, err)
		assert.Len(t, all, 1)

		now := time.Now().UTC().Truncate(time.Second)
		task := &models.Task{
			ID:          uuid.NewString(),
			Title:       "Schedule interview",
			CandidateID: candidate.ID,
			AssignedTo:  models.Unassigned,
			Priority:    models.TaskPriorityMedium,
			Status:      models.TaskStatusPending,
			DueDate:     now.Add(72 * time.Hour),
			CreatedBy:   models.AutomationAuthor,
			CreatedAt:   now,
		}
		require.NoError(t, store.TaskRepository().Create(t.Context(), task))

		tasks, err := store.TaskRepository().ListByCandidate(t.Context(), candidate.ID)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "Schedule interview", tasks[0].Title)
		assert.True(t, task.DueDate.Equal(tasks[0].DueDate))
	})

	t.Run("health check", func(t *testing.T) {
		store := newStore(t)

		assert.NoError(t, store.HealthCheck(t.Context()))
	})
}
