package actions_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/recruitflow/pkg/actions"
	"github.com/dukex/recruitflow/pkg/email"
	"github.com/dukex/recruitflow/pkg/mocks"
	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/notification"
	"github.com/dukex/recruitflow/pkg/persistence/memory"
	"github.com/dukex/recruitflow/pkg/testutil"
)

var fixedNow = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

type fixture struct {
	executor  *actions.Executor
	store     *memory.Persistence
	email     *mocks.MockEmailService
	notifier  *mocks.MockNotifier
	candidate *models.Candidate
	workflow  *models.Workflow
}

func setup(t *testing.T, opts ...actions.Option) *fixture {
	t.Helper()

	store, err := memory.NewPersistence()
	require.NoError(t, err)

	candidate := testutil.CreateTestCandidate()
	require.NoError(t, store.CandidateRepository().Save(context.Background(), candidate))

	emailService := &mocks.MockEmailService{}
	notifier := &mocks.MockNotifier{}
	users := actions.StaticUserDirectory{"recruiter-1": "grace@example.com"}

	opts = append([]actions.Option{
		actions.WithClock(func() time.Time { return fixedNow }),
		actions.WithCompanyName("Analytical Engines"),
	}, opts...)

	return &fixture{
		executor:  actions.NewExecutor(store, emailService, notifier, users, slog.Default(), opts...),
		store:     store,
		email:     emailService,
		notifier:  notifier,
		candidate: candidate,
		workflow:  testutil.CreateTestWorkflow(testutil.WithName("Interview follow-up")),
	}
}

func (f *fixture) run(t *testing.T, spec models.ActionSpec) (*actions.Outcome, error) {
	t.Helper()

	return f.executor.Execute(context.Background(), models.NewAction(spec), f.candidate, f.workflow)
}

func (f *fixture) stored(t *testing.T) *models.Candidate {
	t.Helper()

	candidate, err := f.store.CandidateRepository().GetByID(context.Background(), f.candidate.ID)
	require.NoError(t, err)

	return candidate
}

func requireExecutionError(t *testing.T, err error, actionType models.ActionType) *actions.ExecutionError {
	t.Helper()

	var executionErr *actions.ExecutionError
	require.ErrorAs(t, err, &executionErr)
	assert.Equal(t, actionType, executionErr.ActionType)

	return executionErr
}

func TestExecutor_AddTag(t *testing.T) {
	f := setup(t)

	outcome, err := f.run(t, &models.AddTagAction{TagName: "hot"})
	require.NoError(t, err)
	assert.Equal(t, `Added tag "hot"`, outcome.Message)
	assert.Equal(t, []string{"hot"}, f.stored(t).Tags)
}

func TestExecutor_AddTagIsIdempotent(t *testing.T) {
	f := setup(t)
	f.candidate.Tags = []string{"hot"}

	outcome, err := f.run(t, &models.AddTagAction{TagName: "hot"})
	require.NoError(t, err)
	assert.Contains(t, outcome.Message, "already has tag")
	assert.Equal(t, []string{"hot"}, f.candidate.Tags)
}

func TestExecutor_RemoveTag(t *testing.T) {
	f := setup(t)
	f.candidate.Tags = []string{"hot", "remote"}

	outcome, err := f.run(t, &models.RemoveTagAction{TagName: "hot"})
	require.NoError(t, err)
	assert.Equal(t, `Removed tag "hot"`, outcome.Message)
	assert.Equal(t, []string{"remote"}, f.stored(t).Tags)

	outcome, err = f.run(t, &models.RemoveTagAction{TagName: "hot"})
	require.NoError(t, err)
	assert.Contains(t, outcome.Message, "does not have tag")
}

func TestExecutor_ChangeStatus(t *testing.T) {
	f := setup(t)

	outcome, err := f.run(t, &models.ChangeStatusAction{NewStatus: "offer"})
	require.NoError(t, err)
	assert.Equal(t, "interview", outcome.Metadata["previousStatus"])

	stored := f.stored(t)
	assert.Equal(t, "offer", stored.Status)
	require.NotNil(t, stored.StageEnteredAt)
	assert.True(t, stored.StageEnteredAt.Equal(fixedNow))
	require.Len(t, stored.Activities, 1)

	activity := stored.Activities[0]
	assert.Equal(t, actions.ActivityStatusChanged, activity.Type)
	assert.Equal(t, models.AutomationAuthor, activity.PerformedBy)
	assert.Equal(t, "interview", activity.Metadata["previousStatus"])
	assert.Equal(t, "offer", activity.Metadata["newStatus"])
	assert.Equal(t, f.workflow.ID, activity.Metadata["workflowId"])
}

func TestExecutor_ChangeStatusAlreadyInStatus(t *testing.T) {
	f := setup(t)

	outcome, err := f.run(t, &models.ChangeStatusAction{NewStatus: "interview"})
	require.NoError(t, err)
	assert.Contains(t, outcome.Message, "already in status")
	assert.Empty(t, f.stored(t).Activities)
}

func TestExecutor_AddNote(t *testing.T) {
	f := setup(t)

	_, err := f.run(t, &models.AddNoteAction{NoteContent: "{{firstName}} applied for {{position}}", IsPrivate: true})
	require.NoError(t, err)

	stored := f.stored(t)
	require.Len(t, stored.Notes, 1)
	assert.Equal(t, "Ada applied for Backend Engineer", stored.Notes[0].Content)
	assert.Equal(t, models.AutomationAuthor, stored.Notes[0].AuthorName)
	assert.True(t, stored.Notes[0].IsPrivate)
}

func TestExecutor_CreateTask(t *testing.T) {
	tests := []struct {
		name             string
		spec             *models.CreateTaskAction
		assignedTo       string
		expectedAssignee string
		expectedDue      time.Time
		expectedPriority string
	}{
		{
			name:             "defaults",
			spec:             &models.CreateTaskAction{TaskTitle: "Call {{firstName}}"},
			assignedTo:       "recruiter-1",
			expectedAssignee: "recruiter-1",
			expectedDue:      fixedNow.Add(7 * 24 * time.Hour),
			expectedPriority: models.TaskPriorityMedium,
		},
		{
			name:             "explicit_assignee_and_due_date",
			spec:             &models.CreateTaskAction{TaskTitle: "Call", TaskAssignTo: "recruiter-2", TaskDueInDays: intPtr(2), TaskPriority: "high"},
			assignedTo:       "recruiter-1",
			expectedAssignee: "recruiter-2",
			expectedDue:      fixedNow.Add(2 * 24 * time.Hour),
			expectedPriority: models.TaskPriorityHigh,
		},
		{
			name:             "unassigned",
			spec:             &models.CreateTaskAction{TaskTitle: "Call"},
			expectedAssignee: models.Unassigned,
			expectedDue:      fixedNow.Add(7 * 24 * time.Hour),
			expectedPriority: models.TaskPriorityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.candidate.AssignedTo = tt.assignedTo

			_, err := f.run(t, tt.spec)
			require.NoError(t, err)

			tasks, err := f.store.TaskRepository().ListByCandidate(context.Background(), f.candidate.ID)
			require.NoError(t, err)
			require.Len(t, tasks, 1)

			task := tasks[0]
			assert.Equal(t, tt.expectedAssignee, task.AssignedTo)
			assert.True(t, tt.expectedDue.Equal(task.DueDate), "due date %s", task.DueDate)
			assert.Equal(t, tt.expectedPriority, task.Priority)
			assert.Equal(t, f.workflow.ID, task.WorkflowID)
			assert.Equal(t, models.TaskStatusPending, task.Status)
		})
	}
}

func TestExecutor_CreateTaskRendersTitle(t *testing.T) {
	f := setup(t)

	outcome, err := f.run(t, &models.CreateTaskAction{TaskTitle: "Call {{fullName}}"})
	require.NoError(t, err)
	assert.Contains(t, outcome.Message, `"Call Ada Lovelace"`)
}

func TestExecutor_AssignUser(t *testing.T) {
	f := setup(t)

	outcome, err := f.run(t, &models.AssignUserAction{AssignTo: "recruiter-2"})
	require.NoError(t, err)
	assert.Equal(t, "recruiter-1", outcome.Metadata["previousAssignee"])

	stored := f.stored(t)
	assert.Equal(t, "recruiter-2", stored.AssignedTo)
	require.Len(t, stored.Activities, 1)
	assert.Equal(t, actions.ActivityAssigned, stored.Activities[0].Type)
}

func TestExecutor_FailedSaveLeavesCandidateUntouched(t *testing.T) {
	errWrite := errors.New("transient write failure")

	tests := []struct {
		name       string
		spec       models.ActionSpec
		actionType models.ActionType
	}{
		{name: "add_tag", spec: &models.AddTagAction{TagName: "hot"}, actionType: models.ActionAddTag},
		{name: "remove_tag", spec: &models.RemoveTagAction{TagName: "remote"}, actionType: models.ActionRemoveTag},
		{name: "change_status", spec: &models.ChangeStatusAction{NewStatus: "offer"}, actionType: models.ActionChangeStatus},
		{name: "add_note", spec: &models.AddNoteAction{NoteContent: "Call back"}, actionType: models.ActionAddNote},
		{name: "assign_user", spec: &models.AssignUserAction{AssignTo: "recruiter-2"}, actionType: models.ActionAssignUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := memory.NewPersistence()
			require.NoError(t, err)

			candidate := testutil.CreateTestCandidate(testutil.WithTags("remote"))
			require.NoError(t, store.CandidateRepository().Save(context.Background(), candidate))

			before := candidate.Clone()
			executor := actions.NewExecutor(testutil.FailingCandidateSaves(store, 1, errWrite),
				&mocks.MockEmailService{}, &mocks.MockNotifier{}, actions.StaticUserDirectory{}, slog.Default(),
				actions.WithClock(func() time.Time { return fixedNow }))
			wf := testutil.CreateTestWorkflow()

			_, err = executor.Execute(context.Background(), models.NewAction(tt.spec), candidate, wf)
			executionErr := requireExecutionError(t, err, tt.actionType)
			require.ErrorIs(t, executionErr, errWrite)
			assert.Equal(t, before, candidate)

			_, err = executor.Execute(context.Background(), models.NewAction(&models.AddTagAction{TagName: "screened"}), candidate, wf)
			require.NoError(t, err)

			stored, err := store.CandidateRepository().GetByID(context.Background(), candidate.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"remote", "screened"}, stored.Tags)
			assert.Equal(t, before.Status, stored.Status)
			assert.Equal(t, before.AssignedTo, stored.AssignedTo)
			assert.Empty(t, stored.Notes)
			assert.Empty(t, stored.Activities)
		})
	}
}

func TestExecutor_SendEmail(t *testing.T) {
	f := setup(t)

	f.email.On("SendEmail", mock.Anything, email.Message{
		To:      "ada@example.com",
		Subject: "Hello Ada",
		Text:    "Welcome to Analytical Engines, Ada Lovelace. Today is March 3, 2025.",
		HTML:    "<p>Welcome to Analytical Engines, Ada Lovelace. Today is March 3, 2025.</p>",
	}).Return(&email.Result{Success: true, MessageID: "msg-1", Provider: "smtp"}, nil)

	outcome, err := f.run(t, &models.SendEmailAction{
		EmailTo:      models.EmailToCandidate,
		EmailSubject: "Hello {{firstName}}",
		EmailBody:    "Welcome to {{companyName}}, {{fullName}}. Today is {{currentDate}}.",
	})
	require.NoError(t, err)

	assert.Equal(t, "msg-1", outcome.Metadata["messageId"])
	assert.Equal(t, "smtp", outcome.Metadata["provider"])
	assert.Equal(t, "ada@example.com", outcome.Metadata["to"])
	f.email.AssertExpectations(t)
}

func TestExecutor_SendEmailToAssignedUser(t *testing.T) {
	f := setup(t)

	f.email.On("SendEmail", mock.Anything, mock.MatchedBy(func(message email.Message) bool {
		return message.To == "grace@example.com"
	})).Return(&email.Result{Success: true}, nil)

	_, err := f.run(t, &models.SendEmailAction{EmailTo: models.EmailToAssignedUser, EmailSubject: "New candidate"})
	require.NoError(t, err)
	f.email.AssertExpectations(t)
}

func TestExecutor_SendEmailFailures(t *testing.T) {
	tests := []struct {
		name        string
		spec        *models.SendEmailAction
		assignedTo  string
		errContains string
	}{
		{
			name:        "invalid_custom_recipient",
			spec:        &models.SendEmailAction{EmailTo: models.EmailToCustom, EmailCustomRecipient: "not-an-email", EmailSubject: "Hi"},
			assignedTo:  "recruiter-1",
			errContains: "not-an-email",
		},
		{
			name:        "custom_without_recipient",
			spec:        &models.SendEmailAction{EmailTo: models.EmailToCustom, EmailSubject: "Hi"},
			assignedTo:  "recruiter-1",
			errContains: "emailCustomRecipient is required",
		},
		{
			name:        "unknown_recipient_kind",
			spec:        &models.SendEmailAction{EmailTo: "everyone", EmailSubject: "Hi"},
			assignedTo:  "recruiter-1",
			errContains: `unknown emailTo "everyone"`,
		},
		{
			name:        "missing_subject",
			spec:        &models.SendEmailAction{EmailTo: models.EmailToCandidate},
			assignedTo:  "recruiter-1",
			errContains: "emailSubject is required",
		},
		{
			name:        "no_assigned_user",
			spec:        &models.SendEmailAction{EmailTo: models.EmailToAssignedUser, EmailSubject: "Hi"},
			errContains: "no assigned user",
		},
		{
			name:        "unknown_assigned_user",
			spec:        &models.SendEmailAction{EmailTo: models.EmailToAssignedUser, EmailSubject: "Hi"},
			assignedTo:  "recruiter-9",
			errContains: `cannot resolve email of user "recruiter-9"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.candidate.AssignedTo = tt.assignedTo

			_, err := f.run(t, tt.spec)
			requireExecutionError(t, err, models.ActionSendEmail)
			assert.Contains(t, err.Error(), tt.errContains)
			f.email.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
		})
	}
}

func TestExecutor_SendEmailProviderFailure(t *testing.T) {
	f := setup(t)
	f.email.On("SendEmail", mock.Anything, mock.Anything).
		Return(&email.Result{Success: false, Error: "mailbox full", Provider: "smtp"}, nil)

	_, err := f.run(t, &models.SendEmailAction{EmailSubject: "Hi"})
	requireExecutionError(t, err, models.ActionSendEmail)
	assert.Contains(t, err.Error(), "mailbox full")
}

func TestExecutor_SendEmailServiceError(t *testing.T) {
	f := setup(t)
	sendErr := errors.New("connection refused")
	f.email.On("SendEmail", mock.Anything, mock.Anything).Return(nil, sendErr)

	_, err := f.run(t, &models.SendEmailAction{EmailSubject: "Hi"})
	requireExecutionError(t, err, models.ActionSendEmail)
	assert.ErrorIs(t, err, sendErr)
}

func TestExecutor_SendNotification(t *testing.T) {
	f := setup(t)
	f.notifier.On("Notify", mock.Anything, notification.Notification{
		Recipient:   "recruiter-1",
		Title:       "Interview follow-up",
		Message:     "Ada is waiting",
		WorkflowID:  f.workflow.ID,
		CandidateID: f.candidate.ID,
	}).Return(nil)

	outcome, err := f.run(t, &models.SendNotificationAction{NotificationMessage: "{{firstName}} is waiting"})
	require.NoError(t, err)
	assert.Equal(t, "recruiter-1", outcome.Metadata["recipient"])
	f.notifier.AssertExpectations(t)
}

func TestExecutor_SendNotificationWithoutRecipient(t *testing.T) {
	f := setup(t)
	f.candidate.AssignedTo = ""

	_, err := f.run(t, &models.SendNotificationAction{NotificationMessage: "hello"})
	requireExecutionError(t, err, models.ActionSendNotification)
	assert.ErrorIs(t, err, actions.ErrInvalidRecipient)
}

func TestExecutor_SendNotificationFailure(t *testing.T) {
	f := setup(t)
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("bus closed"))

	_, err := f.run(t, &models.SendNotificationAction{NotificationMessage: "hello", NotifyUser: "recruiter-2"})
	requireExecutionError(t, err, models.ActionSendNotification)
	assert.Contains(t, err.Error(), "recruiter-2")
}

func TestExecutor_RequiredConfiguration(t *testing.T) {
	tests := []struct {
		name  string
		spec  models.ActionSpec
		field string
	}{
		{name: "add_tag", spec: &models.AddTagAction{}, field: "tagName"},
		{name: "remove_tag", spec: &models.RemoveTagAction{TagName: "  "}, field: "tagName"},
		{name: "change_status", spec: &models.ChangeStatusAction{}, field: "newStatus"},
		{name: "add_note", spec: &models.AddNoteAction{}, field: "noteContent"},
		{name: "create_task", spec: &models.CreateTaskAction{}, field: "taskTitle"},
		{name: "assign_user", spec: &models.AssignUserAction{}, field: "assignTo"},
		{name: "send_notification", spec: &models.SendNotificationAction{NotificationTitle: "t"}, field: "notificationMessage"},
		{name: "webhook", spec: &models.WebhookAction{}, field: "webhookUrl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)

			_, err := f.run(t, tt.spec)
			executionErr := requireExecutionError(t, err, tt.spec.ActionType())
			assert.Equal(t, tt.field+" is required", executionErr.Reason)
			assert.ErrorIs(t, err, actions.ErrMissingConfig)
			stored := f.stored(t)
			assert.Empty(t, stored.Tags)
			assert.Empty(t, stored.Notes)
			assert.Empty(t, stored.Activities)
			assert.Equal(t, "interview", stored.Status)
			assert.Equal(t, "recruiter-1", stored.AssignedTo)
		})
	}
}

func TestExecutor_TestModePerformsNoSideEffects(t *testing.T) {
	f := setup(t)
	f.workflow.TestMode = true

	specs := []models.ActionSpec{
		&models.SendEmailAction{EmailSubject: "Hi {{firstName}}"},
		&models.AddTagAction{TagName: "hot"},
		&models.ChangeStatusAction{NewStatus: "offer"},
		&models.CreateTaskAction{TaskTitle: "Call"},
		&models.SendNotificationAction{NotificationMessage: "hello"},
		&models.WebhookAction{WebhookURL: "https://hooks.example.com/recruit"},
	}

	for _, spec := range specs {
		outcome, err := f.run(t, spec)
		require.NoError(t, err)
		assert.Contains(t, outcome.Message, "[test mode] would")
		assert.Equal(t, true, outcome.Metadata["testMode"])
	}

	stored := f.stored(t)
	assert.Empty(t, stored.Tags)
	assert.Equal(t, "interview", stored.Status)

	tasks, err := f.store.TaskRepository().ListByCandidate(context.Background(), f.candidate.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	f.email.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestExecutor_TestModeStillValidates(t *testing.T) {
	f := setup(t)
	f.workflow.TestMode = true

	_, err := f.run(t, &models.AddTagAction{})
	requireExecutionError(t, err, models.ActionAddTag)
}

func TestExecutor_ActionWithoutSpec(t *testing.T) {
	f := setup(t)

	_, err := f.executor.Execute(context.Background(), models.Action{}, f.candidate, f.workflow)

	var executionErr *actions.ExecutionError
	require.ErrorAs(t, err, &executionErr)
}

func TestExecutor_Variables(t *testing.T) {
	f := setup(t)

	variables := f.executor.Variables(f.candidate)

	assert.Equal(t, map[string]any{
		"firstName":   "Ada",
		"lastName":    "Lovelace",
		"fullName":    "Ada Lovelace",
		"email":       "ada@example.com",
		"position":    "Backend Engineer",
		"companyName": "Analytical Engines",
		"currentDate": "March 3, 2025",
	}, variables)
}

func intPtr(v int) *int {
	return &v
}
