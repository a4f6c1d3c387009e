package actions

import (
	"fmt"

	"github.com/dukex/recruitflow/pkg/models"
)

// dryRun describes what an action would do for a test-mode workflow without touching the
// candidate or any collaborator.
func (e *Executor) dryRun(spec models.ActionSpec, candidate *models.Candidate) *Outcome {
	var description string

	switch spec := spec.(type) {
	case *models.SendEmailAction:
		description = fmt.Sprintf("would send email %q to %s", e.email.RenderTemplate(spec.EmailSubject, e.Variables(candidate)), recipientKind(spec))
	case *models.AddTagAction:
		description = fmt.Sprintf("would add tag %q", spec.TagName)
	case *models.RemoveTagAction:
		description = fmt.Sprintf("would remove tag %q", spec.TagName)
	case *models.ChangeStatusAction:
		description = fmt.Sprintf("would change status from %q to %q", candidate.Status, spec.NewStatus)
	case *models.AddNoteAction:
		description = "would add note"
	case *models.CreateTaskAction:
		description = fmt.Sprintf("would create task %q for %s due in %d days", spec.TaskTitle, taskAssignee(spec, candidate), taskDueDays(spec))
	case *models.AssignUserAction:
		description = fmt.Sprintf("would assign candidate to %q", spec.AssignTo)
	case *models.SendNotificationAction:
		description = "would send notification"
	case *models.WebhookAction:
		description = fmt.Sprintf("would call %s %s", webhookMethod(spec), spec.WebhookURL)
	}

	return &Outcome{Message: testModePrefix + description, Metadata: map[string]any{"testMode": true}}
}
