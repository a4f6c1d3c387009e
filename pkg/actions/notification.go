package actions

import (
	"context"
	"fmt"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/notification"
)

func (e *Executor) sendNotification(ctx context.Context, spec *models.SendNotificationAction, candidate *models.Candidate, workflow *models.Workflow) (*Outcome, error) {
	recipient := spec.NotifyUser
	if recipient == "" {
		recipient = candidate.AssignedTo
	}

	if recipient == "" {
		return nil, newExecutionError(models.ActionSendNotification, "no notifyUser configured and candidate has no assigned user", ErrInvalidRecipient)
	}

	variables := e.Variables(candidate)
	title := e.email.RenderTemplate(spec.NotificationTitle, variables)
	if title == "" {
		title = workflow.Name
	}

	err := e.notifier.Notify(ctx, notification.Notification{
		Recipient:   recipient,
		Title:       title,
		Message:     e.email.RenderTemplate(spec.NotificationMessage, variables),
		WorkflowID:  workflow.ID,
		CandidateID: candidate.ID,
	})
	if err != nil {
		return nil, newExecutionError(models.ActionSendNotification, fmt.Sprintf("failed to notify %s", recipient), err)
	}

	return &Outcome{Message: fmt.Sprintf("Notified %s", recipient), Metadata: map[string]any{"recipient": recipient}}, nil
}
