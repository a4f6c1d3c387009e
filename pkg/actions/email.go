package actions

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/dukex/recruitflow/pkg/email"
	"github.com/dukex/recruitflow/pkg/models"
)

func (e *Executor) sendEmail(ctx context.Context, spec *models.SendEmailAction, candidate *models.Candidate) (*Outcome, error) {
	to, err := e.emailRecipient(ctx, spec, candidate)
	if err != nil {
		return nil, err
	}

	variables := e.Variables(candidate)
	body := e.email.RenderTemplate(spec.EmailBody, variables)

	result, err := e.email.SendEmail(ctx, email.Message{
		To:      to,
		Subject: e.email.RenderTemplate(spec.EmailSubject, variables),
		Text:    body,
		HTML:    textToHTML(body),
	})
	if err != nil {
		return nil, newExecutionError(models.ActionSendEmail, fmt.Sprintf("failed to send email to %s", to), err)
	}

	if !result.Success {
		return nil, newExecutionError(models.ActionSendEmail, fmt.Sprintf("email to %s was rejected: %s", to, result.Error), nil)
	}

	return &Outcome{
		Message: fmt.Sprintf("Sent email to %s", to),
		Metadata: map[string]any{
			"messageId": result.MessageID,
			"provider":  result.Provider,
			"to":        to,
		},
	}, nil
}

func (e *Executor) emailRecipient(ctx context.Context, spec *models.SendEmailAction, candidate *models.Candidate) (string, error) {
	var address string

	switch recipientKind(spec) {
	case models.EmailToCandidate:
		address = candidate.Email
	case models.EmailToAssignedUser:
		if candidate.AssignedTo == "" {
			return "", newExecutionError(models.ActionSendEmail, "candidate has no assigned user", ErrInvalidRecipient)
		}

		resolved, err := e.users.EmailFor(ctx, candidate.AssignedTo)
		if err != nil {
			return "", newExecutionError(models.ActionSendEmail, fmt.Sprintf("cannot resolve email of user %q", candidate.AssignedTo), err)
		}

		address = resolved
	case models.EmailToCustom:
		address = spec.EmailCustomRecipient
	}

	address = strings.TrimSpace(address)
	if !e.email.IsValidEmail(address) {
		return "", newExecutionError(models.ActionSendEmail, fmt.Sprintf("invalid email address %q", address), ErrInvalidRecipient)
	}

	return address, nil
}

// textToHTML renders a plain-text body as minimal HTML, keeping line breaks.
func textToHTML(text string) string {
	if text == "" {
		return ""
	}

	return "<p>" + strings.ReplaceAll(html.EscapeString(text), "\n", "<br>") + "</p>"
}
