package actions

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukex/recruitflow/pkg/models"
)

var webhookMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// validateSpec checks the fields each action type cannot run without, before any side effect.
func validateSpec(spec models.ActionSpec) error {
	actionType := spec.ActionType()

	switch spec := spec.(type) {
	case *models.SendEmailAction:
		switch recipientKind(spec) {
		case models.EmailToCandidate, models.EmailToAssignedUser:
		case models.EmailToCustom:
			if strings.TrimSpace(spec.EmailCustomRecipient) == "" {
				return missing(actionType, "emailCustomRecipient")
			}
		default:
			return newExecutionError(actionType, fmt.Sprintf("unknown emailTo %q", spec.EmailTo), ErrInvalidRecipient)
		}

		if strings.TrimSpace(spec.EmailSubject) == "" {
			return missing(actionType, "emailSubject")
		}
	case *models.AddTagAction:
		if strings.TrimSpace(spec.TagName) == "" {
			return missing(actionType, "tagName")
		}
	case *models.RemoveTagAction:
		if strings.TrimSpace(spec.TagName) == "" {
			return missing(actionType, "tagName")
		}
	case *models.ChangeStatusAction:
		if strings.TrimSpace(spec.NewStatus) == "" {
			return missing(actionType, "newStatus")
		}
	case *models.AddNoteAction:
		if strings.TrimSpace(spec.NoteContent) == "" {
			return missing(actionType, "noteContent")
		}
	case *models.CreateTaskAction:
		if strings.TrimSpace(spec.TaskTitle) == "" {
			return missing(actionType, "taskTitle")
		}

		if spec.TaskDueInDays != nil && *spec.TaskDueInDays < 0 {
			return newExecutionError(actionType, "taskDueInDays must not be negative", nil)
		}

		switch spec.TaskPriority {
		case "", models.TaskPriorityLow, models.TaskPriorityMedium, models.TaskPriorityHigh:
		default:
			return newExecutionError(actionType, fmt.Sprintf("unknown taskPriority %q", spec.TaskPriority), nil)
		}
	case *models.AssignUserAction:
		if strings.TrimSpace(spec.AssignTo) == "" {
			return missing(actionType, "assignTo")
		}
	case *models.SendNotificationAction:
		if strings.TrimSpace(spec.NotificationMessage) == "" {
			return missing(actionType, "notificationMessage")
		}
	case *models.WebhookAction:
		if strings.TrimSpace(spec.WebhookURL) == "" {
			return missing(actionType, "webhookUrl")
		}

		target, err := url.Parse(spec.WebhookURL)
		if err != nil || !target.IsAbs() || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
			return newExecutionError(actionType, fmt.Sprintf("webhookUrl %q must be an absolute http(s) URL", spec.WebhookURL), nil)
		}

		if !webhookMethods[webhookMethod(spec)] {
			return newExecutionError(actionType, fmt.Sprintf("unsupported webhookMethod %q", spec.WebhookMethod), nil)
		}
	default:
		return newExecutionError(actionType, "unsupported action type", nil)
	}

	return nil
}

func recipientKind(spec *models.SendEmailAction) models.EmailRecipient {
	if spec.EmailTo == "" {
		return models.EmailToCandidate
	}

	return spec.EmailTo
}

func webhookMethod(spec *models.WebhookAction) string {
	if spec.WebhookMethod == "" {
		return http.MethodPost
	}

	return strings.ToUpper(spec.WebhookMethod)
}
