package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionType identifies a side effect a workflow can perform.
type ActionType string

const (
	ActionSendEmail        ActionType = "SEND_EMAIL"
	ActionAddTag           ActionType = "ADD_TAG"
	ActionRemoveTag        ActionType = "REMOVE_TAG"
	ActionChangeStatus     ActionType = "CHANGE_STATUS"
	ActionAddNote          ActionType = "ADD_NOTE"
	ActionCreateTask       ActionType = "CREATE_TASK"
	ActionAssignUser       ActionType = "ASSIGN_USER"
	ActionSendNotification ActionType = "SEND_NOTIFICATION"
	ActionWebhook          ActionType = "WEBHOOK"
)

// ActionTypes lists every supported action type.
var ActionTypes = []ActionType{
	ActionSendEmail,
	ActionAddTag,
	ActionRemoveTag,
	ActionChangeStatus,
	ActionAddNote,
	ActionCreateTask,
	ActionAssignUser,
	ActionSendNotification,
	ActionWebhook,
}

// ErrUnknownActionType is returned when decoding an action with an unsupported type.
var ErrUnknownActionType = errors.New("unknown action type")

// ActionSpec is the type-specific configuration of an action. The set of implementations
// is closed to this package.
type ActionSpec interface {
	ActionType() ActionType
	isActionSpec()
}

// EmailRecipient selects who receives a SEND_EMAIL action.
type EmailRecipient string

const (
	EmailToCandidate    EmailRecipient = "candidate"
	EmailToAssignedUser EmailRecipient = "assigned_user"
	EmailToCustom       EmailRecipient = "custom"
)

type SendEmailAction struct {
	EmailTo              EmailRecipient `json:"emailTo,omitempty"`
	EmailCustomRecipient string         `json:"emailCustomRecipient,omitempty"`
	EmailSubject         string         `json:"emailSubject,omitempty"`
	EmailBody            string         `json:"emailBody,omitempty"`
}

type AddTagAction struct {
	TagName string `json:"tagName,omitempty"`
}

type RemoveTagAction struct {
	TagName string `json:"tagName,omitempty"`
}

type ChangeStatusAction struct {
	NewStatus string `json:"newStatus,omitempty"`
}

type AddNoteAction struct {
	NoteContent string `json:"noteContent,omitempty"`
	IsPrivate   bool   `json:"isPrivate,omitempty"`
}

type CreateTaskAction struct {
	TaskTitle       string `json:"taskTitle,omitempty"`
	TaskDescription string `json:"taskDescription,omitempty"`
	TaskDueInDays   *int   `json:"taskDueInDays,omitempty"`
	TaskAssignTo    string `json:"taskAssignTo,omitempty"`
	TaskPriority    string `json:"taskPriority,omitempty"`
}

type AssignUserAction struct {
	AssignTo string `json:"assignTo,omitempty"`
}

type SendNotificationAction struct {
	NotificationTitle   string `json:"notificationTitle,omitempty"`
	NotificationMessage string `json:"notificationMessage,omitempty"`
	NotifyUser          string `json:"notifyUser,omitempty"`
}

type WebhookAction struct {
	WebhookURL     string            `json:"webhookUrl,omitempty"`
	WebhookMethod  string            `json:"webhookMethod,omitempty"`
	WebhookHeaders map[string]string `json:"webhookHeaders,omitempty"`
}

func (*SendEmailAction) ActionType() ActionType        { return ActionSendEmail }
func (*AddTagAction) ActionType() ActionType           { return ActionAddTag }
func (*RemoveTagAction) ActionType() ActionType        { return ActionRemoveTag }
func (*ChangeStatusAction) ActionType() ActionType     { return ActionChangeStatus }
func (*AddNoteAction) ActionType() ActionType          { return ActionAddNote }
func (*CreateTaskAction) ActionType() ActionType       { return ActionCreateTask }
func (*AssignUserAction) ActionType() ActionType       { return ActionAssignUser }
func (*SendNotificationAction) ActionType() ActionType { return ActionSendNotification }
func (*WebhookAction) ActionType() ActionType          { return ActionWebhook }

func (*SendEmailAction) isActionSpec()        {}
func (*AddTagAction) isActionSpec()           {}
func (*RemoveTagAction) isActionSpec()        {}
func (*ChangeStatusAction) isActionSpec()     {}
func (*AddNoteAction) isActionSpec()          {}
func (*CreateTaskAction) isActionSpec()       {}
func (*AssignUserAction) isActionSpec()       {}
func (*SendNotificationAction) isActionSpec() {}
func (*WebhookAction) isActionSpec()          {}

// Action is one step of a workflow. It serializes as {"type": ..., "delayMinutes": n, <fields>}.
type Action struct {
	Spec         ActionSpec
	DelayMinutes int
}

// NewAction wraps a spec with no delay.
func NewAction(spec ActionSpec) Action {
	return Action{Spec: spec}
}

// Type returns the action type, or an empty string when no spec is set.
func (a Action) Type() ActionType {
	if a.Spec == nil {
		return ""
	}

	return a.Spec.ActionType()
}

func (a Action) MarshalJSON() ([]byte, error) {
	if a.Spec == nil {
		return []byte("null"), nil
	}

	var extra map[string]any
	if a.DelayMinutes != 0 {
		extra = map[string]any{"delayMinutes": a.DelayMinutes}
	}

	return marshalTagged(string(a.Spec.ActionType()), a.Spec, extra)
}

func (a *Action) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Action{}

		return nil
	}

	kind, err := readType(data)
	if err != nil {
		return fmt.Errorf("failed to read action type: %w", err)
	}

	spec, err := newActionSpec(ActionType(kind))
	if err != nil {
		return err
	}

	err = json.Unmarshal(data, spec)
	if err != nil {
		return fmt.Errorf("failed to decode %s action: %w", kind, err)
	}

	var envelope struct {
		DelayMinutes int `json:"delayMinutes"`
	}

	err = json.Unmarshal(data, &envelope)
	if err != nil {
		return fmt.Errorf("failed to decode delayMinutes: %w", err)
	}

	a.Spec = spec
	a.DelayMinutes = envelope.DelayMinutes

	return nil
}

func newActionSpec(kind ActionType) (ActionSpec, error) {
	switch kind {
	case ActionSendEmail:
		return &SendEmailAction{}, nil
	case ActionAddTag:
		return &AddTagAction{}, nil
	case ActionRemoveTag:
		return &RemoveTagAction{}, nil
	case ActionChangeStatus:
		return &ChangeStatusAction{}, nil
	case ActionAddNote:
		return &AddNoteAction{}, nil
	case ActionCreateTask:
		return &CreateTaskAction{}, nil
	case ActionAssignUser:
		return &AssignUserAction{}, nil
	case ActionSendNotification:
		return &SendNotificationAction{}, nil
	case ActionWebhook:
		return &WebhookAction{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, kind)
	}
}
