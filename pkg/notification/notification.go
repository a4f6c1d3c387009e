// Package notification delivers in-app notifications to recruiters.
package notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/recruitflow/pkg/eventbus"
	"github.com/dukex/recruitflow/pkg/events"
)

var (
	ErrMissingRecipient = errors.New("notification recipient is required")
	ErrMissingMessage   = errors.New("notification message is required")
)

// Notification is a message addressed to one user.
type Notification struct {
	Recipient   string
	Title       string
	Message     string
	WorkflowID  string
	CandidateID string
}

func (n Notification) validate() error {
	if n.Recipient == "" {
		return ErrMissingRecipient
	}

	if n.Message == "" {
		return ErrMissingMessage
	}

	return nil
}

// Notifier hands a notification to whatever delivers it to the recipient.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// EventBusNotifier publishes notifications as NotificationRequested events, keyed by recipient
// so one user's notifications stay ordered on partitioned transports.
type EventBusNotifier struct {
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewEventBusNotifier(publisher eventbus.EventPublisher, logger *slog.Logger) *EventBusNotifier {
	return &EventBusNotifier{
		publisher: publisher,
		logger:    logger.With("module", "notification"),
	}
}

func (n *EventBusNotifier) Notify(ctx context.Context, notification Notification) error {
	if err := notification.validate(); err != nil {
		return err
	}

	event := events.NotificationRequested{
		BaseEvent: events.NewBaseEvent(events.NotificationRequestedEvent, notification.WorkflowID, notification.CandidateID),
		Recipient: notification.Recipient,
		Title:     notification.Title,
		Message:   notification.Message,
	}

	err := n.publisher.Publish(ctx, notification.Recipient, event)
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to publish notification", "recipient", notification.Recipient, "error", err)

		return err
	}

	n.logger.DebugContext(ctx, "Notification published", "recipient", notification.Recipient, "event_id", event.ID)

	return nil
}

// LogNotifier writes notifications to the log. It is used when no event bus is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notification")}
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	if err := notification.validate(); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "Notification",
		"recipient", notification.Recipient,
		"title", notification.Title,
		"message", notification.Message,
		"workflow_id", notification.WorkflowID,
		"candidate_id", notification.CandidateID,
	)

	return nil
}
