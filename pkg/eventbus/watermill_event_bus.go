package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/dukex/recruitflow/pkg/events"
	"github.com/dukex/recruitflow/pkg/otelhelper"
)

var errUnknownEventType = errors.New("unknown event type")

type WatermillEventBus struct {
	logger        *slog.Logger
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(logger *slog.Logger, pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		logger:        logger.With("module", "eventbus"),
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	for k, v := range carrier {
		msg.Metadata.Set(k, v)
	}

	eb.logger.DebugContext(ctx, "Publishing event", "key", key, "event_type", event.GetType())

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	tracer := otel.Tracer("recruitflow/eventbus")

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event, err := newEvent(eventType)
			if err != nil {
				eb.logger.ErrorContext(ctx, "Dropping message", "event_type", eventType, "error", err)
				msg.Ack()

				continue
			}

			err = json.Unmarshal(msg.Payload, event)
			if err != nil {
				eb.logger.ErrorContext(ctx, "Failed to unmarshal event", "event_type", eventType, "error", err)
				msg.Ack()

				continue
			}

			msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))
			msgCtx, span := otelhelper.StartSpan(msgCtx, tracer, "eventbus.consume",
				attribute.String(otelhelper.EventTypeKey, string(eventType)),
				attribute.String("messaging.message.key", msg.Metadata.Get(events.EventMetadataKey)),
			)

			err = handler(msgCtx, event)
			if err != nil {
				eb.logger.ErrorContext(msgCtx, "Failed to handle event", "event_type", eventType, "error", err)
				otelhelper.SetError(span, err)
				span.End()
				msg.Nack()

				continue
			}

			span.End()
			msg.Ack()
		}
	}()

	return nil
}

func newEvent(eventType events.EventType) (any, error) {
	switch eventType {
	case events.CandidateEventReceivedEvent:
		return &events.CandidateEventReceived{}, nil
	case events.WorkflowExecutionStartedEvent:
		return &events.WorkflowExecutionStarted{}, nil
	case events.WorkflowExecutionCompletedEvent:
		return &events.WorkflowExecutionCompleted{}, nil
	case events.WorkflowExecutionFailedEvent:
		return &events.WorkflowExecutionFailed{}, nil
	case events.WorkflowExecutionDeadLetteredEvent:
		return &events.WorkflowExecutionDeadLettered{}, nil
	case events.NotificationRequestedEvent:
		return &events.NotificationRequested{}, nil
	default:
		return nil, errUnknownEventType
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
