package service

import (
	"context"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/events"
	pktNats "ai-assistant-be/pkg/nats"

	"github.com/google/uuid"
)

const notificationModule = "NotificationService"

// Notification is what a connected client receives for a domain event.
type Notification struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NotificationDelivery pushes real-time updates, typically the websocket hub.
type NotificationDelivery interface {
	Send(userId uuid.UUID, kind string, payload interface{})
}

// NotificationService relays domain events to the user they concern. With
// a NATS subscriber it listens on the bus, so events raised by any instance
// reach the user. Without one it is used directly as the event publisher.
type NotificationService struct {
	subscriber *pktNats.Subscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
}

func NewNotificationService(sub *pktNats.Subscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start subscribes to document and workflow events. It is a no-op without
// a subscriber.
func (s *NotificationService) Start(ctx context.Context) error {
	if s.subscriber == nil {
		return nil
	}
	if err := s.subscriber.Subscribe(ctx, "document.*", "notify-documents", s.handleEvent); err != nil {
		return err
	}
	if err := s.subscriber.Subscribe(ctx, events.TypeWorkflowCompleted, "notify-workflows", s.handleEvent); err != nil {
		return err
	}
	s.logger.Info(notificationModule, "Notification service started", nil)
	return nil
}

// Publish delivers an event in process.
func (s *NotificationService) Publish(ctx context.Context, event events.Event) error {
	return s.handleEvent(ctx, event)
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	raw, _ := payload["user_id"].(string)
	userId, err := uuid.Parse(raw)
	if err != nil {
		// Nobody to tell; retrying would not help.
		s.logger.Warn(notificationModule, "Event without recipient", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	if s.delivery != nil {
		s.delivery.Send(userId, "notification", Notification{
			Type:       event.EventType(),
			Data:       payload,
			OccurredAt: event.Timestamp(),
		})
	}
	s.logger.Debug(notificationModule, "Event delivered", map[string]interface{}{"type": event.EventType(), "user_id": userId})
	return nil
}
