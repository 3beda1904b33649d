package events

import (
	"context"
	"time"
)

const (
	TypeDocumentIndexed   = "document.indexed"
	TypeDocumentFailed    = "document.failed"
	TypeWorkflowCompleted = "workflow.completed"
)

// Event defines the contract for all domain events.
type Event interface {
	// EventType returns the dotted code of the event, e.g. "document.indexed".
	EventType() string

	Payload() map[string]interface{}

	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Publisher delivers events to whoever listens. Delivery is best effort:
// callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }

func NewDocumentIndexed(documentId, ownerId string, chunkCount int) BaseEvent {
	return BaseEvent{
		Type: TypeDocumentIndexed,
		Data: map[string]interface{}{
			"document_id": documentId,
			"user_id":     ownerId,
			"chunk_count": chunkCount,
		},
		OccurredAt: time.Now(),
	}
}

func NewDocumentFailed(documentId, ownerId, reason string) BaseEvent {
	return BaseEvent{
		Type: TypeDocumentFailed,
		Data: map[string]interface{}{
			"document_id": documentId,
			"user_id":     ownerId,
			"reason":      reason,
		},
		OccurredAt: time.Now(),
	}
}

// NewWorkflowCompleted carries the generated step outputs keyed by step id.
func NewWorkflowCompleted(sessionId, userId, assistantId string, artifacts map[string]string) BaseEvent {
	data := map[string]interface{}{
		"session_id":   sessionId,
		"user_id":      userId,
		"assistant_id": assistantId,
	}
	if len(artifacts) > 0 {
		data["artifacts"] = artifacts
	}
	return BaseEvent{Type: TypeWorkflowCompleted, Data: data, OccurredAt: time.Now()}
}
