package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Role          string
	Chat          string
	IntentKind    string
	Sources       []string
	Failed        bool
	CreatedAt     time.Time
}
