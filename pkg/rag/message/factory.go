package message

import (
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// Factory builds the chat messages persisted for a turn.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) UserMessage(sessionId uuid.UUID, text string, now time.Time) *entity.ChatMessage {
	return &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: sessionId,
		Role:          constant.ChatMessageRoleUser,
		Chat:          text,
		CreatedAt:     now,
	}
}

// AssistantMessage is stamped just after the user message so ordering by
// time stays stable.
func (f *Factory) AssistantMessage(sessionId uuid.UUID, text, intentKind string, sources []string, failed bool, now time.Time) *entity.ChatMessage {
	return &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: sessionId,
		Role:          constant.ChatMessageRoleAssistant,
		Chat:          text,
		IntentKind:    intentKind,
		Sources:       sources,
		Failed:        failed,
		CreatedAt:     now.Add(time.Millisecond),
	}
}
