package history

import (
	"context"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/pkg/llm"

	"github.com/google/uuid"
)

const DefaultLimit = 10

// Loader turns the persisted conversation into model history.
type Loader struct {
	messages contract.ChatMessageRepository
	limit    int
}

func NewLoader(messages contract.ChatMessageRepository, limit int) *Loader {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Loader{messages: messages, limit: limit}
}

// Load returns the last messages of a session, oldest first. Replies of
// failed turns are left out since they may be cut off mid-sentence.
func (l *Loader) Load(ctx context.Context, sessionId uuid.UUID) ([]llm.Message, error) {
	chats, err := l.messages.FindLastBySessionId(ctx, sessionId, l.limit)
	if err != nil {
		return nil, err
	}

	out := make([]llm.Message, 0, len(chats))
	for _, chat := range chats {
		if chat.Failed || chat.Chat == "" {
			continue
		}
		role := constant.ChatMessageRoleUser
		if chat.Role == constant.ChatMessageRoleAssistant {
			role = constant.ChatMessageRoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: chat.Chat})
	}
	return out, nil
}
