package memory

import (
	"context"
	"sync"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
)

var _ contract.ChatMessageRepository = (*ChatMessageRepository)(nil)

type ChatMessageRepository struct {
	mu       sync.RWMutex
	messages map[uuid.UUID][]entity.ChatMessage
}

func NewChatMessageRepository() *ChatMessageRepository {
	return &ChatMessageRepository{messages: make(map[uuid.UUID][]entity.ChatMessage)}
}

func (r *ChatMessageRepository) Create(ctx context.Context, message *entity.ChatMessage) error {
	if message.Id == uuid.Nil {
		message.Id = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	r.mu.Lock()
	r.messages[message.ChatSessionId] = append(r.messages[message.ChatSessionId], *message)
	r.mu.Unlock()
	return nil
}

func (r *ChatMessageRepository) FindLastBySessionId(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[sessionId]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	result := make([]*entity.ChatMessage, len(all))
	for i := range all {
		m := all[i]
		result[i] = &m
	}
	return result, nil
}
