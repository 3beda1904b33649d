package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
)

var _ contract.AssistantRepository = (*AssistantRepository)(nil)

type AssistantRepository struct {
	mu         sync.RWMutex
	assistants map[uuid.UUID]entity.Assistant
}

func NewAssistantRepository() *AssistantRepository {
	return &AssistantRepository{assistants: make(map[uuid.UUID]entity.Assistant)}
}

func (r *AssistantRepository) Create(ctx context.Context, assistant *entity.Assistant) error {
	if assistant.Id == uuid.Nil {
		assistant.Id = uuid.New()
	}
	if assistant.CreatedAt.IsZero() {
		assistant.CreatedAt = time.Now()
	}
	r.mu.Lock()
	r.assistants[assistant.Id] = *assistant
	r.mu.Unlock()
	return nil
}

func (r *AssistantRepository) Update(ctx context.Context, assistant *entity.Assistant) error {
	now := time.Now()
	assistant.UpdatedAt = &now
	r.mu.Lock()
	r.assistants[assistant.Id] = *assistant
	r.mu.Unlock()
	return nil
}

func (r *AssistantRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.Assistant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assistants[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *AssistantRepository) FindAllByOwner(ctx context.Context, ownerId uuid.UUID) ([]*entity.Assistant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*entity.Assistant
	for _, a := range r.assistants {
		if a.OwnerId == ownerId {
			a := a
			result = append(result, &a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}
