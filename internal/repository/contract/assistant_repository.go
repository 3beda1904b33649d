package contract

import (
	"context"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// Finders return (nil, nil) when nothing matches.
type AssistantRepository interface {
	Create(ctx context.Context, assistant *entity.Assistant) error
	Update(ctx context.Context, assistant *entity.Assistant) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Assistant, error)
	FindAllByOwner(ctx context.Context, ownerId uuid.UUID) ([]*entity.Assistant, error)
}
