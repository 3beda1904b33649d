package contract

import (
	"context"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

type DocumentRepository interface {
	Create(ctx context.Context, document *entity.Document) error
	Update(ctx context.Context, document *entity.Document) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	FindAllByOwner(ctx context.Context, ownerId uuid.UUID) ([]*entity.Document, error)
}
