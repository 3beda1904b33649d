package contract

import (
	"context"
	"errors"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

// ChatSessionRepository persists workflow state and collected data as one
// record. Save is read-after-write consistent for a single writer.
type ChatSessionRepository interface {
	Save(ctx context.Context, session *entity.ChatSession) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.ChatSession, error)
	FindAllByUser(ctx context.Context, userId uuid.UUID) ([]*entity.ChatSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
