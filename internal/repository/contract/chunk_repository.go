package contract

import (
	"context"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/pkg/store"

	"github.com/google/uuid"
)

// ChunkRepository is the embedding index. Readers never observe a
// partially written chunk.
type ChunkRepository interface {
	Upsert(ctx context.Context, chunk *entity.Chunk) error
	// ReplaceForDocument swaps the full chunk set of a document in one step.
	ReplaceForDocument(ctx context.Context, documentId uuid.UUID, chunks []*entity.Chunk) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	FindAllByDocumentId(ctx context.Context, documentId uuid.UUID) ([]*entity.Chunk, error)
	Search(ctx context.Context, query store.ChunkQuery) ([]store.ScoredChunk, error)
}
