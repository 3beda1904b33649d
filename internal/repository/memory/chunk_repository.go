package memory

import (
	"context"
	"sync"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/pkg/store"
	"ai-assistant-be/pkg/utils"

	"github.com/google/uuid"
)

var _ contract.ChunkRepository = (*ChunkRepository)(nil)

// ChunkRepository is a brute-force in-memory embedding index. Stored
// chunks are private copies and never mutated after insertion.
type ChunkRepository struct {
	mu         sync.RWMutex
	byDocument map[uuid.UUID][]*entity.Chunk
}

func NewChunkRepository() *ChunkRepository {
	return &ChunkRepository{byDocument: make(map[uuid.UUID][]*entity.Chunk)}
}

func (r *ChunkRepository) Upsert(ctx context.Context, chunk *entity.Chunk) error {
	c := copyChunk(chunk)

	r.mu.Lock()
	defer r.mu.Unlock()

	chunks := r.byDocument[c.DocumentId]
	for i, existing := range chunks {
		if existing.SequenceIndex == c.SequenceIndex {
			chunks[i] = c
			return nil
		}
	}
	r.byDocument[c.DocumentId] = append(chunks, c)
	return nil
}

func (r *ChunkRepository) ReplaceForDocument(ctx context.Context, documentId uuid.UUID, chunks []*entity.Chunk) error {
	copies := make([]*entity.Chunk, len(chunks))
	for i, c := range chunks {
		copies[i] = copyChunk(c)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(copies) == 0 {
		delete(r.byDocument, documentId)
		return nil
	}
	r.byDocument[documentId] = copies
	return nil
}

func (r *ChunkRepository) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byDocument, documentId)
	return nil
}

func (r *ChunkRepository) FindAllByDocumentId(ctx context.Context, documentId uuid.UUID) ([]*entity.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chunks := r.byDocument[documentId]
	result := make([]*entity.Chunk, 0, len(chunks))
	for _, c := range chunks {
		result = append(result, copyChunk(c))
	}
	return result, nil
}

func (r *ChunkRepository) Search(ctx context.Context, query store.ChunkQuery) ([]store.ScoredChunk, error) {
	r.mu.RLock()
	var hits []store.ScoredChunk
	for _, chunks := range r.byDocument {
		for _, c := range chunks {
			if c.OwnerId != query.OwnerId || !c.Embedded() || !store.MatchTags(c.Tags, query.Tags) {
				continue
			}
			sim := utils.CosineSimilarity(query.Embedding, c.Embedding)
			if sim < query.MinSimilarity {
				continue
			}
			hits = append(hits, store.ScoredChunk{Chunk: copyChunk(c), Similarity: sim})
		}
	}
	r.mu.RUnlock()

	return store.Rank(hits, query.K), nil
}

func copyChunk(c *entity.Chunk) *entity.Chunk {
	cp := *c
	if c.Embedding != nil {
		cp.Embedding = append([]float32(nil), c.Embedding...)
	}
	if c.Tags != nil {
		cp.Tags = make(map[string]string, len(c.Tags))
		for k, v := range c.Tags {
			cp.Tags[k] = v
		}
	}
	if cp.Id == uuid.Nil {
		cp.Id = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	return &cp
}
