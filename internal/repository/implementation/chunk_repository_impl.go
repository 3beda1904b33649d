package implementation

import (
	"context"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/scope"
	"ai-assistant-be/internal/repository/specification"
	"ai-assistant-be/pkg/store"
	"ai-assistant-be/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewChunkRepository(db *gorm.DB) contract.ChunkRepository {
	return &ChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *ChunkRepositoryImpl) Upsert(ctx context.Context, chunk *entity.Chunk) error {
	m := r.mapper.ChunkToModel(chunk)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}, {Name: "sequence_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "embedding", "tags"}),
	}).Create(m).Error
}

// ReplaceForDocument runs in its own transaction unless the caller already
// opened one through the unit of work.
func (r *ChunkRepositoryImpl) ReplaceForDocument(ctx context.Context, documentId uuid.UUID, chunks []*entity.Chunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := specification.Apply(tx, specification.ByDocumentID{DocumentID: documentId}).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}

		models := make([]*model.Chunk, len(chunks))
		for i, c := range chunks {
			models[i] = r.mapper.ChunkToModel(c)
		}
		return tx.CreateInBatches(models, 100).Error
	})
}

func (r *ChunkRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	return specification.Apply(r.db.WithContext(ctx), specification.ByDocumentID{DocumentID: documentId}).Delete(&model.Chunk{}).Error
}

func (r *ChunkRepositoryImpl) FindAllByDocumentId(ctx context.Context, documentId uuid.UUID) ([]*entity.Chunk, error) {
	var models []*model.Chunk
	query := specification.Apply(r.db.WithContext(ctx).Scopes(scope.OrderBySequence), specification.ByDocumentID{DocumentID: documentId})
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toEntities(models)
}

// Search loads the tenant's embedded chunks and ranks them in process,
// using the same similarity and ordering as the in-memory index. Tag
// filtering is pushed down with jsonb containment.
func (r *ChunkRepositoryImpl) Search(ctx context.Context, query store.ChunkQuery) ([]store.ScoredChunk, error) {
	var models []*model.Chunk
	q := specification.Apply(r.db.WithContext(ctx),
		specification.ByOwnerID{OwnerID: query.OwnerId},
		specification.Embedded{},
	)
	if len(query.Tags) > 0 {
		q = q.Where("tags @> ?", toJSONB(query.Tags))
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}

	chunks, err := r.toEntities(models)
	if err != nil {
		return nil, err
	}

	hits := make([]store.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		sim := utils.CosineSimilarity(query.Embedding, c.Embedding)
		if sim < query.MinSimilarity {
			continue
		}
		hits = append(hits, store.ScoredChunk{Chunk: c, Similarity: sim})
	}
	return store.Rank(hits, query.K), nil
}

func (r *ChunkRepositoryImpl) toEntities(models []*model.Chunk) ([]*entity.Chunk, error) {
	chunks := make([]*entity.Chunk, 0, len(models))
	for _, m := range models {
		c, err := r.mapper.ChunkToEntity(m)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
