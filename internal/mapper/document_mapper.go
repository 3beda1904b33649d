package mapper

import (
	"fmt"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) (*entity.Document, error) {
	if d == nil {
		return nil, nil
	}
	out := &entity.Document{
		Id:         d.Id,
		OwnerId:    d.OwnerId,
		Title:      d.Title,
		MimeType:   d.MimeType,
		Content:    d.Content,
		Status:     entity.DocumentStatus(d.Status),
		ChunkCount: d.ChunkCount,
		Error:      d.Error,
		CreatedAt:  d.CreatedAt,
	}
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		out.UpdatedAt = &t
	}
	if err := fromJSON(d.Tags, &out.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of document %s: %w", d.Id, err)
	}
	return out, nil
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}
	return &model.Document{
		Id:         d.Id,
		OwnerId:    d.OwnerId,
		Title:      d.Title,
		MimeType:   d.MimeType,
		Content:    d.Content,
		Tags:       toJSON(d.Tags),
		Status:     string(d.Status),
		ChunkCount: d.ChunkCount,
		Error:      d.Error,
		CreatedAt:  d.CreatedAt,
	}
}

func (m *DocumentMapper) ChunkToEntity(c *model.Chunk) (*entity.Chunk, error) {
	if c == nil {
		return nil, nil
	}
	out := &entity.Chunk{
		Id:            c.Id,
		DocumentId:    c.DocumentId,
		OwnerId:       c.OwnerId,
		SequenceIndex: c.SequenceIndex,
		Text:          c.Text,
		CreatedAt:     c.CreatedAt,
	}
	if c.Embedding != nil {
		out.Embedding = c.Embedding.Slice()
	}
	if err := fromJSON(c.Tags, &out.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of chunk %s: %w", c.Id, err)
	}
	return out, nil
}

func (m *DocumentMapper) ChunkToModel(c *entity.Chunk) *model.Chunk {
	if c == nil {
		return nil
	}
	out := &model.Chunk{
		Id:            c.Id,
		DocumentId:    c.DocumentId,
		OwnerId:       c.OwnerId,
		SequenceIndex: c.SequenceIndex,
		Text:          c.Text,
		Tags:          toJSON(c.Tags),
		CreatedAt:     c.CreatedAt,
	}
	if c.Embedded() {
		v := pgvector.NewVector(c.Embedding)
		out.Embedding = &v
	}
	return out
}
