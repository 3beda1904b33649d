package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Chunk rows are never updated in place; re-indexing replaces the whole set.
type Chunk struct {
	Id            uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentId    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_chunks_document_sequence"`
	OwnerId       uuid.UUID        `gorm:"type:uuid;not null;index"`
	SequenceIndex int              `gorm:"not null;uniqueIndex:idx_chunks_document_sequence"`
	Text          string           `gorm:"type:text"`
	Embedding     *pgvector.Vector `gorm:"type:vector"` // NULL until embedded
	Tags          datatypes.JSON   `gorm:"type:jsonb"`
	CreatedAt     time.Time        `gorm:"autoCreateTime"`
}

func (Chunk) TableName() string {
	return "chunks"
}
