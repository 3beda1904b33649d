package entity

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentIndexed    DocumentStatus = "indexed"
	DocumentError      DocumentStatus = "error"
)

type Document struct {
	Id         uuid.UUID
	OwnerId    uuid.UUID
	Title      string
	MimeType   string
	Content    string
	Tags       map[string]string
	Status     DocumentStatus
	ChunkCount int
	Error      string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

// Chunk is immutable once written. Embedding stays nil until the provider
// returns a vector; such chunks are invisible to search.
type Chunk struct {
	Id            uuid.UUID
	DocumentId    uuid.UUID
	OwnerId       uuid.UUID
	SequenceIndex int
	Text          string
	Embedding     []float32
	Tags          map[string]string
	CreatedAt     time.Time
}

func (c *Chunk) Embedded() bool {
	return len(c.Embedding) > 0
}
