package dto

import (
	"time"

	"github.com/google/uuid"
)

type UploadDocumentRequest struct {
	Title    string            `json:"title" validate:"required,max=255"`
	MimeType string            `json:"mime_type" validate:"omitempty,oneof=text/plain text/markdown text/html application/vnd.lexical+json"`
	Content  string            `json:"content" validate:"required"`
	Tags     map[string]string `json:"tags"`
}

type DocumentResponse struct {
	Id         uuid.UUID         `json:"id"`
	Title      string            `json:"title"`
	MimeType   string            `json:"mime_type"`
	Tags       map[string]string `json:"tags,omitempty"`
	Status     string            `json:"status"`
	ChunkCount int               `json:"chunk_count"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  *time.Time        `json:"updated_at"`
}

// IndexDocumentMessage is the queue payload of an indexing job.
type IndexDocumentMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
}
