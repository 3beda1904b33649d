package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
)

var _ contract.DocumentRepository = (*DocumentRepository)(nil)

type DocumentRepository struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]entity.Document
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{documents: make(map[uuid.UUID]entity.Document)}
}

func (r *DocumentRepository) Create(ctx context.Context, document *entity.Document) error {
	if document.Id == uuid.Nil {
		document.Id = uuid.New()
	}
	if document.CreatedAt.IsZero() {
		document.CreatedAt = time.Now()
	}
	r.mu.Lock()
	r.documents[document.Id] = *document
	r.mu.Unlock()
	return nil
}

func (r *DocumentRepository) Update(ctx context.Context, document *entity.Document) error {
	now := time.Now()
	document.UpdatedAt = &now
	r.mu.Lock()
	r.documents[document.Id] = *document
	r.mu.Unlock()
	return nil
}

func (r *DocumentRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.documents[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *DocumentRepository) FindAllByOwner(ctx context.Context, ownerId uuid.UUID) ([]*entity.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*entity.Document
	for _, d := range r.documents {
		if d.OwnerId == ownerId {
			d := d
			result = append(result, &d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}
