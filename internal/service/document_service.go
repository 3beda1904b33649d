package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/extractor"
	"ai-assistant-be/pkg/rag/access"

	"github.com/google/uuid"
)

const documentModule = "DocumentService"

type IDocumentService interface {
	Upload(ctx context.Context, userId uuid.UUID, request *dto.UploadDocumentRequest) (*dto.DocumentResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.DocumentResponse, error)
	GetAll(ctx context.Context, userId uuid.UUID) ([]*dto.DocumentResponse, error)
	Reindex(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.DocumentResponse, error)
}

type documentService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	verifier         *access.Verifier
	logger           logger.ILogger
}

func NewDocumentService(uowFactory unitofwork.RepositoryFactory, publisherService IPublisherService, logger logger.ILogger) IDocumentService {
	return &documentService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		verifier:         access.NewVerifier(),
		logger:           logger,
	}
}

// Upload stores the document as pending and queues it for indexing. The
// response comes back before any chunk exists.
func (s *documentService) Upload(ctx context.Context, userId uuid.UUID, request *dto.UploadDocumentRequest) (*dto.DocumentResponse, error) {
	mime := request.MimeType
	if mime == "" {
		mime = extractor.MimePlain
	}

	doc := &entity.Document{
		Id:        uuid.New(),
		OwnerId:   userId,
		Title:     request.Title,
		MimeType:  mime,
		Content:   request.Content,
		Tags:      request.Tags,
		Status:    entity.DocumentPending,
		CreatedAt: time.Now(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentRepository().Create(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, doc.Id); err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

func (s *documentService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.DocumentResponse, error) {
	doc, err := s.owned(ctx, s.uowFactory.NewUnitOfWork(ctx), userId, id)
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

func (s *documentService) GetAll(ctx context.Context, userId uuid.UUID) ([]*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	docs, err := uow.DocumentRepository().FindAllByOwner(ctx, userId)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		res = append(res, toDocumentResponse(d))
	}
	return res, nil
}

// Reindex puts a document back to pending and queues it again. Existing
// chunks stay searchable until the new set replaces them.
func (s *documentService) Reindex(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := s.owned(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	doc.Status = entity.DocumentPending
	doc.Error = ""
	doc.UpdatedAt = &now
	if err := uow.DocumentRepository().Update(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, doc.Id); err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

func (s *documentService) enqueue(ctx context.Context, id uuid.UUID) error {
	payload, err := json.Marshal(dto.IndexDocumentMessage{DocumentId: id})
	if err != nil {
		return err
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Error(documentModule, "Failed to queue document", map[string]interface{}{"document_id": id, "error": err.Error()})
		return err
	}
	s.logger.Info(documentModule, "Document queued for indexing", map[string]interface{}{"document_id": id})
	return nil
}

func (s *documentService) owned(ctx context.Context, uow unitofwork.UnitOfWork, userId, id uuid.UUID) (*entity.Document, error) {
	doc, err := uow.DocumentRepository().FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	if err := s.verifier.VerifyOwner(doc.OwnerId, userId); err != nil {
		return nil, err
	}
	return doc, nil
}

func toDocumentResponse(d *entity.Document) *dto.DocumentResponse {
	return &dto.DocumentResponse{
		Id:         d.Id,
		Title:      d.Title,
		MimeType:   d.MimeType,
		Tags:       d.Tags,
		Status:     string(d.Status),
		ChunkCount: d.ChunkCount,
		Error:      d.Error,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
