package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/extractor"
	"ai-assistant-be/pkg/rag"
	"ai-assistant-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const consumerModule = "ConsumerService"

type IConsumerService interface {
	Consume(ctx context.Context) error
	// IndexDocument runs the whole pipeline for one document.
	IndexDocument(ctx context.Context, documentId uuid.UUID) error
}

type IndexingOptions struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Concurrency  int
}

type consumerService struct {
	subscriber        message.Subscriber
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	extractor         extractor.Extractor
	publisher         events.Publisher
	options           IndexingOptions
	logger            logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	ex extractor.Extractor,
	publisher events.Publisher,
	options IndexingOptions,
	logger logger.ILogger,
) IConsumerService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if options.BatchSize <= 0 {
		options.BatchSize = 16
	}
	if options.Concurrency <= 0 {
		options.Concurrency = 1
	}
	return &consumerService{
		subscriber:        subscriber,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		extractor:         ex,
		publisher:         publisher,
		options:           options,
		logger:            logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.IndexDocumentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(consumerModule, "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	if err := cs.IndexDocument(ctx, payload.DocumentId); err != nil {
		// Only storage faults reach here; document level faults are recorded on the document.
		cs.logger.Error(consumerModule, "Indexing interrupted, will retry", map[string]interface{}{"document_id": payload.DocumentId, "error": err.Error()})
		msg.Nack()
		return
	}
	msg.Ack()
}

// IndexDocument moves a document from pending to indexed or error.
// Extraction and embedding faults end in error status and a nil return;
// a returned error means storage failed and the job should be retried.
func (cs *consumerService) IndexDocument(ctx context.Context, documentId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	doc, err := uow.DocumentRepository().FindById(ctx, documentId)
	if err != nil {
		return err
	}
	if doc == nil {
		cs.logger.Warn(consumerModule, "Document not found, dropping job", map[string]interface{}{"document_id": documentId})
		return nil
	}

	if err := cs.setStatus(ctx, uow, doc, entity.DocumentProcessing, ""); err != nil {
		return err
	}

	chunks, err := cs.buildChunks(ctx, doc)
	if err != nil {
		cs.logger.Warn(consumerModule, "Indexing failed", map[string]interface{}{"document_id": doc.Id, "error": err.Error()})
		if serr := cs.setStatus(ctx, uow, doc, entity.DocumentError, err.Error()); serr != nil {
			return serr
		}
		cs.publish(ctx, events.NewDocumentFailed(doc.Id.String(), doc.OwnerId.String(), err.Error()))
		return nil
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChunkRepository().ReplaceForDocument(ctx, doc.Id, chunks); err != nil {
		return err
	}

	now := time.Now()
	doc.Status = entity.DocumentIndexed
	doc.ChunkCount = len(chunks)
	doc.Error = ""
	doc.UpdatedAt = &now
	if err := uow.DocumentRepository().Update(ctx, doc); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	cs.logger.Info(consumerModule, "Document indexed", map[string]interface{}{"document_id": doc.Id, "chunks": len(chunks)})
	cs.publish(ctx, events.NewDocumentIndexed(doc.Id.String(), doc.OwnerId.String(), len(chunks)))
	return nil
}

func (cs *consumerService) buildChunks(ctx context.Context, doc *entity.Document) ([]*entity.Chunk, error) {
	text, err := cs.extractor.Extract(ctx, extractor.File{
		Name:     doc.Title,
		MimeType: doc.MimeType,
		Content:  []byte(doc.Content),
	})
	if err != nil {
		return nil, err
	}

	pieces, err := utils.SplitText(text, cs.options.ChunkSize, cs.options.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: no text to index", rag.ErrExtractionFailed)
	}

	vectors, err := cs.embedAll(ctx, pieces)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	chunks := make([]*entity.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = &entity.Chunk{
			Id:            uuid.New(),
			DocumentId:    doc.Id,
			OwnerId:       doc.OwnerId,
			SequenceIndex: i,
			Text:          piece,
			Embedding:     vectors[i],
			Tags:          doc.Tags,
			CreatedAt:     now,
		}
	}
	return chunks, nil
}

// embedAll embeds pieces in batches, at most Concurrency batches at a time.
// Any failed batch fails the whole document so it never ends up half indexed.
func (cs *consumerService) embedAll(ctx context.Context, pieces []string) ([][]float32, error) {
	vectors := make([][]float32, len(pieces))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cs.options.Concurrency)

	for start := 0; start < len(pieces); start += cs.options.BatchSize {
		end := min(start+cs.options.BatchSize, len(pieces))
		batch := pieces[start:end]
		offset := start

		g.Go(func() error {
			out, err := cs.embeddingProvider.Embed(gctx, batch)
			if err != nil {
				return fmt.Errorf("%w: batch at %d: %v", rag.ErrEmbeddingFailed, offset, err)
			}
			if len(out) != len(batch) {
				return fmt.Errorf("%w: batch at %d: %v", rag.ErrEmbeddingFailed, offset, embedding.ErrCountMismatch)
			}
			for i, v := range out {
				if len(v) == 0 {
					return fmt.Errorf("%w: empty vector for chunk %d", rag.ErrEmbeddingFailed, offset+i)
				}
				vectors[offset+i] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (cs *consumerService) setStatus(ctx context.Context, uow unitofwork.UnitOfWork, doc *entity.Document, status entity.DocumentStatus, reason string) error {
	now := time.Now()
	doc.Status = status
	doc.Error = reason
	doc.UpdatedAt = &now
	return uow.DocumentRepository().Update(ctx, doc)
}

func (cs *consumerService) publish(ctx context.Context, evt events.Event) {
	if err := cs.publisher.Publish(ctx, evt); err != nil {
		cs.logger.Warn(consumerModule, "Failed to publish event", map[string]interface{}{"type": evt.EventType(), "error": err.Error()})
	}
}
