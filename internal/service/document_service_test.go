package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/memory"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/extractor"
	"ai-assistant-be/pkg/rag/ragtest"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexTopic = "INDEX_DOCUMENT"

var handbook = strings.Repeat("New hires get a laptop on their first day. Expense reports are due by the fifth of each month. ", 8)

type indexingEnv struct {
	store     *memory.Store
	embedder  *ragtest.HashEmbedder
	publisher *recordingPublisher
	pubSub    *gochannel.GoChannel
	documents IDocumentService
	consumer  IConsumerService
}

func newIndexingEnv(t *testing.T, options IndexingOptions) *indexingEnv {
	t.Helper()
	e := &indexingEnv{
		store:     memory.NewStore(),
		embedder:  ragtest.NewHashEmbedder(16),
		publisher: &recordingPublisher{},
		pubSub:    gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
	}
	t.Cleanup(func() { e.pubSub.Close() })

	e.documents = NewDocumentService(e.store, NewPublisherService(indexTopic, e.pubSub), logger.NewNopLogger())
	e.consumer = NewConsumerService(e.pubSub, indexTopic, e.store, e.embedder, extractor.NewRegistry(), e.publisher, options, logger.NewNopLogger())
	return e
}

func defaultIndexing() IndexingOptions {
	return IndexingOptions{ChunkSize: 80, ChunkOverlap: 10, BatchSize: 2, Concurrency: 2}
}

func (e *indexingEnv) seed(t *testing.T, owner uuid.UUID, mime, content string) *entity.Document {
	t.Helper()
	doc := &entity.Document{Id: uuid.New(), OwnerId: owner, Title: "Handbook", MimeType: mime, Content: content, Status: entity.DocumentPending}
	require.NoError(t, e.store.Documents.Create(context.Background(), doc))
	return doc
}

func TestDocumentService_UploadIsIndexedByConsumer(t *testing.T) {
	e := newIndexingEnv(t, defaultIndexing())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.consumer.Consume(ctx))

	owner := uuid.New()
	res, err := e.documents.Upload(ctx, owner, &dto.UploadDocumentRequest{
		Title:   "Handbook",
		Content: handbook,
		Tags:    map[string]string{"team": "people"},
	})
	require.NoError(t, err)
	assert.Equal(t, string(entity.DocumentPending), res.Status)
	assert.Equal(t, extractor.MimePlain, res.MimeType)

	require.Eventually(t, func() bool {
		doc, err := e.documents.Show(ctx, owner, res.Id)
		return err == nil && doc.Status == string(entity.DocumentIndexed)
	}, 2*time.Second, 10*time.Millisecond)

	chunks, err := e.store.Chunks.FindAllByDocumentId(ctx, res.Id)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	doc, err := e.documents.Show(ctx, owner, res.Id)
	require.NoError(t, err)
	assert.Equal(t, len(chunks), doc.ChunkCount)

	seen := make(map[int]bool)
	for _, c := range chunks {
		assert.True(t, c.Embedded())
		assert.Equal(t, owner, c.OwnerId)
		assert.Equal(t, "people", c.Tags["team"])
		seen[c.SequenceIndex] = true
	}
	for i := range chunks {
		assert.True(t, seen[i], "sequence index %d missing", i)
	}

	indexed := e.publisher.ofType(events.TypeDocumentIndexed)
	require.Len(t, indexed, 1)
	assert.Equal(t, res.Id.String(), indexed[0].Payload()["document_id"])
}

func TestConsumerService_EmbedsInBatches(t *testing.T) {
	e := newIndexingEnv(t, defaultIndexing())
	ctx := context.Background()
	doc := e.seed(t, uuid.New(), extractor.MimePlain, handbook)

	require.NoError(t, e.consumer.IndexDocument(ctx, doc.Id))

	chunks, err := e.store.Chunks.FindAllByDocumentId(ctx, doc.Id)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)
	assert.Equal(t, (len(chunks)+1)/2, e.embedder.Calls())
}

func TestConsumerService_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mime    string
		content string
		prepare func(e *indexingEnv)
	}{
		{name: "unsupported mime", mime: "application/pdf", content: handbook},
		{name: "empty after extraction", mime: extractor.MimeHTML, content: "<script>x()</script>"},
		{name: "embedding provider down", mime: extractor.MimePlain, content: handbook, prepare: func(e *indexingEnv) { e.embedder.FailNext(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newIndexingEnv(t, defaultIndexing())
			ctx := context.Background()
			doc := e.seed(t, uuid.New(), tt.mime, tt.content)
			if tt.prepare != nil {
				tt.prepare(e)
			}

			require.NoError(t, e.consumer.IndexDocument(ctx, doc.Id))

			got, err := e.store.Documents.FindById(ctx, doc.Id)
			require.NoError(t, err)
			assert.Equal(t, entity.DocumentError, got.Status)
			assert.NotEmpty(t, got.Error)

			chunks, err := e.store.Chunks.FindAllByDocumentId(ctx, doc.Id)
			require.NoError(t, err)
			assert.Empty(t, chunks)
			assert.Len(t, e.publisher.ofType(events.TypeDocumentFailed), 1)
		})
	}
}

func TestDocumentService_ReindexReplacesChunks(t *testing.T) {
	e := newIndexingEnv(t, defaultIndexing())
	ctx := context.Background()
	owner := uuid.New()
	doc := e.seed(t, owner, extractor.MimePlain, handbook)
	require.NoError(t, e.consumer.IndexDocument(ctx, doc.Id))

	first, err := e.store.Chunks.FindAllByDocumentId(ctx, doc.Id)
	require.NoError(t, err)

	res, err := e.documents.Reindex(ctx, owner, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, string(entity.DocumentPending), res.Status)

	require.NoError(t, e.consumer.IndexDocument(ctx, doc.Id))
	second, err := e.store.Chunks.FindAllByDocumentId(ctx, doc.Id)
	require.NoError(t, err)
	assert.Len(t, second, len(first))
	assert.NotEqual(t, first[0].Id, second[0].Id)

	_, err = e.documents.Reindex(ctx, uuid.New(), doc.Id)
	assert.ErrorIs(t, err, ErrForbidden)
}
