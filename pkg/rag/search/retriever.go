package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/rag"
	"ai-assistant-be/pkg/store"

	"github.com/google/uuid"
)

// DefaultLadder is tried from strictest to loosest.
var DefaultLadder = []float64{0.7, 0.5, 0.3}

const DefaultTopK = 5

type RetrievalRequest struct {
	Query   string
	OwnerId uuid.UUID
	Tags    map[string]string
	Ladder  []float64
	K       int
}

type RetrievalResult struct {
	Chunks []store.ScoredChunk
	// Threshold is the rung that produced Chunks.
	Threshold float64
	Attempts  int
}

// Retriever embeds a query once and walks the similarity ladder until a
// rung returns something.
type Retriever struct {
	embeddingProvider embedding.EmbeddingProvider
	chunks            contract.ChunkRepository
	logger            logger.ILogger
}

func NewRetriever(embeddingProvider embedding.EmbeddingProvider, chunks contract.ChunkRepository, logger logger.ILogger) *Retriever {
	return &Retriever{
		embeddingProvider: embeddingProvider,
		chunks:            chunks,
		logger:            logger,
	}
}

// Retrieve returns rag.ErrRetrievalEmpty when every rung came back empty,
// never an empty result without an error.
func (r *Retriever) Retrieve(ctx context.Context, req RetrievalRequest) (*RetrievalResult, error) {
	vector, err := embedding.EmbedOne(ctx, r.embeddingProvider, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", rag.ErrEmbeddingFailed, err)
	}

	k := req.K
	if k <= 0 {
		k = DefaultTopK
	}
	ladder := Ladder(req.Ladder)

	result := &RetrievalResult{}
	for _, threshold := range ladder {
		result.Attempts++
		hits, err := r.chunks.Search(ctx, store.ChunkQuery{
			Embedding:     vector,
			OwnerId:       req.OwnerId,
			K:             k,
			MinSimilarity: threshold,
			Tags:          req.Tags,
		})
		if err != nil {
			return nil, fmt.Errorf("chunk search: %w", err)
		}
		if len(hits) > 0 {
			result.Chunks = hits
			result.Threshold = threshold
			r.logger.Debug("Retriever", "Retrieval matched", map[string]interface{}{
				"threshold": threshold,
				"hits":      len(hits),
				"top_score": hits[0].Similarity,
			})
			return result, nil
		}
	}

	r.logger.Info("Retriever", "No chunk passed any threshold", map[string]interface{}{
		"owner_id": req.OwnerId.String(),
		"attempts": result.Attempts,
	})
	return result, rag.ErrRetrievalEmpty
}

// Ladder returns a descending copy of thresholds, or DefaultLadder when
// none are given.
func Ladder(thresholds []float64) []float64 {
	if len(thresholds) == 0 {
		thresholds = DefaultLadder
	}
	out := append([]float64(nil), thresholds...)
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

// IsNoMatch reports the explicit no-match outcome.
func IsNoMatch(err error) bool {
	return errors.Is(err, rag.ErrRetrievalEmpty)
}
