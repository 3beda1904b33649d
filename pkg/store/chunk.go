package store

import (
	"sort"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// ChunkQuery is one brute-force similarity scan over a tenant's chunks.
type ChunkQuery struct {
	Embedding     []float32
	OwnerId       uuid.UUID
	K             int
	MinSimilarity float64
	Tags          map[string]string
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk      *entity.Chunk
	Similarity float64
}

// MatchTags reports whether every filter entry is present in tags.
func MatchTags(tags, filter map[string]string) bool {
	for k, v := range filter {
		if tags[k] != v {
			return false
		}
	}
	return true
}

// Rank orders hits by similarity, breaking ties on the lower sequence
// index, then document and chunk id so the order never depends on scan
// order. At most k hits are kept when k > 0.
func Rank(hits []ScoredChunk, k int) []ScoredChunk {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Chunk.SequenceIndex != b.Chunk.SequenceIndex {
			return a.Chunk.SequenceIndex < b.Chunk.SequenceIndex
		}
		if a.Chunk.DocumentId != b.Chunk.DocumentId {
			return a.Chunk.DocumentId.String() < b.Chunk.DocumentId.String()
		}
		return a.Chunk.Id.String() < b.Chunk.Id.String()
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
