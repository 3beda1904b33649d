package store

import (
	"testing"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRank_TiesPreferLowerSequenceIndex(t *testing.T) {
	doc := uuid.New()
	hits := []ScoredChunk{
		{Chunk: &entity.Chunk{Id: uuid.New(), DocumentId: doc, SequenceIndex: 3}, Similarity: 0.8},
		{Chunk: &entity.Chunk{Id: uuid.New(), DocumentId: doc, SequenceIndex: 1}, Similarity: 0.8},
		{Chunk: &entity.Chunk{Id: uuid.New(), DocumentId: doc, SequenceIndex: 0}, Similarity: 0.9},
		{Chunk: &entity.Chunk{Id: uuid.New(), DocumentId: doc, SequenceIndex: 2}, Similarity: 0.4},
	}

	ranked := Rank(hits, 3)

	assert.Len(t, ranked, 3)
	assert.Equal(t, 0, ranked[0].Chunk.SequenceIndex)
	assert.Equal(t, 1, ranked[1].Chunk.SequenceIndex)
	assert.Equal(t, 3, ranked[2].Chunk.SequenceIndex)
}

func TestMatchTags(t *testing.T) {
	tags := map[string]string{"assistant": "a1", "lang": "en"}

	assert.True(t, MatchTags(tags, nil))
	assert.True(t, MatchTags(tags, map[string]string{"lang": "en"}))
	assert.False(t, MatchTags(tags, map[string]string{"lang": "id"}))
	assert.False(t, MatchTags(nil, map[string]string{"lang": "en"}))
}
