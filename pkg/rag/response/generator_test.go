package response

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag"
	"ai-assistant-be/pkg/rag/ragtest"
	"ai-assistant-be/pkg/rag/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_StreamsEveryToken(t *testing.T) {
	var frames []stream.Frame
	w := stream.NewWriter(func(f stream.Frame) error {
		frames = append(frames, f)
		return nil
	})
	require.NoError(t, w.Message("Intro."))

	fake := ragtest.NewFakeLLM("one two three")
	text, err := NewGenerator(fake, logger.NewNopLogger()).Stream(context.Background(), []llm.Message{{Role: "user", Content: "go"}}, w, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "one two three", text)
	assert.Equal(t, "Intro.\n\none two three", w.Text())
	assert.Len(t, frames, 5) // intro, break, three tokens
}

func TestGenerator_Errors(t *testing.T) {
	tests := []struct {
		name string
		llm  *ragtest.FakeLLM
		want error
	}{
		{"timeout", ragtest.NewFakeLLM("slow reply").SlowDown(200 * time.Millisecond), rag.ErrGenerationTimeout},
		{"provider failure", ragtest.NewFakeLLM("x").FailStream(errors.New("boom")), rag.ErrGenerationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := stream.NewWriter(nil)
			_, err := NewGenerator(tt.llm, logger.NewNopLogger()).Stream(context.Background(), nil, w, 20*time.Millisecond)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, w.Text())
		})
	}
}
