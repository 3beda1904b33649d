package response

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag"
	"ai-assistant-be/pkg/rag/stream"
)

// Generator streams a completion into a turn's writer under a deadline.
type Generator struct {
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewGenerator(llmProvider llm.LLMProvider, logger logger.ILogger) *Generator {
	return &Generator{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

// Stream pushes every token to w as the provider produces it and returns
// the full text. A missed deadline maps to rag.ErrGenerationTimeout, any
// other provider failure to rag.ErrGenerationFailed.
func (g *Generator) Stream(
	ctx context.Context,
	messages []llm.Message,
	w *stream.Writer,
	timeout time.Duration,
	opts ...llm.Option,
) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	first := true
	onToken := func(token string) error {
		if first {
			first = false
			if err := w.Break(); err != nil {
				return err
			}
		}
		return w.Token(token)
	}

	text, err := g.llmProvider.Stream(ctx, messages, onToken, opts...)
	if err != nil {
		details := map[string]interface{}{
			"error":       err.Error(),
			"elapsed_ms":  time.Since(start).Milliseconds(),
			"partial_len": len(text),
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.logger.Warn("Generator", "Generation timed out", details)
			return text, fmt.Errorf("%w: after %s", rag.ErrGenerationTimeout, timeout)
		}
		g.logger.Error("Generator", "Generation failed", details)
		return text, fmt.Errorf("%w: %v", rag.ErrGenerationFailed, err)
	}

	g.logger.Debug("Generator", "Generation finished", map[string]interface{}{
		"elapsed_ms": time.Since(start).Milliseconds(),
		"length":     len(text),
	})
	return text, nil
}
