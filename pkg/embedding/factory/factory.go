package factory

import (
	"ai-assistant-be/internal/config"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/embedding/jina"
	"ai-assistant-be/pkg/embedding/ollama"
	"fmt"
)

func NewEmbeddingProvider(cfg *config.Config) (embedding.EmbeddingProvider, error) {
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		return ollama.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel), nil
	case "jina":
		if cfg.Keys.Jina == "" {
			return nil, fmt.Errorf("jina provider requires JINA_API_KEY")
		}
		return jina.NewJinaProvider(cfg.Keys.Jina, "", cfg.Ai.EmbeddingModel), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
}
