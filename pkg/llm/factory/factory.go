package factory

import (
	"ai-assistant-be/internal/config"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/llm/huggingface"
	"ai-assistant-be/pkg/llm/ollama"
	"fmt"
)

func NewLLMProvider(cfg *config.Config) (llm.LLMProvider, error) {
	switch cfg.Ai.LLMProvider {
	case "ollama":
		baseURL := cfg.Ai.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Ai.LLMModel), nil
	case "huggingface":
		if cfg.Keys.HuggingFace == "" {
			return nil, fmt.Errorf("huggingface provider requires HUGGINGFACE_API_KEY")
		}
		return huggingface.NewHuggingFaceProvider(cfg.Keys.HuggingFace, cfg.Ai.HuggingFaceBaseURL, cfg.Ai.LLMModel), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Ai.LLMProvider)
	}
}
