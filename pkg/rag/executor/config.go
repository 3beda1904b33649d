package executor

import (
	"time"

	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/search"
)

// Config is everything a turn needs to know about thresholds, budgets and
// the model. It is passed explicitly so turns never read global state.
type Config struct {
	Ladder                []float64
	TopK                  int
	ContextBudget         int
	ConfidenceFloor       float64
	StrongMatch           float64
	ClassificationTimeout time.Duration
	GenerationTimeout     time.Duration
	SystemPrompt          string
	Model                 string
	Temperature           float64
	MaxTokens             int
	Tags                  map[string]string
}

// NewConfig takes the engine defaults from the service configuration.
func NewConfig(cfg *config.Config) Config {
	return Config{
		Ladder:                cfg.Rag.Thresholds,
		TopK:                  cfg.Rag.TopK,
		ContextBudget:         cfg.Rag.ContextBudget,
		ConfidenceFloor:       cfg.Rag.ConfidenceFloor,
		StrongMatch:           cfg.Rag.StrongMatch,
		ClassificationTimeout: cfg.Rag.ClassificationTimeout,
		GenerationTimeout:     cfg.Rag.GenerationTimeout,
		Model:                 cfg.Ai.LLMModel,
	}
}

// DefaultConfig is used when no service configuration is at hand.
func DefaultConfig() Config {
	return Config{
		Ladder:                search.DefaultLadder,
		TopK:                  search.DefaultTopK,
		ContextBudget:         6000,
		ConfidenceFloor:       0.5,
		StrongMatch:           0.85,
		ClassificationTimeout: 15 * time.Second,
		GenerationTimeout:     90 * time.Second,
	}
}

// ConfigFor layers an assistant's overrides on top of base. Zero values in
// the assistant mean "keep the default".
func ConfigFor(base Config, assistant *entity.Assistant) Config {
	cfg := base
	cfg.Ladder = search.Ladder(base.Ladder)
	if assistant == nil {
		return cfg
	}

	r := assistant.Retrieval
	if len(r.Thresholds) > 0 {
		cfg.Ladder = search.Ladder(r.Thresholds)
	}
	if r.TopK > 0 {
		cfg.TopK = r.TopK
	}
	if r.ContextBudget > 0 {
		cfg.ContextBudget = r.ContextBudget
	}
	if r.ConfidenceFloor > 0 {
		cfg.ConfidenceFloor = r.ConfidenceFloor
	}
	if r.StrongMatch > 0 {
		cfg.StrongMatch = r.StrongMatch
	}
	if len(r.Tags) > 0 {
		cfg.Tags = r.Tags
	}

	m := assistant.ModelConfig
	if m.Model != "" {
		cfg.Model = m.Model
	}
	if m.Temperature > 0 {
		cfg.Temperature = m.Temperature
	}
	if m.MaxTokens > 0 {
		cfg.MaxTokens = m.MaxTokens
	}
	if m.SystemPrompt != "" {
		cfg.SystemPrompt = m.SystemPrompt
	}
	return cfg
}

// ModelOptions turns the model settings into provider options.
func (c Config) ModelOptions() []llm.Option {
	opts := []llm.Option{llm.WithModel(c.Model), llm.WithMaxTokens(c.MaxTokens)}
	if c.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(c.Temperature))
	}
	return opts
}
