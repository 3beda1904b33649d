package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag"
)

const (
	logModule       = "IntentClassifier"
	historyInPrompt = 4
)

// Classifier resolves intents with a JSON-mode model call and falls back
// to keyword matching. Classify never fails.
type Classifier struct {
	llmProvider llm.LLMProvider
	keyword     *KeywordClassifier
	timeout     time.Duration
	logger      logger.ILogger
}

func NewClassifier(llmProvider llm.LLMProvider, timeout time.Duration, logger logger.ILogger) *Classifier {
	return &Classifier{
		llmProvider: llmProvider,
		keyword:     NewKeywordClassifier(),
		timeout:     timeout,
		logger:      logger,
	}
}

type modelIntent struct {
	Kind       string         `json:"kind"`
	Entities   map[string]any `json:"entities"`
	Confidence float64        `json:"confidence"`
}

func (c *Classifier) Classify(ctx context.Context, message string, cctx ClassifyContext) Intent {
	raw, err := c.classifyWithModel(ctx, message, cctx)
	if err != nil {
		c.logger.Warn(logModule, "Falling back to keyword classification", map[string]interface{}{
			"error": fmt.Errorf("%w: %v", rag.ErrClassificationUnavailable, err).Error(),
		})
		raw = c.keyword.Classify(message, cctx)
	}

	resolved := ApplyQuestionPhrasing(raw, message)
	resolved = ApplyContinuationBias(ApplyConfidenceFloor(resolved, cctx), message, cctx)
	c.logger.Debug(logModule, "Intent resolved", map[string]interface{}{
		"raw_kind":   raw.Kind,
		"kind":       resolved.Kind,
		"confidence": resolved.Confidence,
		"source":     resolved.Source,
	})
	return resolved
}

func (c *Classifier) classifyWithModel(ctx context.Context, message string, cctx ClassifyContext) (Intent, error) {
	if c.llmProvider == nil {
		return Intent{}, errors.New("no model configured")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	response, err := c.llmProvider.Chat(ctx, []llm.Message{
		{Role: constant.ChatMessageRoleSystem, Content: constant.IntentSystemPrompt},
		{Role: constant.ChatMessageRoleUser, Content: buildPrompt(message, cctx)},
	}, llm.WithTemperature(0), llm.WithJSONFormat())
	if err != nil {
		return Intent{}, err
	}
	return parseIntent(response)
}

func buildPrompt(message string, cctx ClassifyContext) string {
	var prompt strings.Builder

	prompt.WriteString("<assistant>\n")
	if cctx.AssistantName != "" {
		prompt.WriteString(fmt.Sprintf("NAME: %s\n", cctx.AssistantName))
	}
	if cctx.AssistantKind != "" {
		prompt.WriteString(fmt.Sprintf("KIND: %s\n", cctx.AssistantKind))
	}
	if cctx.HasWorkflow {
		prompt.WriteString("This assistant can run a document-creation workflow.\n")
	} else {
		prompt.WriteString("This assistant only answers questions. Never choose workflow.\n")
	}
	prompt.WriteString("</assistant>\n\n")

	prompt.WriteString("<workflow_state>\n")
	if cctx.ActiveWorkflow {
		prompt.WriteString("ACTIVE: a workflow is in progress.\n")
		if s := cctx.ActiveStep; s != nil {
			prompt.WriteString(fmt.Sprintf("CURRENT_STEP: %s (%s)\n", s.Name, s.Kind))
			for _, q := range s.Config.Questions {
				prompt.WriteString(fmt.Sprintf("  asked: %s\n", q))
			}
			for _, f := range s.Config.Fields {
				prompt.WriteString(fmt.Sprintf("  asked for field: %s\n", f))
			}
		}
	} else {
		prompt.WriteString("NONE: no workflow is active.\n")
	}
	if len(cctx.CollectedKeys) > 0 {
		prompt.WriteString(fmt.Sprintf("COLLECTED: %s\n", strings.Join(cctx.CollectedKeys, ", ")))
	}
	prompt.WriteString("</workflow_state>\n\n")

	if n := len(cctx.History); n > 0 {
		prompt.WriteString("<recent_conversation>\n")
		start := n - historyInPrompt
		if start < 0 {
			start = 0
		}
		for _, m := range cctx.History[start:] {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", m.Role, truncate(m.Content, 300)))
		}
		prompt.WriteString("</recent_conversation>\n\n")
	}

	prompt.WriteString("<user_message>\n")
	prompt.WriteString(message)
	prompt.WriteString("\n</user_message>\n\n")

	prompt.WriteString("<intent_definitions>\n")
	prompt.WriteString(constant.IntentKindDefinitions)
	prompt.WriteString("\n</intent_definitions>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString(constant.IntentOutputFormat)
	prompt.WriteString("\n</output_format>")

	return prompt.String()
}

func parseIntent(response string) (Intent, error) {
	jsonContent := extractJSON(response)
	if jsonContent == "" {
		return Intent{}, fmt.Errorf("no JSON found in response")
	}

	var raw modelIntent
	if err := json.Unmarshal([]byte(jsonContent), &raw); err != nil {
		return Intent{}, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	kind := Kind(strings.ToLower(strings.TrimSpace(raw.Kind)))
	if !kind.Valid() {
		return Intent{}, fmt.Errorf("unknown intent kind %q", raw.Kind)
	}

	entities := make(map[string]string, len(raw.Entities))
	for k, v := range raw.Entities {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			entities[k] = s
		}
	}

	return Intent{
		Kind:       kind,
		Entities:   entities,
		Confidence: clamp(raw.Confidence),
		Source:     SourceLLM,
	}, nil
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
