package intent

import (
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/pkg/llm"
)

type Kind string

const (
	KindQuestion Kind = "question"
	KindWorkflow Kind = "workflow"
	KindContinue Kind = "continue_workflow"
)

func (k Kind) Valid() bool {
	return k == KindQuestion || k == KindWorkflow || k == KindContinue
}

type Source string

const (
	SourceLLM     Source = "llm"
	SourceKeyword Source = "keyword"
)

// Intent is recomputed every turn and never persisted.
type Intent struct {
	Kind       Kind              `json:"kind"`
	Entities   map[string]string `json:"entities,omitempty"`
	Confidence float64           `json:"confidence"`
	Source     Source            `json:"source"`
}

// ClassifyContext is what the classifier may know about the conversation.
type ClassifyContext struct {
	AssistantName string
	AssistantKind string
	// HasWorkflow is true when the assistant declares steps.
	HasWorkflow bool
	// ActiveWorkflow is true while a workflow is in progress.
	ActiveWorkflow bool
	// ActiveStep is the step awaiting the user, if any.
	ActiveStep    *entity.StepDef
	CollectedKeys []string
	History       []llm.Message

	ConfidenceFloor float64
	StrongMatch     float64
}
