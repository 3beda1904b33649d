package entity

import (
	"time"

	"github.com/google/uuid"
)

// StepKind is the closed set of workflow step behaviours.
type StepKind string

const (
	StepKindCollectInfo StepKind = "collect_info"
	StepKindGenerate    StepKind = "generate"
	StepKindSearch      StepKind = "search"
	StepKindProcess     StepKind = "process"
	StepKindValidate    StepKind = "validate"
	StepKindConditional StepKind = "conditional"
)

// StepKinds lists every kind. Executors must register a handler for each.
var StepKinds = []StepKind{
	StepKindCollectInfo,
	StepKindGenerate,
	StepKindSearch,
	StepKindProcess,
	StepKindValidate,
	StepKindConditional,
}

func (k StepKind) Valid() bool {
	for _, known := range StepKinds {
		if k == known {
			return true
		}
	}
	return false
}

type PredicateOp string

const (
	PredicateExists    PredicateOp = "exists"
	PredicateNotExists PredicateOp = "not_exists"
	PredicateEquals    PredicateOp = "equals"
	PredicateNotEquals PredicateOp = "not_equals"
	PredicateContains  PredicateOp = "contains"
	PredicateMinLength PredicateOp = "min_length"
	PredicateMatches   PredicateOp = "matches"
)

type Predicate struct {
	Field string      `json:"field" validate:"required"`
	Op    PredicateOp `json:"op" validate:"required,oneof=exists not_exists equals not_equals contains min_length matches"`
	Value string      `json:"value,omitempty"`
}

// StepConfig carries the kind specific payload of a step.
type StepConfig struct {
	// collect_info
	Questions []string `json:"questions,omitempty"`
	Fields    []string `json:"fields,omitempty"`

	// generate, process (template) and search (query template)
	PromptTemplate string            `json:"prompt_template,omitempty"`
	RetrievalAware bool              `json:"retrieval_aware,omitempty"`
	Query          string            `json:"query,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	OutputKey      string            `json:"output_key,omitempty"`

	// validate, conditional
	Predicate      *Predicate `json:"predicate,omitempty"`
	OnTrue         string     `json:"on_true,omitempty"`
	OnFalse        string     `json:"on_false,omitempty"`
	RetryStep      string     `json:"retry_step,omitempty"`
	FailureMessage string     `json:"failure_message,omitempty"`
}

type StepDef struct {
	Id           string     `json:"id" validate:"required"`
	Order        int        `json:"order"`
	Name         string     `json:"name" validate:"required"`
	Kind         StepKind   `json:"kind" validate:"required"`
	Required     bool       `json:"required"`
	Dependencies []string   `json:"dependencies,omitempty"`
	Config       StepConfig `json:"config"`
}

// Output returns the collected data key a producing step writes to.
func (s StepDef) Output() string {
	if s.Config.OutputKey != "" {
		return s.Config.OutputKey
	}
	return s.Id
}

type ModelConfig struct {
	Model        string  `json:"model,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
}

// RetrievalConfig overrides the engine defaults for one assistant. Zero
// values mean "use the default".
type RetrievalConfig struct {
	Thresholds      []float64         `json:"thresholds,omitempty"`
	TopK            int               `json:"top_k,omitempty"`
	ContextBudget   int               `json:"context_budget,omitempty"`
	ConfidenceFloor float64           `json:"confidence_floor,omitempty"`
	StrongMatch     float64           `json:"strong_match,omitempty"`
	Tags            map[string]string `json:"tags,omitempty"`
}

type Assistant struct {
	Id          uuid.UUID
	OwnerId     uuid.UUID
	Name        string
	Kind        string
	Description string
	Steps       []StepDef
	ModelConfig ModelConfig
	Retrieval   RetrievalConfig
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

func (a *Assistant) HasWorkflow() bool {
	return a != nil && len(a.Steps) > 0
}
