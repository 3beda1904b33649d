package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

type WorkflowStatus string

const (
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowCompleted  WorkflowStatus = "completed"
)

type WorkflowState struct {
	CurrentStepIndex int                   `json:"current_step_index"`
	Plan             []StepDef             `json:"plan"`
	Answers          map[string]string     `json:"answers"`
	StepStatus       map[string]StepStatus `json:"step_status"`
	// InputKeys maps each collect_info step to the data keys it fills, fixed
	// when the plan is made so answer_N numbering survives replanning.
	InputKeys map[string][]string `json:"input_keys"`
	Status    WorkflowStatus      `json:"status"`
	// AwaitingInput is set once the current step has asked the user something.
	AwaitingInput bool      `json:"awaiting_input"`
	StartedAt     time.Time `json:"started_at"`
}

func NewWorkflowState(plan []StepDef, inputKeys map[string][]string) *WorkflowState {
	status := make(map[string]StepStatus, len(plan))
	for _, s := range plan {
		status[s.Id] = StepPending
	}
	return &WorkflowState{
		Plan:       plan,
		Answers:    make(map[string]string),
		StepStatus: status,
		InputKeys:  inputKeys,
		Status:     WorkflowInProgress,
		StartedAt:  time.Now(),
	}
}

func (w *WorkflowState) Active() bool {
	return w != nil && w.Status == WorkflowInProgress
}

func (w *WorkflowState) CurrentStep() *StepDef {
	if w == nil || w.CurrentStepIndex < 0 || w.CurrentStepIndex >= len(w.Plan) {
		return nil
	}
	return &w.Plan[w.CurrentStepIndex]
}

func (w *WorkflowState) IndexOf(stepId string) int {
	for i, s := range w.Plan {
		if s.Id == stepId {
			return i
		}
	}
	return -1
}

func (w *WorkflowState) Clone() *WorkflowState {
	if w == nil {
		return nil
	}
	c := *w
	c.Plan = append([]StepDef(nil), w.Plan...)
	c.Answers = make(map[string]string, len(w.Answers))
	for k, v := range w.Answers {
		c.Answers[k] = v
	}
	c.StepStatus = make(map[string]StepStatus, len(w.StepStatus))
	for k, v := range w.StepStatus {
		c.StepStatus[k] = v
	}
	c.InputKeys = make(map[string][]string, len(w.InputKeys))
	for k, v := range w.InputKeys {
		c.InputKeys[k] = append([]string(nil), v...)
	}
	return &c
}

const CollectedDataSchemaVersion = 1

// CollectedData is the structured record a session accumulates. Values and
// Snippets are the typed core; Extra keeps unknown fields around so older
// sessions survive schema changes.
type CollectedData struct {
	SchemaVersion int                 `json:"schema_version"`
	Values        map[string]string   `json:"values"`
	Snippets      map[string][]string `json:"snippets,omitempty"`
	Extra         map[string]any      `json:"extra,omitempty"`
}

func NewCollectedData() CollectedData {
	return CollectedData{
		SchemaVersion: CollectedDataSchemaVersion,
		Values:        make(map[string]string),
		Snippets:      make(map[string][]string),
	}
}

// Lookup resolves a key against Values, then Snippets, then Extra.
func (d CollectedData) Lookup(key string) (string, bool) {
	if v, ok := d.Values[key]; ok {
		return v, true
	}
	if s, ok := d.Snippets[key]; ok {
		return strings.Join(s, "\n\n"), true
	}
	if v, ok := d.Extra[key]; ok {
		return fmt.Sprint(v), true
	}
	return "", false
}

func (d CollectedData) Has(key string) bool {
	_, ok := d.Lookup(key)
	return ok
}

func (d *CollectedData) Set(key, value string) {
	if d.Values == nil {
		d.Values = make(map[string]string)
	}
	d.Values[key] = value
}

func (d *CollectedData) SetSnippets(key string, snippets []string) {
	if d.Snippets == nil {
		d.Snippets = make(map[string][]string)
	}
	d.Snippets[key] = snippets
}

func (d *CollectedData) Delete(key string) {
	delete(d.Values, key)
	delete(d.Snippets, key)
	delete(d.Extra, key)
}

func (d CollectedData) Clone() CollectedData {
	c := CollectedData{
		SchemaVersion: d.SchemaVersion,
		Values:        make(map[string]string, len(d.Values)),
		Snippets:      make(map[string][]string, len(d.Snippets)),
	}
	for k, v := range d.Values {
		c.Values[k] = v
	}
	for k, v := range d.Snippets {
		c.Snippets[k] = append([]string(nil), v...)
	}
	if d.Extra != nil {
		c.Extra = make(map[string]any, len(d.Extra))
		for k, v := range d.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// ChatSession is created lazily per user and assistant and never expires on its own.
type ChatSession struct {
	Id          uuid.UUID
	UserId      uuid.UUID
	AssistantId uuid.UUID
	Title       string
	Workflow    *WorkflowState
	Data        CollectedData
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

func (s *ChatSession) Clone() *ChatSession {
	c := *s
	c.Workflow = s.Workflow.Clone()
	c.Data = s.Data.Clone()
	return &c
}
