package workflow

import (
	"fmt"
	"sort"
	"strings"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/pkg/rag"
	"ai-assistant-be/pkg/rag/intent"
)

// Planner orders and validates an assistant's steps and works out which
// of them still have to run.
type Planner struct{}

func NewPlanner() *Planner {
	return &Planner{}
}

// Validate returns the steps sorted by Order (ties by id). Any structural
// fault is rag.ErrInvalidWorkflow: duplicate or empty ids, unknown kinds,
// missing kind payload, dependencies that are not strictly earlier steps,
// and jump targets that do not exist.
func (p *Planner) Validate(steps []entity.StepDef) ([]entity.StepDef, error) {
	if len(steps) == 0 {
		return nil, nil
	}

	ordered := append([]entity.StepDef(nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return ordered[i].Id < ordered[j].Id
	})

	index := make(map[string]int, len(ordered))
	for i, s := range ordered {
		if strings.TrimSpace(s.Id) == "" {
			return nil, fmt.Errorf("%w: step at position %d has no id", rag.ErrInvalidWorkflow, i)
		}
		if _, dup := index[s.Id]; dup {
			return nil, fmt.Errorf("%w: duplicate step id %q", rag.ErrInvalidWorkflow, s.Id)
		}
		if !s.Kind.Valid() {
			return nil, fmt.Errorf("%w: step %q has unknown kind %q", rag.ErrInvalidWorkflow, s.Id, s.Kind)
		}
		index[s.Id] = i
	}

	for i, s := range ordered {
		for _, dep := range s.Dependencies {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("%w: step %q depends on unknown step %q", rag.ErrInvalidWorkflow, s.Id, dep)
			}
			if j >= i {
				return nil, fmt.Errorf("%w: step %q depends on %q which does not come before it", rag.ErrInvalidWorkflow, s.Id, dep)
			}
		}
		if err := checkPayload(s, i, ordered, index); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}

func checkPayload(s entity.StepDef, i int, ordered []entity.StepDef, index map[string]int) error {
	target := func(id string) error {
		if id == "" {
			return nil
		}
		if _, ok := index[id]; !ok {
			return fmt.Errorf("%w: step %q jumps to unknown step %q", rag.ErrInvalidWorkflow, s.Id, id)
		}
		return nil
	}

	switch s.Kind {
	case entity.StepKindCollectInfo:
		if len(s.Config.Questions)+len(s.Config.Fields) == 0 {
			return fmt.Errorf("%w: collect_info step %q asks nothing", rag.ErrInvalidWorkflow, s.Id)
		}
	case entity.StepKindGenerate, entity.StepKindProcess:
		if strings.TrimSpace(s.Config.PromptTemplate) == "" {
			return fmt.Errorf("%w: %s step %q has no prompt_template", rag.ErrInvalidWorkflow, s.Kind, s.Id)
		}
	case entity.StepKindSearch:
		if strings.TrimSpace(s.Config.Query) == "" {
			return fmt.Errorf("%w: search step %q has no query", rag.ErrInvalidWorkflow, s.Id)
		}
	case entity.StepKindValidate:
		if err := checkPredicate(s.Config.Predicate); err != nil {
			return fmt.Errorf("step %q: %w", s.Id, err)
		}
		if err := target(s.Config.RetryStep); err != nil {
			return err
		}
		if s.Config.RetryStep == "" && precedingCollect(ordered, i) == "" {
			return fmt.Errorf("%w: validate step %q has nothing to retry", rag.ErrInvalidWorkflow, s.Id)
		}
	case entity.StepKindConditional:
		if err := checkPredicate(s.Config.Predicate); err != nil {
			return fmt.Errorf("step %q: %w", s.Id, err)
		}
		if err := target(s.Config.OnTrue); err != nil {
			return err
		}
		if err := target(s.Config.OnFalse); err != nil {
			return err
		}
	}
	return nil
}

// InputKeys numbers the questions of every collect_info step across the
// whole ordered workflow (answer_1, answer_2, ...) and keys fields by name.
func (p *Planner) InputKeys(ordered []entity.StepDef) map[string][]string {
	keys := make(map[string][]string)
	n := 0
	for _, s := range ordered {
		if s.Kind != entity.StepKindCollectInfo {
			continue
		}
		var stepKeys []string
		for range s.Config.Questions {
			n++
			stepKeys = append(stepKeys, fmt.Sprintf("answer_%d", n))
		}
		stepKeys = append(stepKeys, s.Config.Fields...)
		keys[s.Id] = stepKeys
	}
	return keys
}

// Plan returns the steps that still have to run, in order. A question
// intent or an assistant without steps yields an empty plan. Steps whose
// inputs are already in data are left out, so replanning after a partial
// run never asks an answered question again.
func (p *Planner) Plan(in intent.Intent, assistant *entity.Assistant, data entity.CollectedData) ([]entity.StepDef, error) {
	if !assistant.HasWorkflow() || in.Kind == intent.KindQuestion {
		return nil, nil
	}

	ordered, err := p.Validate(assistant.Steps)
	if err != nil {
		return nil, err
	}
	keys := p.InputKeys(ordered)

	plan := make([]entity.StepDef, 0, len(ordered))
	for _, s := range ordered {
		if Satisfied(s, keys[s.Id], data) {
			continue
		}
		plan = append(plan, s)
	}
	return plan, nil
}

// Start builds the state of a new workflow run. The persisted plan keeps
// every step so jumps and retries can reach any of them; satisfied steps
// start out completed. The returned remaining plan is empty when nothing
// is left to do.
func (p *Planner) Start(in intent.Intent, assistant *entity.Assistant, data entity.CollectedData) (*entity.WorkflowState, []entity.StepDef, error) {
	remaining, err := p.Plan(in, assistant, data)
	if err != nil {
		return nil, nil, err
	}
	if len(remaining) == 0 {
		return nil, nil, nil
	}

	ordered, err := p.Validate(assistant.Steps)
	if err != nil {
		return nil, nil, err
	}

	state := entity.NewWorkflowState(ordered, p.InputKeys(ordered))
	pending := make(map[string]bool, len(remaining))
	for _, s := range remaining {
		pending[s.Id] = true
	}
	for _, s := range ordered {
		if !pending[s.Id] {
			state.StepStatus[s.Id] = entity.StepCompleted
		}
	}
	state.CurrentStepIndex = state.IndexOf(remaining[0].Id)
	return state, remaining, nil
}

// Satisfied reports whether step's outputs are already present in data.
// Validate and conditional steps produce nothing and are never satisfied.
func Satisfied(step entity.StepDef, keys []string, data entity.CollectedData) bool {
	switch step.Kind {
	case entity.StepKindCollectInfo:
		if len(keys) == 0 {
			return false
		}
		for _, k := range keys {
			if !data.Has(k) {
				return false
			}
		}
		return true
	case entity.StepKindGenerate, entity.StepKindProcess:
		return data.Has(step.Output())
	case entity.StepKindSearch:
		_, ok := data.Snippets[step.Output()]
		return ok
	}
	return false
}

// Eligible reports whether every dependency of step has completed.
func Eligible(step entity.StepDef, status map[string]entity.StepStatus) bool {
	for _, dep := range step.Dependencies {
		if status[dep] != entity.StepCompleted {
			return false
		}
	}
	return true
}

func precedingCollect(ordered []entity.StepDef, i int) string {
	for j := i - 1; j >= 0; j-- {
		if ordered[j].Kind == entity.StepKindCollectInfo {
			return ordered[j].Id
		}
	}
	return ""
}
