package workflow

import (
	"context"
	"fmt"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag"
	"ai-assistant-be/pkg/rag/stream"

	"github.com/google/uuid"
)

// Outcome tells the executor what to do after a step ran.
type Outcome int

const (
	// OutcomeCompleted marks the step completed and moves on.
	OutcomeCompleted Outcome = iota
	// OutcomeAwaitInput leaves the step pending until the user replies.
	OutcomeAwaitInput
)

type StepResult struct {
	Outcome Outcome
	// Next is the id of the step to run next. Empty means the following step.
	Next string
}

// StepHandler runs one kind of step. The registry must hold exactly one
// handler per entity.StepKinds entry.
type StepHandler interface {
	Kind() entity.StepKind
	Execute(ctx context.Context, step entity.StepDef, run *Run) (StepResult, error)
}

// Settings are the per-assistant knobs a run needs.
type Settings struct {
	OwnerId           uuid.UUID
	Tags              map[string]string
	Ladder            []float64
	TopK              int
	ContextBudget     int
	SystemPrompt      string
	History           []llm.Message
	GenerationTimeout time.Duration
	ModelOptions      []llm.Option
}

// Run is the mutable state of one turn's pass over a workflow.
type Run struct {
	State    *entity.WorkflowState
	Data     *entity.CollectedData
	Writer   *stream.Writer
	Settings Settings

	// Prompts are the questions asked during this pass.
	Prompts   []string
	Artifacts map[string]string
	Sources   []string

	answer   string
	answered bool
}

// NewRun prepares a pass. answer is the user's reply to the step that is
// awaiting input, or "" when there is none.
func NewRun(state *entity.WorkflowState, data *entity.CollectedData, w *stream.Writer, settings Settings, answer string) *Run {
	return &Run{
		State:     state,
		Data:      data,
		Writer:    w,
		Settings:  settings,
		Artifacts: make(map[string]string),
		answer:    answer,
		answered:  answer == "",
	}
}

// ConsumeAnswer hands out the user's reply at most once per pass.
func (r *Run) ConsumeAnswer() (string, bool) {
	if r.answered {
		return "", false
	}
	r.answered = true
	return r.answer, true
}

func (r *Run) addSources(sources []string) {
	seen := make(map[string]bool, len(r.Sources))
	for _, s := range r.Sources {
		seen[s] = true
	}
	for _, s := range sources {
		if !seen[s] {
			seen[s] = true
			r.Sources = append(r.Sources, s)
		}
	}
}

// Executor drives a workflow state forward until a step needs the user or
// the plan is finished.
type Executor struct {
	handlers map[entity.StepKind]StepHandler
	logger   logger.ILogger
}

// NewExecutor fails unless every step kind has exactly one handler.
func NewExecutor(logger logger.ILogger, handlers ...StepHandler) (*Executor, error) {
	registry := make(map[entity.StepKind]StepHandler, len(handlers))
	for _, h := range handlers {
		if !h.Kind().Valid() {
			return nil, fmt.Errorf("handler for unknown step kind %q", h.Kind())
		}
		if _, dup := registry[h.Kind()]; dup {
			return nil, fmt.Errorf("duplicate handler for step kind %q", h.Kind())
		}
		registry[h.Kind()] = h
	}
	for _, kind := range entity.StepKinds {
		if _, ok := registry[kind]; !ok {
			return nil, fmt.Errorf("no handler for step kind %q", kind)
		}
	}
	return &Executor{handlers: registry, logger: logger}, nil
}

// Advance runs steps from the current index. It stops when a step awaits
// input or the last step completes, in which case the workflow is marked
// completed and the index stays on that step. A failing step is left
// pending and its error returned.
func (e *Executor) Advance(ctx context.Context, run *Run) error {
	state := run.State
	if !state.Active() {
		return nil
	}
	state.AwaitingInput = false

	limit := len(state.Plan)*4 + 8
	for i := 0; ; i++ {
		if i > limit {
			return fmt.Errorf("%w: workflow does not settle after %d steps", rag.ErrInvalidWorkflow, limit)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		step := state.CurrentStep()
		if step == nil {
			state.Status = entity.WorkflowCompleted
			return nil
		}
		if state.StepStatus[step.Id] == entity.StepCompleted {
			if !e.next(state, "") {
				return nil
			}
			continue
		}
		if !Eligible(*step, state.StepStatus) {
			return fmt.Errorf("%w: step %q runs before its dependencies %v completed", rag.ErrMissingDependency, step.Id, step.Dependencies)
		}

		result, err := e.execute(ctx, *step, run)
		if err != nil {
			return err
		}
		if result.Outcome == OutcomeAwaitInput {
			state.AwaitingInput = true
			return nil
		}

		state.StepStatus[step.Id] = entity.StepCompleted
		if !e.next(state, result.Next) {
			return nil
		}
	}
}

func (e *Executor) execute(ctx context.Context, step entity.StepDef, run *Run) (StepResult, error) {
	handler := e.handlers[step.Kind]
	if handler == nil {
		return StepResult{}, fmt.Errorf("%w: step %q has unknown kind %q", rag.ErrInvalidWorkflow, step.Id, step.Kind)
	}

	run.State.StepStatus[step.Id] = entity.StepRunning
	start := time.Now()
	result, err := handler.Execute(ctx, step, run)
	if err != nil {
		run.State.StepStatus[step.Id] = entity.StepPending
		e.logger.Warn("Executor", "Step failed", map[string]interface{}{
			"step_id":    step.Id,
			"kind":       string(step.Kind),
			"error":      err.Error(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
		return StepResult{}, err
	}
	if result.Outcome == OutcomeAwaitInput {
		run.State.StepStatus[step.Id] = entity.StepPending
	}

	e.logger.Debug("Executor", "Step executed", map[string]interface{}{
		"step_id":    step.Id,
		"kind":       string(step.Kind),
		"awaiting":   result.Outcome == OutcomeAwaitInput,
		"next":       result.Next,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

// next moves the index and reports whether there is more to run. Jumping
// back resets every step from the target up to the current one.
func (e *Executor) next(state *entity.WorkflowState, target string) bool {
	cur := state.CurrentStepIndex
	if target != "" {
		idx := state.IndexOf(target)
		if idx >= 0 {
			if idx <= cur {
				for j := idx; j <= cur; j++ {
					state.StepStatus[state.Plan[j].Id] = entity.StepPending
				}
			}
			state.CurrentStepIndex = idx
			return true
		}
	}

	if cur >= len(state.Plan)-1 {
		state.Status = entity.WorkflowCompleted
		state.AwaitingInput = false
		return false
	}
	state.CurrentStepIndex = cur + 1
	return true
}
