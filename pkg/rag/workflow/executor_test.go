package workflow

import (
	"context"
	"testing"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag"
	"ai-assistant-be/pkg/rag/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	text     string
	err      error
	calls    int
	messages []llm.Message
}

func (g *stubGenerator) Stream(ctx context.Context, messages []llm.Message, w *stream.Writer, timeout time.Duration, opts ...llm.Option) (string, error) {
	g.calls++
	g.messages = messages
	if g.err != nil {
		return "", g.err
	}
	if err := w.Message(g.text); err != nil {
		return "", err
	}
	return g.text, nil
}

type harness struct {
	executor  *Executor
	generator *stubGenerator
	planner   *Planner
}

func newHarness(t *testing.T) *harness {
	gen := &stubGenerator{text: "Generated report."}
	exec, err := NewExecutor(logger.NewNopLogger(), Handlers(Deps{Generator: gen, Logger: logger.NewNopLogger()})...)
	require.NoError(t, err)
	return &harness{executor: exec, generator: gen, planner: NewPlanner()}
}

// turn runs one pass and returns the text written to the stream.
func (h *harness) turn(t *testing.T, state *entity.WorkflowState, data *entity.CollectedData, answer string) (*Run, error) {
	t.Helper()
	w := stream.NewWriter(nil)
	run := NewRun(state, data, w, Settings{}, answer)
	err := h.executor.Advance(context.Background(), run)
	return run, err
}

func start(t *testing.T, h *harness, assistant *entity.Assistant, data entity.CollectedData) *entity.WorkflowState {
	t.Helper()
	state, _, err := h.planner.Start(workflowIntent(), assistant, data)
	require.NoError(t, err)
	require.NotNil(t, state)
	return state
}

func TestNewExecutor_RequiresEveryKind(t *testing.T) {
	handlers := Handlers(Deps{})

	_, err := NewExecutor(logger.NewNopLogger(), handlers[:len(handlers)-1]...)
	assert.Error(t, err)

	_, err = NewExecutor(logger.NewNopLogger(), append(handlers, &processHandler{})...)
	assert.Error(t, err)
}

func TestExecutor_CollectThenGenerate(t *testing.T) {
	h := newHarness(t)
	data := entity.NewCollectedData()
	state := start(t, h, reportAssistant(), data)

	run, err := h.turn(t, state, &data, "")
	require.NoError(t, err)
	assert.True(t, state.AwaitingInput)
	assert.Equal(t, 0, state.CurrentStepIndex)
	assert.Equal(t, []string{"What is the topic?", "Who is the audience?"}, run.Prompts)
	assert.Contains(t, run.Writer.Text(), "1. What is the topic?")
	assert.Equal(t, 0, h.generator.calls)

	run, err = h.turn(t, state, &data, "sales")
	require.NoError(t, err)
	assert.True(t, state.AwaitingInput)
	assert.Equal(t, "sales", data.Values["answer_1"])
	assert.Equal(t, []string{"Who is the audience?"}, run.Prompts)

	run, err = h.turn(t, state, &data, "the board")
	require.NoError(t, err)
	assert.Equal(t, entity.WorkflowCompleted, state.Status)
	assert.False(t, state.AwaitingInput)
	assert.Equal(t, 1, state.CurrentStepIndex)
	assert.Equal(t, entity.StepCompleted, state.StepStatus["write"])
	assert.Equal(t, "Generated report.", data.Values["write"])
	assert.Equal(t, "Generated report.", run.Artifacts["write"])
	assert.Contains(t, h.generator.messages[len(h.generator.messages)-1].Content, "Write a report on sales for the board.")
}

func TestExecutor_MultiLineAnswerFillsAllQuestions(t *testing.T) {
	h := newHarness(t)
	data := entity.NewCollectedData()
	state := start(t, h, reportAssistant(), data)

	_, err := h.turn(t, state, &data, "")
	require.NoError(t, err)

	_, err = h.turn(t, state, &data, "sales\n\nthe board\n")
	require.NoError(t, err)
	assert.Equal(t, "sales", data.Values["answer_1"])
	assert.Equal(t, "the board", data.Values["answer_2"])
	assert.Equal(t, entity.WorkflowCompleted, state.Status)
}

func TestExecutor_OptionalStepAcceptsSkip(t *testing.T) {
	h := newHarness(t)
	optional := collectStep("extras", 1, "Anything else?")
	optional.Required = false
	assistant := &entity.Assistant{Steps: []entity.StepDef{
		optional,
		{Id: "summary", Order: 2, Name: "summary", Kind: entity.StepKindProcess,
			Config: entity.StepConfig{PromptTemplate: "Extras: [{{answer_1}}]"}},
	}}
	data := entity.NewCollectedData()
	state := start(t, h, assistant, data)

	_, err := h.turn(t, state, &data, "")
	require.NoError(t, err)

	run, err := h.turn(t, state, &data, "Skip")
	require.NoError(t, err)
	assert.Equal(t, entity.WorkflowCompleted, state.Status)
	assert.Equal(t, "Extras: []", run.Artifacts["summary"])
	assert.Equal(t, 0, h.generator.calls)
}

func TestExecutor_ValidateRewindsToCollect(t *testing.T) {
	h := newHarness(t)
	assistant := &entity.Assistant{Steps: []entity.StepDef{
		collectStep("ask", 1, "What is your email?"),
		{Id: "check", Order: 2, Name: "check", Kind: entity.StepKindValidate, Dependencies: []string{"ask"},
			Config: entity.StepConfig{
				Predicate:      &entity.Predicate{Field: "answer_1", Op: entity.PredicateMatches, Value: `^\S+@\S+$`},
				FailureMessage: "That is not an email address.",
			}},
		generateStep("write", 3, "Write to {{answer_1}}", "check"),
	}}
	data := entity.NewCollectedData()
	state := start(t, h, assistant, data)

	_, err := h.turn(t, state, &data, "")
	require.NoError(t, err)

	run, err := h.turn(t, state, &data, "not an email")
	require.NoError(t, err)
	assert.Contains(t, run.Writer.Text(), "That is not an email address.")
	assert.Contains(t, run.Writer.Text(), "What is your email?")
	assert.Equal(t, 0, state.CurrentStepIndex)
	assert.True(t, state.AwaitingInput)
	assert.False(t, data.Has("answer_1"))
	assert.Equal(t, entity.StepPending, state.StepStatus["ask"])
	assert.Equal(t, entity.StepPending, state.StepStatus["check"])

	_, err = h.turn(t, state, &data, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, entity.WorkflowCompleted, state.Status)
	assert.Equal(t, 1, h.generator.calls)
}

func TestExecutor_ConditionalJumps(t *testing.T) {
	h := newHarness(t)
	assistant := &entity.Assistant{Steps: []entity.StepDef{
		collectStep("ask", 1, "Formal or casual?"),
		{Id: "branch", Order: 2, Name: "branch", Kind: entity.StepKindConditional,
			Config: entity.StepConfig{
				Predicate: &entity.Predicate{Field: "answer_1", Op: entity.PredicateEquals, Value: "formal"},
				OnTrue:    "formal",
			}},
		{Id: "casual", Order: 3, Name: "casual", Kind: entity.StepKindProcess,
			Config: entity.StepConfig{PromptTemplate: "hey"}},
		{Id: "formal", Order: 4, Name: "formal", Kind: entity.StepKindProcess,
			Config: entity.StepConfig{PromptTemplate: "Dear reader"}},
	}}

	t.Run("true branch skips ahead", func(t *testing.T) {
		data := entity.NewCollectedData()
		state := start(t, h, assistant, data)
		_, err := h.turn(t, state, &data, "")
		require.NoError(t, err)

		run, err := h.turn(t, state, &data, "Formal")
		require.NoError(t, err)
		assert.Equal(t, entity.WorkflowCompleted, state.Status)
		assert.Equal(t, "Dear reader", run.Artifacts["formal"])
		assert.NotContains(t, run.Artifacts, "casual")
		assert.Equal(t, entity.StepPending, state.StepStatus["casual"])
	})

	t.Run("false branch falls through", func(t *testing.T) {
		data := entity.NewCollectedData()
		state := start(t, h, assistant, data)
		_, err := h.turn(t, state, &data, "")
		require.NoError(t, err)

		run, err := h.turn(t, state, &data, "casual")
		require.NoError(t, err)
		assert.Equal(t, "hey", run.Artifacts["casual"])
		assert.Equal(t, "Dear reader", run.Artifacts["formal"])
	})
}

func TestExecutor_JumpOverDependencyIsMissingDependency(t *testing.T) {
	h := newHarness(t)
	assistant := &entity.Assistant{Steps: []entity.StepDef{
		{Id: "branch", Order: 1, Name: "branch", Kind: entity.StepKindConditional,
			Config: entity.StepConfig{
				Predicate: &entity.Predicate{Field: "flag", Op: entity.PredicateNotExists},
				OnTrue:    "use",
			}},
		{Id: "make", Order: 2, Name: "make", Kind: entity.StepKindProcess,
			Config: entity.StepConfig{PromptTemplate: "made"}},
		{Id: "use", Order: 3, Name: "use", Kind: entity.StepKindProcess, Dependencies: []string{"make"},
			Config: entity.StepConfig{PromptTemplate: "{{make}}"}},
	}}
	data := entity.NewCollectedData()
	state := start(t, h, assistant, data)

	_, err := h.turn(t, state, &data, "")
	assert.ErrorIs(t, err, rag.ErrMissingDependency)
	assert.Equal(t, entity.StepPending, state.StepStatus["use"])
}

func TestExecutor_GenerationFailureLeavesStepPending(t *testing.T) {
	h := newHarness(t)
	h.generator.err = rag.ErrGenerationTimeout
	data := entity.NewCollectedData()
	state := start(t, h, reportAssistant(), data)

	_, err := h.turn(t, state, &data, "")
	require.NoError(t, err)

	_, err = h.turn(t, state, &data, "sales\nthe board")
	assert.ErrorIs(t, err, rag.ErrGenerationTimeout)
	assert.Equal(t, entity.StepPending, state.StepStatus["write"])
	assert.Equal(t, entity.WorkflowInProgress, state.Status)
	assert.False(t, data.Has("write"))
}

func TestExecutor_LoopGuard(t *testing.T) {
	h := newHarness(t)
	assistant := &entity.Assistant{Steps: []entity.StepDef{
		{Id: "a", Order: 1, Name: "a", Kind: entity.StepKindConditional,
			Config: entity.StepConfig{Predicate: &entity.Predicate{Field: "x", Op: entity.PredicateNotExists}, OnTrue: "b"}},
		{Id: "b", Order: 2, Name: "b", Kind: entity.StepKindConditional,
			Config: entity.StepConfig{Predicate: &entity.Predicate{Field: "x", Op: entity.PredicateNotExists}, OnTrue: "a"}},
	}}
	data := entity.NewCollectedData()
	state := start(t, h, assistant, data)

	_, err := h.turn(t, state, &data, "")
	assert.ErrorIs(t, err, rag.ErrInvalidWorkflow)
}
