package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag"
	ragcontext "ai-assistant-be/pkg/rag/context"
	"ai-assistant-be/pkg/rag/prompt"
	"ai-assistant-be/pkg/rag/search"
	"ai-assistant-be/pkg/rag/stream"
	"ai-assistant-be/pkg/store"
)

type Retriever interface {
	Retrieve(ctx context.Context, req search.RetrievalRequest) (*search.RetrievalResult, error)
}

type Generator interface {
	Stream(ctx context.Context, messages []llm.Message, w *stream.Writer, timeout time.Duration, opts ...llm.Option) (string, error)
}

// Deps are the collaborators shared by the built-in handlers.
type Deps struct {
	Retriever Retriever
	Generator Generator
	Assembler *ragcontext.Assembler
	Logger    logger.ILogger
}

// Handlers returns one handler per step kind.
func Handlers(deps Deps) []StepHandler {
	if deps.Assembler == nil {
		deps.Assembler = ragcontext.NewAssembler()
	}
	return []StepHandler{
		&collectInfoHandler{},
		&generateHandler{deps: deps},
		&searchHandler{deps: deps},
		&processHandler{},
		&validateHandler{},
		&conditionalHandler{},
	}
}

type collectInfoHandler struct{}

func (h *collectInfoHandler) Kind() entity.StepKind { return entity.StepKindCollectInfo }

// Execute asks every unanswered item of the step at once. A reply with one
// line per pending item fills them in order; anything else answers the
// first pending item. Optional steps accept a skip word for all of them.
func (h *collectInfoHandler) Execute(ctx context.Context, step entity.StepDef, run *Run) (StepResult, error) {
	keys := run.State.InputKeys[step.Id]
	labels := append(append([]string(nil), step.Config.Questions...), fieldLabels(step.Config.Fields)...)
	if len(keys) != len(labels) {
		return StepResult{}, fmt.Errorf("step %q: %d input keys for %d items", step.Id, len(keys), len(labels))
	}

	pending := pendingItems(keys, *run.Data)
	if len(pending) == 0 {
		return StepResult{Outcome: OutcomeCompleted}, nil
	}

	if answer, ok := run.ConsumeAnswer(); ok {
		answer = strings.TrimSpace(answer)
		switch {
		case !step.Required && isSkip(answer):
			for _, i := range pending {
				run.Data.Set(keys[i], "")
			}
		default:
			lines := nonEmptyLines(answer)
			if len(pending) > 1 && len(lines) == len(pending) {
				for n, i := range pending {
					run.Data.Set(keys[i], lines[n])
				}
			} else if answer != "" {
				run.Data.Set(keys[pending[0]], answer)
			}
		}
		if run.State.Answers == nil {
			run.State.Answers = make(map[string]string)
		}
		for _, i := range pending {
			if v, ok := run.Data.Values[keys[i]]; ok {
				run.State.Answers[keys[i]] = v
			}
		}
		pending = pendingItems(keys, *run.Data)
		if len(pending) == 0 {
			return StepResult{Outcome: OutcomeCompleted}, nil
		}
	}

	asked := make([]string, 0, len(pending))
	for _, i := range pending {
		asked = append(asked, labels[i])
	}
	if err := run.Writer.Message(formatQuestions(asked)); err != nil {
		return StepResult{}, err
	}
	run.Prompts = append(run.Prompts, asked...)
	return StepResult{Outcome: OutcomeAwaitInput}, nil
}

func pendingItems(keys []string, data entity.CollectedData) []int {
	var pending []int
	for i, k := range keys {
		if !data.Has(k) {
			pending = append(pending, i)
		}
	}
	return pending
}

func fieldLabels(fields []string) []string {
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = fmt.Sprintf(constant.MessageFieldPrompt, strings.ReplaceAll(f, "_", " "))
	}
	return labels
}

func formatQuestions(questions []string) string {
	if len(questions) == 1 {
		return questions[0]
	}
	var b strings.Builder
	b.WriteString(constant.MessageQuestionsIntro)
	for i, q := range questions {
		fmt.Fprintf(&b, "\n%d. %s", i+1, q)
	}
	return b.String()
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func isSkip(answer string) bool {
	for _, w := range constant.SkipWords {
		if strings.EqualFold(answer, w) {
			return true
		}
	}
	return false
}

type generateHandler struct {
	deps Deps
}

func (h *generateHandler) Kind() entity.StepKind { return entity.StepKindGenerate }

func (h *generateHandler) Execute(ctx context.Context, step entity.StepDef, run *Run) (StepResult, error) {
	instruction, err := Render(step.Config.PromptTemplate, *run.Data)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %q: %w", step.Id, err)
	}

	reference := ""
	if step.Config.RetrievalAware {
		_ = run.Writer.Status(constant.StreamStatusRetrieving)
		chunks := retrieve(ctx, h.deps, run, instruction, step.Config.Tags)
		reference = h.deps.Assembler.Format(chunks, run.Settings.ContextBudget)
	}

	messages := prompt.NewBuilder(run.Settings.SystemPrompt, run.Settings.History).Step(instruction, reference)
	_ = run.Writer.Status(constant.StreamStatusGenerating)
	text, err := h.deps.Generator.Stream(ctx, messages, run.Writer, run.Settings.GenerationTimeout, run.Settings.ModelOptions...)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %q: %w", step.Id, err)
	}

	run.Data.Set(step.Output(), text)
	run.Artifacts[step.Output()] = text
	return StepResult{Outcome: OutcomeCompleted}, nil
}

type searchHandler struct {
	deps Deps
}

func (h *searchHandler) Kind() entity.StepKind { return entity.StepKindSearch }

func (h *searchHandler) Execute(ctx context.Context, step entity.StepDef, run *Run) (StepResult, error) {
	query, err := Render(step.Config.Query, *run.Data)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %q: %w", step.Id, err)
	}

	_ = run.Writer.Status(constant.StreamStatusRetrieving)
	chunks := retrieve(ctx, h.deps, run, query, step.Config.Tags)
	snippets := make([]string, 0, len(chunks))
	for i, c := range chunks {
		snippets = append(snippets, ragcontext.Marker(i+1, c)+"\n"+c.Chunk.Text)
	}
	run.Data.SetSnippets(step.Output(), snippets)
	return StepResult{Outcome: OutcomeCompleted}, nil
}

// retrieve never fails the step: an empty ladder or an unavailable
// embedder both yield no chunks.
func retrieve(ctx context.Context, deps Deps, run *Run, query string, stepTags map[string]string) []store.ScoredChunk {
	if deps.Retriever == nil {
		return nil
	}
	result, err := deps.Retriever.Retrieve(ctx, search.RetrievalRequest{
		Query:   query,
		OwnerId: run.Settings.OwnerId,
		Tags:    mergeTags(run.Settings.Tags, stepTags),
		Ladder:  run.Settings.Ladder,
		K:       run.Settings.TopK,
	})
	if err != nil {
		if !search.IsNoMatch(err) && deps.Logger != nil {
			deps.Logger.Warn("Workflow", "Retrieval unavailable, continuing without reference", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil
	}
	run.addSources(ragcontext.Sources(result.Chunks))
	return result.Chunks
}

func mergeTags(base, extra map[string]string) map[string]string {
	if len(base)+len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

type processHandler struct{}

func (h *processHandler) Kind() entity.StepKind { return entity.StepKindProcess }

// Execute renders the template into the output key without a model call.
func (h *processHandler) Execute(ctx context.Context, step entity.StepDef, run *Run) (StepResult, error) {
	out, err := Render(step.Config.PromptTemplate, *run.Data)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %q: %w", step.Id, err)
	}
	run.Data.Set(step.Output(), out)
	run.Artifacts[step.Output()] = out
	return StepResult{Outcome: OutcomeCompleted}, nil
}

type validateHandler struct{}

func (h *validateHandler) Kind() entity.StepKind { return entity.StepKindValidate }

// Execute sends the user back to the retry step when the predicate fails.
// The retry step's answers are cleared so it asks again.
func (h *validateHandler) Execute(ctx context.Context, step entity.StepDef, run *Run) (StepResult, error) {
	ok, err := Evaluate(step.Config.Predicate, *run.Data)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %q: %w", step.Id, err)
	}
	if ok {
		return StepResult{Outcome: OutcomeCompleted}, nil
	}

	target := step.Config.RetryStep
	if target == "" {
		target = precedingCollect(run.State.Plan, run.State.IndexOf(step.Id))
	}
	if target == "" {
		return StepResult{}, fmt.Errorf("%w: validate step %q has nothing to retry", rag.ErrInvalidWorkflow, step.Id)
	}

	msg := step.Config.FailureMessage
	if msg == "" {
		msg = constant.MessageValidationFailed
	}
	if err := run.Writer.Message(msg); err != nil {
		return StepResult{}, err
	}
	for _, k := range run.State.InputKeys[target] {
		run.Data.Delete(k)
		delete(run.State.Answers, k)
	}
	return StepResult{Outcome: OutcomeCompleted, Next: target}, nil
}

type conditionalHandler struct{}

func (h *conditionalHandler) Kind() entity.StepKind { return entity.StepKindConditional }

func (h *conditionalHandler) Execute(ctx context.Context, step entity.StepDef, run *Run) (StepResult, error) {
	ok, err := Evaluate(step.Config.Predicate, *run.Data)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %q: %w", step.Id, err)
	}
	next := step.Config.OnFalse
	if ok {
		next = step.Config.OnTrue
	}
	return StepResult{Outcome: OutcomeCompleted, Next: next}, nil
}
