package executor

import (
	"context"
	"errors"
	"sort"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag"
	ragcontext "ai-assistant-be/pkg/rag/context"
	"ai-assistant-be/pkg/rag/intent"
	"ai-assistant-be/pkg/rag/prompt"
	"ai-assistant-be/pkg/rag/response"
	"ai-assistant-be/pkg/rag/search"
	"ai-assistant-be/pkg/rag/stream"
	"ai-assistant-be/pkg/rag/workflow"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const logModule = "Pipeline"

type TurnInput struct {
	Message   string
	Session   *entity.ChatSession
	Assistant *entity.Assistant
	// History is the recent conversation, oldest first, without Message.
	History []llm.Message
}

// TurnResult is the state the caller persists after a turn. On failure
// Workflow and Data are the session's state from before the turn.
type TurnResult struct {
	FinalText string
	Workflow  *entity.WorkflowState
	Data      entity.CollectedData
	Intent    intent.Intent
	Sources   []string
	// Artifacts are the outputs of generate and process steps run this turn.
	Artifacts map[string]string
	// Prompts are the questions asked this turn.
	Prompts   []string
	Failed    bool
	ErrorCode string
}

// DoneData is attached to the done frame.
type DoneData struct {
	Intent           intent.Kind           `json:"intent"`
	WorkflowStatus   entity.WorkflowStatus `json:"workflow_status,omitempty"`
	CurrentStep      string                `json:"current_step,omitempty"`
	CurrentStepIndex int                   `json:"current_step_index"`
	Sources          []string              `json:"sources,omitempty"`
}

// Pipeline handles one user message: classify, then either answer from
// the knowledge base or drive the assistant's workflow.
type Pipeline struct {
	classifier *intent.Classifier
	planner    *workflow.Planner
	executor   *workflow.Executor
	retriever  workflow.Retriever
	generator  *response.Generator
	assembler  *ragcontext.Assembler
	config     Config
	logger     logger.ILogger
	tracer     trace.Tracer
}

func NewPipeline(
	llmProvider llm.LLMProvider,
	retriever workflow.Retriever,
	cfg Config,
	logger logger.ILogger,
) (*Pipeline, error) {
	if llmProvider == nil || retriever == nil {
		return nil, errors.New("pipeline needs a model and a retriever")
	}

	generator := response.NewGenerator(llmProvider, logger)
	assembler := ragcontext.NewAssembler()
	exec, err := workflow.NewExecutor(logger, workflow.Handlers(workflow.Deps{
		Retriever: retriever,
		Generator: generator,
		Assembler: assembler,
		Logger:    logger,
	})...)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		classifier: intent.NewClassifier(llmProvider, cfg.ClassificationTimeout, logger),
		planner:    workflow.NewPlanner(),
		executor:   exec,
		retriever:  retriever,
		generator:  generator,
		assembler:  assembler,
		config:     cfg,
		logger:     logger,
		tracer:     otel.Tracer("ai-assistant-be/pkg/rag/executor"),
	}, nil
}

// HandleTurn streams the reply through emit and returns the state to
// persist. Exactly one terminal frame is sent. Turn failures are reported
// as an error frame and TurnResult.Failed; the returned error is reserved
// for unusable input.
func (p *Pipeline) HandleTurn(ctx context.Context, in TurnInput, emit stream.EmitFunc) (*TurnResult, error) {
	if in.Session == nil || in.Assistant == nil {
		return nil, errors.New("turn needs a session and an assistant")
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.turn", trace.WithAttributes(
		attribute.String("session.id", in.Session.Id.String()),
		attribute.String("assistant.id", in.Assistant.Id.String()),
	))
	defer span.End()

	start := time.Now()
	w := stream.NewWriter(emit)
	cfg := ConfigFor(p.config, in.Assistant)

	result := &TurnResult{
		Workflow:  in.Session.Workflow.Clone(),
		Data:      in.Session.Data.Clone(),
		Artifacts: make(map[string]string),
	}
	if result.Data.Values == nil {
		result.Data = entity.NewCollectedData()
	}

	err := w.Status(constant.StreamStatusProcessing)
	if err == nil {
		err = p.run(ctx, in, cfg, w, result)
	}
	if err != nil {
		p.fail(span, in, w, result, err)
		return result, nil
	}

	if result.Workflow != nil && result.Workflow.Status == entity.WorkflowCompleted &&
		result.Intent.Kind != intent.KindQuestion && w.Text() == "" {
		_ = w.Message(constant.MessageWorkflowCompleted)
	}

	result.FinalText = w.Text()
	_ = w.Done(doneData(result))

	p.logger.Info(logModule, "Turn handled", map[string]interface{}{
		"session_id":  in.Session.Id.String(),
		"intent":      string(result.Intent.Kind),
		"source":      string(result.Intent.Source),
		"sources":     len(result.Sources),
		"elapsed_ms":  time.Since(start).Milliseconds(),
		"text_length": len(result.FinalText),
	})
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, in TurnInput, cfg Config, w *stream.Writer, result *TurnResult) error {
	result.Intent = p.classify(ctx, in, cfg, result)

	switch {
	case result.Intent.Kind == intent.KindContinue && result.Workflow.Active():
		answer := ""
		if result.Workflow.AwaitingInput {
			answer = in.Message
		}
		return p.execute(ctx, in, cfg, w, result, answer)

	case result.Intent.Kind == intent.KindWorkflow && in.Assistant.HasWorkflow():
		_, span := p.tracer.Start(ctx, "pipeline.plan")
		state, remaining, err := p.planner.Start(result.Intent, in.Assistant, result.Data)
		span.SetAttributes(attribute.Int("plan.remaining", len(remaining)))
		span.End()
		if err != nil {
			return err
		}
		if state == nil {
			return w.Message(constant.MessageWorkflowSatisfied)
		}
		result.Workflow = state
		return p.execute(ctx, in, cfg, w, result, "")

	default:
		sources, err := p.answer(ctx, in, cfg, w)
		result.Sources = sources
		return err
	}
}

func (p *Pipeline) classify(ctx context.Context, in TurnInput, cfg Config, result *TurnResult) intent.Intent {
	ctx, span := p.tracer.Start(ctx, "pipeline.classify")
	defer span.End()

	cctx := intent.ClassifyContext{
		AssistantName:   in.Assistant.Name,
		AssistantKind:   in.Assistant.Kind,
		HasWorkflow:     in.Assistant.HasWorkflow(),
		ActiveWorkflow:  result.Workflow.Active(),
		CollectedKeys:   collectedKeys(result.Data),
		History:         in.History,
		ConfidenceFloor: cfg.ConfidenceFloor,
		StrongMatch:     cfg.StrongMatch,
	}
	if cctx.ActiveWorkflow && result.Workflow.AwaitingInput {
		cctx.ActiveStep = result.Workflow.CurrentStep()
	}

	it := p.classifier.Classify(ctx, in.Message, cctx)
	span.SetAttributes(
		attribute.String("intent.kind", string(it.Kind)),
		attribute.String("intent.source", string(it.Source)),
		attribute.Float64("intent.confidence", it.Confidence),
	)
	return it
}

func (p *Pipeline) execute(ctx context.Context, in TurnInput, cfg Config, w *stream.Writer, result *TurnResult, answer string) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.execute")
	defer span.End()

	run := workflow.NewRun(result.Workflow, &result.Data, w, workflow.Settings{
		OwnerId:           in.Assistant.OwnerId,
		Tags:              cfg.Tags,
		Ladder:            cfg.Ladder,
		TopK:              cfg.TopK,
		ContextBudget:     cfg.ContextBudget,
		SystemPrompt:      cfg.SystemPrompt,
		History:           in.History,
		GenerationTimeout: cfg.GenerationTimeout,
		ModelOptions:      cfg.ModelOptions(),
	}, answer)

	err := p.executor.Advance(ctx, run)
	result.Prompts = run.Prompts
	result.Sources = run.Sources
	for k, v := range run.Artifacts {
		result.Artifacts[k] = v
	}
	if step := result.Workflow.CurrentStep(); step != nil {
		span.SetAttributes(attribute.String("workflow.step", step.Id))
	}
	span.SetAttributes(attribute.String("workflow.status", string(result.Workflow.Status)))
	return err
}

// answer runs a single retrieval and generation pass. No match and an
// unavailable embedder both fall back to general knowledge.
func (p *Pipeline) answer(ctx context.Context, in TurnInput, cfg Config, w *stream.Writer) ([]string, error) {
	_ = w.Status(constant.StreamStatusRetrieving)

	var sources []string
	reference := ""
	res, err := p.retriever.Retrieve(ctx, search.RetrievalRequest{
		Query:   in.Message,
		OwnerId: in.Assistant.OwnerId,
		Tags:    cfg.Tags,
		Ladder:  cfg.Ladder,
		K:       cfg.TopK,
	})
	switch {
	case err == nil:
		reference = p.assembler.Format(res.Chunks, cfg.ContextBudget)
		sources = ragcontext.Sources(res.Chunks)
	case search.IsNoMatch(err):
		p.logger.Info(logModule, "No reference material, answering from general knowledge", map[string]interface{}{
			"assistant_id": in.Assistant.Id.String(),
		})
	case errors.Is(err, rag.ErrEmbeddingFailed):
		p.logger.Warn(logModule, "Query embedding failed, answering without reference", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.generate")
	defer span.End()
	span.SetAttributes(attribute.Int("reference.length", len(reference)))

	messages := prompt.NewBuilder(cfg.SystemPrompt, in.History).Answer(in.Message, reference)
	_ = w.Status(constant.StreamStatusGenerating)
	if _, err := p.generator.Stream(ctx, messages, w, cfg.GenerationTimeout, cfg.ModelOptions()...); err != nil {
		return nil, err
	}
	return sources, nil
}

// fail restores the pre-turn state and closes the stream with an error
// frame. Content already pushed stays part of the final text.
func (p *Pipeline) fail(span trace.Span, in TurnInput, w *stream.Writer, result *TurnResult, err error) {
	code, message := ErrorFrame(err)

	details := map[string]interface{}{
		"session_id": in.Session.Id.String(),
		"code":       code,
		"error":      err.Error(),
	}
	if rag.IsFatal(err) {
		details["assistant_id"] = in.Assistant.Id.String()
		p.logger.Error(logModule, "Assistant misconfigured", details)
	} else {
		p.logger.Warn(logModule, "Turn failed", details)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, code)

	result.Workflow = in.Session.Workflow.Clone()
	result.Data = in.Session.Data.Clone()
	result.Artifacts = map[string]string{}
	result.Prompts = nil
	result.Failed = true
	result.ErrorCode = code
	result.FinalText = w.Text()
	_ = w.Fail(code, message)
}

// ErrorFrame maps a turn error to the code and polite message of its
// error frame.
func ErrorFrame(err error) (code, message string) {
	switch {
	case errors.Is(err, rag.ErrGenerationTimeout):
		return constant.ErrorCodeTimeout, constant.MessageGenerationTimeout
	case errors.Is(err, rag.ErrGenerationFailed):
		return constant.ErrorCodeGeneration, constant.MessageGenerationFailed
	case rag.IsFatal(err):
		return constant.ErrorCodeConfiguration, constant.MessageConfiguration
	}
	return constant.ErrorCodeInternal, constant.MessageInternal
}

func doneData(result *TurnResult) DoneData {
	d := DoneData{Intent: result.Intent.Kind, Sources: result.Sources}
	if wf := result.Workflow; wf != nil {
		d.WorkflowStatus = wf.Status
		d.CurrentStepIndex = wf.CurrentStepIndex
		if step := wf.CurrentStep(); step != nil {
			d.CurrentStep = step.Id
		}
	}
	return d
}

func collectedKeys(data entity.CollectedData) []string {
	keys := make([]string, 0, len(data.Values)+len(data.Snippets))
	for k := range data.Values {
		keys = append(keys, k)
	}
	for k := range data.Snippets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
