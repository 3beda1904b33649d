package service

import (
	"context"
	"sync"
	"testing"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/memory"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/rag/executor"
	"ai-assistant-be/pkg/rag/ragtest"
	"ai-assistant-be/pkg/rag/search"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	reportAsk  = "What is the report topic?"
	answerText = "Quarterly sales in Europe"
	reportText = "Sales grew in every European region this quarter."
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type env struct {
	store     *memory.Store
	sessions  *memory.SessionRepository
	locker    *memory.SessionLocker
	llm       *ragtest.FakeLLM
	embedder  *ragtest.HashEmbedder
	publisher *recordingPublisher
	pipeline  *executor.Pipeline
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:     memory.NewStore(),
		sessions:  memory.NewSessionRepository(0),
		locker:    memory.NewSessionLocker(),
		llm:       ragtest.NewFakeLLM(reportText),
		embedder:  ragtest.NewHashEmbedder(8),
		publisher: &recordingPublisher{},
	}
	retriever := search.NewRetriever(e.embedder, e.store.Chunks, logger.NewNopLogger())
	p, err := executor.NewPipeline(e.llm, retriever, executor.DefaultConfig(), logger.NewNopLogger())
	require.NoError(t, err)
	e.pipeline = p
	return e
}

func (e *env) reportAssistant(t *testing.T, owner uuid.UUID) *entity.Assistant {
	t.Helper()
	a := &entity.Assistant{
		Id: uuid.New(), OwnerId: owner, Name: "Report writer", Kind: "report",
		Steps: []entity.StepDef{
			{Id: "topic", Order: 1, Name: "Topic", Kind: entity.StepKindCollectInfo, Required: true,
				Config: entity.StepConfig{Questions: []string{reportAsk}}},
			{Id: "report", Order: 2, Name: "Report", Kind: entity.StepKindGenerate, Dependencies: []string{"topic"},
				Config: entity.StepConfig{PromptTemplate: "Write a short report about {{answer_1}}."}},
		},
	}
	require.NoError(t, e.store.Assistants.Create(context.Background(), a))
	return a
}
