package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/rag/ragtest"
	"ai-assistant-be/pkg/rag/stream"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) chatbot(options ChatbotOptions) IChatbotService {
	return NewChatbotService(e.store, e.sessions, e.locker, e.pipeline, e.publisher, options, logger.NewNopLogger())
}

func collect(frames *[]stream.Frame) stream.EmitFunc {
	return func(f stream.Frame) error {
		*frames = append(*frames, f)
		return nil
	}
}

func TestChatbotService_WorkflowAcrossTurns(t *testing.T) {
	e := newEnv(t)
	svc := e.chatbot(ChatbotOptions{})
	ctx := context.Background()
	user := uuid.New()
	assistant := e.reportAssistant(t, uuid.New())

	var frames []stream.Frame
	first, err := svc.SendMessage(ctx, user, &dto.SendMessageRequest{AssistantId: assistant.Id, Message: "create a report"}, collect(&frames))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ChatSessionId)
	assert.Equal(t, reportAsk, first.Reply)
	assert.Equal(t, string(entity.WorkflowInProgress), first.WorkflowStatus)
	assert.Equal(t, "create a report", first.ChatSessionTitle)
	assert.Equal(t, stream.FrameDone, frames[len(frames)-1].Type)

	second, err := svc.SendMessage(ctx, user, &dto.SendMessageRequest{ChatSessionId: first.ChatSessionId, Message: answerText}, nil)
	require.NoError(t, err)
	assert.Equal(t, reportText, second.Reply)
	assert.Equal(t, string(entity.WorkflowCompleted), second.WorkflowStatus)

	completed := e.publisher.ofType(events.TypeWorkflowCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, map[string]string{"report": reportText}, completed[0].Payload()["artifacts"])
	assert.Equal(t, user.String(), completed[0].Payload()["user_id"])

	hist, err := svc.GetChatHistory(ctx, user, first.ChatSessionId)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 4)
	roles := []string{hist.Messages[0].Role, hist.Messages[1].Role, hist.Messages[2].Role, hist.Messages[3].Role}
	assert.Equal(t, []string{constant.ChatMessageRoleUser, constant.ChatMessageRoleAssistant, constant.ChatMessageRoleUser, constant.ChatMessageRoleAssistant}, roles)
	assert.Equal(t, answerText, hist.Collected["answer_1"])
	assert.Equal(t, string(entity.WorkflowCompleted), hist.Session.WorkflowStatus)
}

func TestChatbotService_ResetClearsWorkflow(t *testing.T) {
	e := newEnv(t)
	svc := e.chatbot(ChatbotOptions{})
	ctx := context.Background()
	user := uuid.New()
	assistant := e.reportAssistant(t, uuid.New())

	res, err := svc.SendMessage(ctx, user, &dto.SendMessageRequest{AssistantId: assistant.Id, Message: "create a report"}, nil)
	require.NoError(t, err)

	reset, err := svc.ResetSession(ctx, user, res.ChatSessionId)
	require.NoError(t, err)
	assert.Empty(t, reset.WorkflowStatus)

	hist, err := svc.GetChatHistory(ctx, user, res.ChatSessionId)
	require.NoError(t, err)
	assert.Empty(t, hist.Collected)
	assert.Len(t, hist.Messages, 2, "reset keeps the transcript")
}

func TestChatbotService_FailedTurnIsRecorded(t *testing.T) {
	e := newEnv(t)
	e.llm.FailStream(ragtest.ErrInjected)
	svc := e.chatbot(ChatbotOptions{})
	ctx := context.Background()
	user := uuid.New()
	assistant := &entity.Assistant{Id: uuid.New(), OwnerId: uuid.New(), Name: "Helpdesk", Kind: "qa"}
	require.NoError(t, e.store.Assistants.Create(ctx, assistant))

	res, err := svc.SendMessage(ctx, user, &dto.SendMessageRequest{AssistantId: assistant.Id, Message: "What is X?"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, constant.ErrorCodeGeneration, res.ErrorCode)

	hist, err := svc.GetChatHistory(ctx, user, res.ChatSessionId)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 2)
	assert.True(t, hist.Messages[1].Failed)
	assert.Empty(t, e.publisher.ofType(events.TypeWorkflowCompleted))
}

func TestChatbotService_Errors(t *testing.T) {
	e := newEnv(t)
	svc := e.chatbot(ChatbotOptions{LockTimeout: 20 * time.Millisecond})
	ctx := context.Background()
	owner := uuid.New()
	assistant := e.reportAssistant(t, uuid.New())

	created, err := svc.CreateSession(ctx, owner, &dto.CreateSessionRequest{AssistantId: assistant.Id})
	require.NoError(t, err)

	t.Run("unknown assistant", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, owner, &dto.CreateSessionRequest{AssistantId: uuid.New()})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := svc.GetChatHistory(ctx, owner, uuid.New())
		assert.ErrorIs(t, err, contract.ErrNotFound)
	})

	t.Run("foreign session", func(t *testing.T) {
		_, err := svc.SendMessage(ctx, uuid.New(), &dto.SendMessageRequest{ChatSessionId: created.Id, Message: "hi"}, nil)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("busy session", func(t *testing.T) {
		unlock, err := e.locker.Lock(ctx, created.Id)
		require.NoError(t, err)
		defer unlock()

		_, err = svc.SendMessage(ctx, owner, &dto.SendMessageRequest{ChatSessionId: created.Id, Message: "hi"}, nil)
		assert.ErrorIs(t, err, contract.ErrLockNotAcquired)
		assert.Equal(t, 0, e.llm.StreamCalls())
	})
}

func TestChatbotService_ListSessions(t *testing.T) {
	e := newEnv(t)
	svc := e.chatbot(ChatbotOptions{})
	ctx := context.Background()
	user := uuid.New()
	assistant := e.reportAssistant(t, uuid.New())

	for i := 0; i < 2; i++ {
		_, err := svc.CreateSession(ctx, user, &dto.CreateSessionRequest{AssistantId: assistant.Id})
		require.NoError(t, err)
	}
	_, err := svc.CreateSession(ctx, uuid.New(), &dto.CreateSessionRequest{AssistantId: assistant.Id})
	require.NoError(t, err)

	sessions, err := svc.GetAllSessions(ctx, user)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.Equal(t, constant.DefaultSessionTitle, sessions[0].Title)
}

func TestChatbotService_ReusesSessionPerAssistant(t *testing.T) {
	e := newEnv(t)
	svc := e.chatbot(ChatbotOptions{})
	ctx := context.Background()
	user := uuid.New()
	assistant := e.reportAssistant(t, uuid.New())
	other := e.reportAssistant(t, uuid.New())

	first, err := svc.SendMessage(ctx, user, &dto.SendMessageRequest{AssistantId: assistant.Id, Message: "create a report"}, nil)
	require.NoError(t, err)

	second, err := svc.SendMessage(ctx, user, &dto.SendMessageRequest{AssistantId: assistant.Id, Message: answerText}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ChatSessionId, second.ChatSessionId)
	assert.Equal(t, string(entity.WorkflowCompleted), second.WorkflowStatus)

	elsewhere, err := svc.SendMessage(ctx, user, &dto.SendMessageRequest{AssistantId: other.Id, Message: "create a report"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ChatSessionId, elsewhere.ChatSessionId)

	stranger, err := svc.SendMessage(ctx, uuid.New(), &dto.SendMessageRequest{AssistantId: assistant.Id, Message: "create a report"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ChatSessionId, stranger.ChatSessionId)

	sessions, err := svc.GetAllSessions(ctx, user)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestChatbotService_ConcurrentFirstMessagesShareSession(t *testing.T) {
	e := newEnv(t)
	svc := e.chatbot(ChatbotOptions{LockTimeout: 5 * time.Second})
	ctx := context.Background()
	user := uuid.New()
	assistant := e.reportAssistant(t, uuid.New())

	ids := make([]uuid.UUID, 4)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.SendMessage(ctx, user, &dto.SendMessageRequest{AssistantId: assistant.Id, Message: "What is X?"}, nil)
			if assert.NoError(t, err) {
				ids[i] = res.ChatSessionId
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	sessions, err := svc.GetAllSessions(ctx, user)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestChatbotService_ConcurrentTurnsOnOneSession(t *testing.T) {
	e := newEnv(t)
	e.llm.SlowDown(2 * time.Millisecond)
	svc := e.chatbot(ChatbotOptions{LockTimeout: 5 * time.Second})
	ctx := context.Background()
	user := uuid.New()
	assistant := e.reportAssistant(t, uuid.New())

	started, err := svc.SendMessage(ctx, user, &dto.SendMessageRequest{AssistantId: assistant.Id, Message: "create a report"}, nil)
	require.NoError(t, err)
	sessionId := started.ChatSessionId

	answers := []string{"Pricing", "Hiring"}
	var wg sync.WaitGroup
	for _, answer := range answers {
		wg.Add(1)
		go func(answer string) {
			defer wg.Done()
			_, err := svc.SendMessage(ctx, user, &dto.SendMessageRequest{ChatSessionId: sessionId, Message: answer}, nil)
			assert.NoError(t, err)
		}(answer)
	}
	wg.Wait()

	// One turn completed the workflow; the other ran against the completed
	// state and did not complete it again.
	assert.Len(t, e.publisher.ofType(events.TypeWorkflowCompleted), 1)

	s, err := e.sessions.FindById(ctx, sessionId)
	require.NoError(t, err)
	require.NotNil(t, s.Workflow)
	assert.Equal(t, entity.WorkflowCompleted, s.Workflow.Status)
	assert.Equal(t, 1, s.Workflow.CurrentStepIndex)
	assert.Equal(t, entity.StepCompleted, s.Workflow.StepStatus["topic"])
	assert.Equal(t, entity.StepCompleted, s.Workflow.StepStatus["report"])
	assert.Contains(t, answers, s.Data.Values["answer_1"])
	assert.Equal(t, reportText, s.Data.Values["report"])

	hist, err := svc.GetChatHistory(ctx, user, sessionId)
	require.NoError(t, err)
	assert.Len(t, hist.Messages, 6)
}
