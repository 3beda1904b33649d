package service

import (
	"context"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/executor"
	"ai-assistant-be/pkg/rag/history"
	"ai-assistant-be/pkg/rag/message"
	"ai-assistant-be/pkg/rag/session"
	"ai-assistant-be/pkg/rag/stream"

	"github.com/google/uuid"
)

const (
	chatbotModule = "ChatbotService"

	// historyPageSize bounds the messages returned by the history endpoint.
	historyPageSize = 500
)

type IChatbotService interface {
	CreateSession(ctx context.Context, userId uuid.UUID, request *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionResponse, error)
	GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.ChatHistoryResponse, error)
	ResetSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.SessionResponse, error)
	// SendMessage runs one turn. Frames go to emit while the turn runs.
	SendMessage(ctx context.Context, userId uuid.UUID, request *dto.SendMessageRequest, emit stream.EmitFunc) (*dto.SendMessageResponse, error)
}

type ChatbotOptions struct {
	HistoryLimit int
	LockTimeout  time.Duration
}

type chatbotService struct {
	uowFactory     unitofwork.RepositoryFactory
	sessionManager *session.Manager
	locker         contract.SessionLocker
	pipeline       *executor.Pipeline
	messageFactory *message.Factory
	publisher      events.Publisher
	options        ChatbotOptions
	logger         logger.ILogger
}

func NewChatbotService(
	uowFactory unitofwork.RepositoryFactory,
	sessions contract.ChatSessionRepository,
	locker contract.SessionLocker,
	pipeline *executor.Pipeline,
	publisher events.Publisher,
	options ChatbotOptions,
	logger logger.ILogger,
) IChatbotService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if options.LockTimeout <= 0 {
		options.LockTimeout = 2 * time.Minute
	}
	return &chatbotService{
		uowFactory:     uowFactory,
		sessionManager: session.NewManager(sessions),
		locker:         locker,
		pipeline:       pipeline,
		messageFactory: message.NewFactory(),
		publisher:      publisher,
		options:        options,
		logger:         logger,
	}
}

func (cs *chatbotService) CreateSession(ctx context.Context, userId uuid.UUID, request *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	if _, err := cs.findAssistant(ctx, request.AssistantId); err != nil {
		return nil, err
	}

	s, err := cs.sessionManager.Create(ctx, userId, request.AssistantId)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(s), nil
}

func (cs *chatbotService) GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionResponse, error) {
	sessions, err := cs.sessionManager.List(ctx, userId)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		res = append(res, toSessionResponse(s))
	}
	return res, nil
}

func (cs *chatbotService) GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.ChatHistoryResponse, error) {
	s, err := cs.sessionManager.Load(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	chats, err := uow.ChatMessageRepository().FindLastBySessionId(ctx, sessionId, historyPageSize)
	if err != nil {
		return nil, err
	}

	messages := make([]*dto.ChatMessageResponse, 0, len(chats))
	for _, c := range chats {
		messages = append(messages, &dto.ChatMessageResponse{
			Id:         c.Id,
			Role:       c.Role,
			Chat:       c.Chat,
			IntentKind: c.IntentKind,
			Sources:    c.Sources,
			Failed:     c.Failed,
			CreatedAt:  c.CreatedAt,
		})
	}

	return &dto.ChatHistoryResponse{
		Session:   *toSessionResponse(s),
		Messages:  messages,
		Collected: s.Data.Values,
	}, nil
}

func (cs *chatbotService) ResetSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.SessionResponse, error) {
	unlock, err := cs.lock(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := cs.sessionManager.Load(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}
	if err := cs.sessionManager.Reset(ctx, s); err != nil {
		return nil, err
	}

	cs.logger.Info(chatbotModule, "Session reset", map[string]interface{}{"session_id": sessionId})
	return toSessionResponse(s), nil
}

func (cs *chatbotService) SendMessage(ctx context.Context, userId uuid.UUID, request *dto.SendMessageRequest, emit stream.EmitFunc) (*dto.SendMessageResponse, error) {
	if request.ChatSessionId == uuid.Nil {
		sessionId, err := cs.resolveSession(ctx, userId, request.AssistantId)
		if err != nil {
			return nil, err
		}
		request.ChatSessionId = sessionId
	}

	unlock, err := cs.lock(ctx, request.ChatSessionId)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := cs.sessionManager.Load(ctx, userId, request.ChatSessionId)
	if err != nil {
		return nil, err
	}
	assistant, err := cs.findAssistant(ctx, s.AssistantId)
	if err != nil {
		return nil, err
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	hist, err := history.NewLoader(uow.ChatMessageRepository(), cs.options.HistoryLimit).Load(ctx, s.Id)
	if err != nil {
		cs.logger.Warn(chatbotModule, "Failed to load history, continuing without it", map[string]interface{}{"session_id": s.Id, "error": err.Error()})
		hist = []llm.Message{}
	}

	wasCompleted := s.Workflow != nil && s.Workflow.Status == entity.WorkflowCompleted
	now := time.Now()

	result, err := cs.pipeline.HandleTurn(ctx, executor.TurnInput{
		Message:   request.Message,
		Session:   s,
		Assistant: assistant,
		History:   hist,
	}, emit)
	if err != nil {
		return nil, err
	}

	s.Workflow = result.Workflow
	s.Data = result.Data
	s.UpdatedAt = &now
	cs.sessionManager.TitleFrom(s, request.Message)
	if err := cs.sessionManager.Save(ctx, s); err != nil {
		return nil, err
	}

	if err := cs.saveMessages(ctx, uow, s.Id, request.Message, result, now); err != nil {
		return nil, err
	}

	if !wasCompleted && !result.Failed && result.Workflow != nil && result.Workflow.Status == entity.WorkflowCompleted {
		cs.publishCompleted(ctx, s, result)
	}

	res := &dto.SendMessageResponse{
		ChatSessionId:    s.Id,
		ChatSessionTitle: s.Title,
		Reply:            result.FinalText,
		Intent:           string(result.Intent.Kind),
		Sources:          result.Sources,
		Failed:           result.Failed,
		ErrorCode:        result.ErrorCode,
	}
	if result.Workflow != nil {
		res.WorkflowStatus = string(result.Workflow.Status)
	}
	return res, nil
}

// resolveSession picks up the user's session with the assistant, creating it
// on first contact. The pair lock keeps two first messages from creating two.
func (cs *chatbotService) resolveSession(ctx context.Context, userId, assistantId uuid.UUID) (uuid.UUID, error) {
	if _, err := cs.findAssistant(ctx, assistantId); err != nil {
		return uuid.Nil, err
	}

	unlock, err := cs.lock(ctx, session.PairKey(userId, assistantId))
	if err != nil {
		return uuid.Nil, err
	}
	defer unlock()

	s, err := cs.sessionManager.FindOrCreate(ctx, userId, assistantId)
	if err != nil {
		return uuid.Nil, err
	}
	return s.Id, nil
}

func (cs *chatbotService) lock(ctx context.Context, sessionId uuid.UUID) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, cs.options.LockTimeout)
	defer cancel()

	unlock, err := cs.locker.Lock(lockCtx, sessionId)
	if err != nil {
		cs.logger.Warn(chatbotModule, "Session is busy", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
		return nil, err
	}
	return unlock, nil
}

func (cs *chatbotService) findAssistant(ctx context.Context, id uuid.UUID) (*entity.Assistant, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	assistant, err := uow.AssistantRepository().FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return nil, ErrNotFound
	}
	return assistant, nil
}

func (cs *chatbotService) saveMessages(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, text string, result *executor.TurnResult, now time.Time) error {
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	userMessage := cs.messageFactory.UserMessage(sessionId, text, now)
	if err := uow.ChatMessageRepository().Create(ctx, userMessage); err != nil {
		return err
	}

	reply := cs.messageFactory.AssistantMessage(sessionId, result.FinalText, string(result.Intent.Kind), result.Sources, result.Failed, now)
	if err := uow.ChatMessageRepository().Create(ctx, reply); err != nil {
		return err
	}

	return uow.Commit()
}

// publishCompleted is best effort: the turn already succeeded for the user.
func (cs *chatbotService) publishCompleted(ctx context.Context, s *entity.ChatSession, result *executor.TurnResult) {
	artifacts := make(map[string]string)
	for _, step := range result.Workflow.Plan {
		if v, ok := s.Data.Values[step.Output()]; ok && producesArtifact(step.Kind) {
			artifacts[step.Id] = v
		}
	}

	evt := events.NewWorkflowCompleted(s.Id.String(), s.UserId.String(), s.AssistantId.String(), artifacts)
	if err := cs.publisher.Publish(ctx, evt); err != nil {
		cs.logger.Warn(chatbotModule, "Failed to publish workflow completion", map[string]interface{}{
			"session_id": s.Id,
			"error":      err.Error(),
		})
	}
}

func producesArtifact(kind entity.StepKind) bool {
	return kind == entity.StepKindGenerate || kind == entity.StepKindProcess
}

func toSessionResponse(s *entity.ChatSession) *dto.SessionResponse {
	res := &dto.SessionResponse{
		Id:          s.Id,
		AssistantId: s.AssistantId,
		Title:       s.Title,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.Workflow != nil {
		res.WorkflowStatus = string(s.Workflow.Status)
		if step := s.Workflow.CurrentStep(); step != nil {
			res.CurrentStep = step.Id
		}
	}
	return res
}
