package service

import (
	"context"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/rag/access"
	"ai-assistant-be/pkg/rag/workflow"

	"github.com/google/uuid"
)

const assistantModule = "AssistantService"

type IAssistantService interface {
	Create(ctx context.Context, userId uuid.UUID, request *dto.AssistantRequest) (*dto.AssistantResponse, error)
	Update(ctx context.Context, userId uuid.UUID, request *dto.AssistantRequest) (*dto.AssistantResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.AssistantResponse, error)
	GetAll(ctx context.Context, userId uuid.UUID) ([]*dto.AssistantResponse, error)
}

type assistantService struct {
	uowFactory unitofwork.RepositoryFactory
	planner    *workflow.Planner
	verifier   *access.Verifier
	logger     logger.ILogger
}

func NewAssistantService(uowFactory unitofwork.RepositoryFactory, logger logger.ILogger) IAssistantService {
	return &assistantService{
		uowFactory: uowFactory,
		planner:    workflow.NewPlanner(),
		verifier:   access.NewVerifier(),
		logger:     logger,
	}
}

// Create rejects step lists the engine could not run, so a broken
// workflow never reaches a conversation.
func (s *assistantService) Create(ctx context.Context, userId uuid.UUID, request *dto.AssistantRequest) (*dto.AssistantResponse, error) {
	steps, err := s.planner.Validate(request.Steps)
	if err != nil {
		return nil, err
	}

	assistant := &entity.Assistant{
		Id:          uuid.New(),
		OwnerId:     userId,
		Name:        request.Name,
		Kind:        request.Kind,
		Description: request.Description,
		Steps:       steps,
		ModelConfig: request.ModelConfig,
		Retrieval:   request.Retrieval,
		CreatedAt:   time.Now(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.AssistantRepository().Create(ctx, assistant); err != nil {
		return nil, err
	}

	s.logger.Info(assistantModule, "Assistant created", map[string]interface{}{"assistant_id": assistant.Id, "steps": len(steps)})
	return toAssistantResponse(assistant), nil
}

// Update replaces the configuration. Sessions already in a workflow keep
// the plan they started with.
func (s *assistantService) Update(ctx context.Context, userId uuid.UUID, request *dto.AssistantRequest) (*dto.AssistantResponse, error) {
	steps, err := s.planner.Validate(request.Steps)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	assistant, err := s.owned(ctx, uow, userId, request.Id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	assistant.Name = request.Name
	assistant.Kind = request.Kind
	assistant.Description = request.Description
	assistant.Steps = steps
	assistant.ModelConfig = request.ModelConfig
	assistant.Retrieval = request.Retrieval
	assistant.UpdatedAt = &now

	if err := uow.AssistantRepository().Update(ctx, assistant); err != nil {
		return nil, err
	}
	return toAssistantResponse(assistant), nil
}

func (s *assistantService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.AssistantResponse, error) {
	assistant, err := s.owned(ctx, s.uowFactory.NewUnitOfWork(ctx), userId, id)
	if err != nil {
		return nil, err
	}
	return toAssistantResponse(assistant), nil
}

func (s *assistantService) GetAll(ctx context.Context, userId uuid.UUID) ([]*dto.AssistantResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	assistants, err := uow.AssistantRepository().FindAllByOwner(ctx, userId)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.AssistantResponse, 0, len(assistants))
	for _, a := range assistants {
		res = append(res, toAssistantResponse(a))
	}
	return res, nil
}

func (s *assistantService) owned(ctx context.Context, uow unitofwork.UnitOfWork, userId, id uuid.UUID) (*entity.Assistant, error) {
	assistant, err := uow.AssistantRepository().FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return nil, ErrNotFound
	}
	if err := s.verifier.VerifyOwner(assistant.OwnerId, userId); err != nil {
		return nil, err
	}
	return assistant, nil
}

func toAssistantResponse(a *entity.Assistant) *dto.AssistantResponse {
	return &dto.AssistantResponse{
		Id:          a.Id,
		Name:        a.Name,
		Kind:        a.Kind,
		Description: a.Description,
		Steps:       a.Steps,
		ModelConfig: a.ModelConfig,
		Retrieval:   a.Retrieval,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
