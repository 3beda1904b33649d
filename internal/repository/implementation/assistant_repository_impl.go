package implementation

import (
	"context"
	"errors"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/mapper"
	"ai-assistant-be/internal/model"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/scope"
	"ai-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssistantRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AssistantMapper
}

func NewAssistantRepository(db *gorm.DB) contract.AssistantRepository {
	return &AssistantRepositoryImpl{
		db:     db,
		mapper: mapper.NewAssistantMapper(),
	}
}

func (r *AssistantRepositoryImpl) Create(ctx context.Context, assistant *entity.Assistant) error {
	m := r.mapper.ToModel(assistant)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	assistant.Id = m.Id
	assistant.CreatedAt = m.CreatedAt
	return nil
}

func (r *AssistantRepositoryImpl) Update(ctx context.Context, assistant *entity.Assistant) error {
	m := r.mapper.ToModel(assistant)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	t := m.UpdatedAt
	assistant.UpdatedAt = &t
	return nil
}

func (r *AssistantRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Assistant, error) {
	var m model.Assistant
	query := specification.Apply(r.db.WithContext(ctx), specification.ByID{ID: id})
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}

func (r *AssistantRepositoryImpl) FindAllByOwner(ctx context.Context, ownerId uuid.UUID) ([]*entity.Assistant, error) {
	var models []*model.Assistant
	query := specification.Apply(r.db.WithContext(ctx).Scopes(scope.OrderByCreatedDesc), specification.ByOwnerID{OwnerID: ownerId})
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	entities := make([]*entity.Assistant, 0, len(models))
	for _, m := range models {
		e, err := r.mapper.ToEntity(m)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}
