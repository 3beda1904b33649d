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

type ChatSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatSessionRepository(db *gorm.DB) contract.ChatSessionRepository {
	return &ChatSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatSessionRepositoryImpl) Save(ctx context.Context, session *entity.ChatSession) error {
	session.Version++
	m := r.mapper.ChatSessionToModel(session)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		session.Version--
		return err
	}
	session.Id = m.Id
	session.CreatedAt = m.CreatedAt
	t := m.UpdatedAt
	session.UpdatedAt = &t
	return nil
}

func (r *ChatSessionRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.ChatSession, error) {
	var m model.ChatSession
	query := specification.Apply(r.db.WithContext(ctx), specification.ByID{ID: id})
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ChatSessionToEntity(&m)
}

func (r *ChatSessionRepositoryImpl) FindAllByUser(ctx context.Context, userId uuid.UUID) ([]*entity.ChatSession, error) {
	var models []*model.ChatSession
	query := specification.Apply(r.db.WithContext(ctx).Scopes(scope.OrderByCreatedDesc), specification.ByUserID{UserID: userId})
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	sessions := make([]*entity.ChatSession, 0, len(models))
	for _, m := range models {
		s, err := r.mapper.ChatSessionToEntity(m)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (r *ChatSessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.ChatSession{}, id).Error
}
