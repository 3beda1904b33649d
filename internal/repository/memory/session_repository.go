package memory

import (
	"context"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var _ contract.ChatSessionRepository = (*SessionRepository)(nil)

// SessionRepository keeps sessions in process memory. A zero ttl keeps
// them until the process exits.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	expiration := cache.NoExpiration
	if ttl > 0 {
		expiration = ttl
	}
	return &SessionRepository{
		cache: cache.New(expiration, 10*time.Minute),
	}
}

func (r *SessionRepository) Save(ctx context.Context, session *entity.ChatSession) error {
	session.Version++
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = &now
	r.cache.Set(session.Id.String(), session.Clone(), cache.DefaultExpiration)
	return nil
}

func (r *SessionRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.ChatSession, error) {
	if x, found := r.cache.Get(id.String()); found {
		return x.(*entity.ChatSession).Clone(), nil
	}
	return nil, nil
}

func (r *SessionRepository) FindAllByUser(ctx context.Context, userId uuid.UUID) ([]*entity.ChatSession, error) {
	var sessions []*entity.ChatSession
	for _, item := range r.cache.Items() {
		s := item.Object.(*entity.ChatSession)
		if s.UserId == userId {
			sessions = append(sessions, s.Clone())
		}
	}
	sortSessions(sessions)
	return sessions, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.cache.Delete(id.String())
	return nil
}
