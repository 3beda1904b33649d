package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ contract.ChatSessionRepository = (*SessionRepository)(nil)

const (
	sessionPrefix     = "assistant:session:"
	sessionUserPrefix = "assistant:session:user:"
)

// SessionRepository stores each chat session as one JSON value. A zero ttl
// keeps sessions until they are deleted explicitly.
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{client: client, ttl: ttl}
}

func (r *SessionRepository) Save(ctx context.Context, session *entity.ChatSession) error {
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = &now
	session.Data.SchemaVersion = entity.CollectedDataSchemaVersion
	session.Version++

	data, err := json.Marshal(session)
	if err != nil {
		session.Version--
		return fmt.Errorf("marshal session %s: %w", session.Id, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionPrefix+session.Id.String(), data, r.ttl)
	pipe.SAdd(ctx, sessionUserPrefix+session.UserId.String(), session.Id.String())
	if r.ttl > 0 {
		pipe.Expire(ctx, sessionUserPrefix+session.UserId.String(), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		session.Version--
		return fmt.Errorf("save session %s: %w", session.Id, err)
	}
	return nil
}

func (r *SessionRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.ChatSession, error) {
	data, err := r.client.Get(ctx, sessionPrefix+id.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return decodeSession(data)
}

func (r *SessionRepository) FindAllByUser(ctx context.Context, userId uuid.UUID) ([]*entity.ChatSession, error) {
	setKey := sessionUserPrefix + userId.String()
	ids, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", userId, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions for %s: %w", userId, err)
	}

	sessions := make([]*entity.ChatSession, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired or deleted behind our back
			stale = append(stale, ids[i])
			continue
		}
		s, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if len(stale) > 0 {
		r.client.SRem(ctx, setKey, stale...)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	session, err := r.FindById(ctx, id)
	if err != nil || session == nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionPrefix+id.String())
	pipe.SRem(ctx, sessionUserPrefix+session.UserId.String(), id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func decodeSession(data []byte) (*entity.ChatSession, error) {
	session := &entity.ChatSession{Data: entity.NewCollectedData()}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}
