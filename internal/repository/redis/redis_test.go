package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func newSession(userId uuid.UUID) *entity.ChatSession {
	return &entity.ChatSession{
		Id:          uuid.New(),
		UserId:      userId,
		AssistantId: uuid.New(),
		Title:       "Cover letter",
		Data:        entity.NewCollectedData(),
	}
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewSessionRepository(client, time.Hour)
	ctx := context.Background()

	s := newSession(uuid.New())
	s.Workflow = entity.NewWorkflowState([]entity.StepDef{
		{Id: "collect", Name: "Collect", Kind: entity.StepKindCollectInfo, Config: entity.StepConfig{Questions: []string{"Role?"}}},
	}, map[string][]string{"collect": {"answer_1"}})
	s.Workflow.StepStatus["collect"] = entity.StepCompleted
	s.Data.Set("answer_1", "Backend engineer")
	s.Data.SetSnippets("research", []string{"first", "second"})

	require.NoError(t, repo.Save(ctx, s))
	assert.Equal(t, int64(1), s.Version)

	got, err := repo.FindById(ctx, s.Id)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, s.Title, got.Title)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, entity.StepCompleted, got.Workflow.StepStatus["collect"])
	assert.Equal(t, entity.WorkflowInProgress, got.Workflow.Status)
	assert.Equal(t, []string{"answer_1"}, got.Workflow.InputKeys["collect"])
	v, ok := got.Data.Lookup("answer_1")
	assert.True(t, ok)
	assert.Equal(t, "Backend engineer", v)
	assert.Equal(t, []string{"first", "second"}, got.Data.Snippets["research"])
}

func TestSessionRepository_FindMissing(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewSessionRepository(client, 0)

	got, err := repo.FindById(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionRepository_ListAndDelete(t *testing.T) {
	client, _ := setupTestRedis(t)
	repo := NewSessionRepository(client, 0)
	ctx := context.Background()

	user := uuid.New()
	first, second := newSession(user), newSession(user)
	other := newSession(uuid.New())
	for _, s := range []*entity.ChatSession{first, second, other} {
		require.NoError(t, repo.Save(ctx, s))
	}

	sessions, err := repo.FindAllByUser(ctx, user)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, repo.Delete(ctx, first.Id))
	sessions, err = repo.FindAllByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, second.Id, sessions[0].Id)
}

func TestSessionRepository_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	repo := NewSessionRepository(client, time.Minute)
	ctx := context.Background()

	s := newSession(uuid.New())
	require.NoError(t, repo.Save(ctx, s))

	mr.FastForward(2 * time.Minute)

	got, err := repo.FindById(ctx, s.Id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionLock_Serializes(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewSessionLock(client, time.Minute, 5*time.Millisecond)
	sessionId := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			unlock, err := lock.Lock(ctx, sessionId)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestSessionLock_TimesOut(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewSessionLock(client, time.Minute, 5*time.Millisecond)
	sessionId := uuid.New()

	unlock, err := lock.Lock(context.Background(), sessionId)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = lock.Lock(ctx, sessionId)
	assert.ErrorIs(t, err, contract.ErrLockNotAcquired)
}

func TestSessionLock_ReleaseKeepsForeignLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewSessionLock(client, time.Second, 5*time.Millisecond)
	sessionId := uuid.New()
	ctx := context.Background()

	unlock, err := lock.Lock(ctx, sessionId)
	require.NoError(t, err)

	// Our lock expires and another holder takes the key.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(lockPrefix+sessionId.String(), "someone-else"))

	unlock()

	v, err := mr.Get(lockPrefix + sessionId.String())
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestSessionLock_RenewsWhileHeld(t *testing.T) {
	client, mr := setupTestRedis(t)
	ttl := 300 * time.Millisecond
	lock := NewSessionLock(client, ttl, 5*time.Millisecond)
	sessionId := uuid.New()
	key := lockPrefix + sessionId.String()

	unlock, err := lock.Lock(context.Background(), sessionId)
	require.NoError(t, err)

	// Redis time moves well past the ttl while the holder keeps running.
	// Each real pause spans at least one renewal tick.
	for i := 0; i < 8; i++ {
		mr.FastForward(ttl / 2)
		time.Sleep(ttl / 2)
	}
	require.True(t, mr.Exists(key), "lock expired while its holder was alive")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = lock.Lock(ctx, sessionId)
	assert.ErrorIs(t, err, contract.ErrLockNotAcquired)

	unlock()
	assert.False(t, mr.Exists(key))

	// Renewal stops with unlock, so the next holder is not extended by us.
	next, err := lock.Lock(context.Background(), sessionId)
	require.NoError(t, err)
	next()
}

func TestSessionLock_StopsRenewingLostLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	ttl := 150 * time.Millisecond
	lock := NewSessionLock(client, ttl, 5*time.Millisecond)
	sessionId := uuid.New()
	key := lockPrefix + sessionId.String()

	unlock, err := lock.Lock(context.Background(), sessionId)
	require.NoError(t, err)
	defer unlock()

	require.NoError(t, mr.Set(key, "someone-else"))
	time.Sleep(2 * ttl)

	v, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
	assert.Zero(t, mr.TTL(key), "foreign key was given our expiry")
}
