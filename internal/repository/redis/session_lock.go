package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ contract.SessionLocker = (*SessionLock)(nil)

const lockPrefix = "assistant:lock:session:"

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by another instance is left alone.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// extendScript pushes the expiry out only while the key still holds our token.
var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// SessionLock serializes turns of one session across instances with
// SET NX and a per-acquisition token.
type SessionLock struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewSessionLock writes each lock with a ttl and renews it every ttl/3 while
// the holder runs, so a crashed instance frees the session after ttl but a
// long turn keeps it. Waiters poll every retry until their context is done.
func NewSessionLock(client *redis.Client, ttl, retry time.Duration) *SessionLock {
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	return &SessionLock{client: client, ttl: ttl, retry: retry}
}

func (l *SessionLock) Lock(ctx context.Context, sessionId uuid.UUID) (func(), error) {
	key := lockPrefix + sessionId.String()
	token := newToken()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", contract.ErrLockNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("acquire session lock %s: %w", sessionId, err)
		}
		if ok {
			stop := make(chan struct{})
			renewed := make(chan struct{})
			go l.renew(key, token, stop, renewed)

			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-renewed
					// The turn's context may already be cancelled.
					releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					releaseScript.Run(releaseCtx, l.client, []string{key}, token)
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", contract.ErrLockNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}

// renew extends the key until stop is closed or the token is no longer ours.
func (l *SessionLock) renew(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err == nil && held == 0 {
				return
			}
		}
	}
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
