package memory

import (
	"context"
	"sync"

	"ai-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
)

var _ contract.SessionLocker = (*SessionLocker)(nil)

// SessionLocker is a keyed mutex. Entries are reference counted and
// dropped once nobody holds or waits for them.
type SessionLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func NewSessionLocker() *SessionLocker {
	return &SessionLocker{locks: make(map[uuid.UUID]*sessionLock)}
}

func (l *SessionLocker) Lock(ctx context.Context, sessionId uuid.UUID) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[sessionId]
	if !ok {
		lk = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[sessionId] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(sessionId, lk, false)
		return nil, contract.ErrLockNotAcquired
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(sessionId, lk, true) })
	}, nil
}

func (l *SessionLocker) release(sessionId uuid.UUID, lk *sessionLock, held bool) {
	if held {
		<-lk.ch
	}
	l.mu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, sessionId)
	}
	l.mu.Unlock()
}
