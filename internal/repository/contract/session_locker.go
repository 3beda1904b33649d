package contract

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrLockNotAcquired = errors.New("session is busy")

// SessionLocker serializes turns of the same session. Different sessions
// never contend.
type SessionLocker interface {
	Lock(ctx context.Context, sessionId uuid.UUID) (unlock func(), err error)
}
