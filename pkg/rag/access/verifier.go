package access

import (
	"errors"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

var ErrForbidden = errors.New("access denied")

// Verifier decides who may touch which session, assistant or document.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// VerifySession checks that the session belongs to the user.
func (v *Verifier) VerifySession(session *entity.ChatSession, userId uuid.UUID) error {
	if session.UserId != userId {
		return ErrForbidden
	}
	return nil
}

// VerifyOwner checks operator ownership of an assistant or a document.
func (v *Verifier) VerifyOwner(ownerId, userId uuid.UUID) error {
	if ownerId != userId {
		return ErrForbidden
	}
	return nil
}
