package session

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/pkg/rag/access"

	"github.com/google/uuid"
)

const titleMaxLength = 60

// Manager loads and creates chat sessions and checks who owns them.
type Manager struct {
	sessions contract.ChatSessionRepository
	verifier *access.Verifier
}

func NewManager(sessions contract.ChatSessionRepository) *Manager {
	return &Manager{sessions: sessions, verifier: access.NewVerifier()}
}

// Create starts an empty session of userId with an assistant.
func (m *Manager) Create(ctx context.Context, userId, assistantId uuid.UUID) (*entity.ChatSession, error) {
	s := &entity.ChatSession{
		Id:          uuid.New(),
		UserId:      userId,
		AssistantId: assistantId,
		Title:       constant.DefaultSessionTitle,
		Data:        entity.NewCollectedData(),
		CreatedAt:   time.Now(),
	}
	if err := m.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// FindOrCreate returns the newest session of userId with the assistant and
// creates one when there is none.
func (m *Manager) FindOrCreate(ctx context.Context, userId, assistantId uuid.UUID) (*entity.ChatSession, error) {
	sessions, err := m.sessions.FindAllByUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.AssistantId == assistantId {
			return s, nil
		}
	}
	return m.Create(ctx, userId, assistantId)
}

// PairKey names the (user, assistant) pair so lazy creation can be locked
// like a session.
func PairKey(userId, assistantId uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(userId, assistantId[:])
}

// Load returns the session if it exists and belongs to userId.
func (m *Manager) Load(ctx context.Context, userId, sessionId uuid.UUID) (*entity.ChatSession, error) {
	s, err := m.sessions.FindById(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, contract.ErrNotFound
	}
	if err := m.verifier.VerifySession(s, userId); err != nil {
		return nil, err
	}
	if s.Data.Values == nil {
		s.Data = entity.NewCollectedData()
	}
	return s, nil
}

// List returns the sessions of userId, newest first.
func (m *Manager) List(ctx context.Context, userId uuid.UUID) ([]*entity.ChatSession, error) {
	return m.sessions.FindAllByUser(ctx, userId)
}

func (m *Manager) Save(ctx context.Context, s *entity.ChatSession) error {
	return m.sessions.Save(ctx, s)
}

// Reset drops the workflow and everything collected for it.
func (m *Manager) Reset(ctx context.Context, s *entity.ChatSession) error {
	s.Workflow = nil
	s.Data = entity.NewCollectedData()
	return m.sessions.Save(ctx, s)
}

// TitleFrom names an untitled session after its first message.
func (m *Manager) TitleFrom(s *entity.ChatSession, message string) {
	if s.Title != "" && s.Title != constant.DefaultSessionTitle {
		return
	}
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) > titleMaxLength {
		title = string([]rune(title)[:titleMaxLength-3]) + "..."
	}
	if title != "" {
		s.Title = title
	}
}
