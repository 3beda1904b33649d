package memory

import (
	"context"
	"sort"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/unitofwork"
)

// Store bundles the in-memory repositories behind the unit of work API.
// Transactions are no-ops: each repository call is atomic on its own.
type Store struct {
	Assistants *AssistantRepository
	Documents  *DocumentRepository
	Chunks     *ChunkRepository
	Messages   *ChatMessageRepository
}

func NewStore() *Store {
	return &Store{
		Assistants: NewAssistantRepository(),
		Documents:  NewDocumentRepository(),
		Chunks:     NewChunkRepository(),
		Messages:   NewChatMessageRepository(),
	}
}

func (s *Store) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &unitOfWork{store: s}
}

type unitOfWork struct {
	store *Store
}

func (u *unitOfWork) Begin(ctx context.Context) error { return nil }
func (u *unitOfWork) Commit() error                   { return nil }
func (u *unitOfWork) Rollback() error                 { return nil }

func (u *unitOfWork) AssistantRepository() contract.AssistantRepository {
	return u.store.Assistants
}

func (u *unitOfWork) DocumentRepository() contract.DocumentRepository {
	return u.store.Documents
}

func (u *unitOfWork) ChunkRepository() contract.ChunkRepository {
	return u.store.Chunks
}

func (u *unitOfWork) ChatMessageRepository() contract.ChatMessageRepository {
	return u.store.Messages
}

func sortSessions(sessions []*entity.ChatSession) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}
