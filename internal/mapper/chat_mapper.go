package mapper

import (
	"fmt"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) (*entity.ChatSession, error) {
	if s == nil {
		return nil, nil
	}

	out := &entity.ChatSession{
		Id:          s.Id,
		UserId:      s.UserId,
		AssistantId: s.AssistantId,
		Title:       s.Title,
		Data:        entity.NewCollectedData(),
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		out.UpdatedAt = &t
	}
	if err := fromJSON(s.Workflow, &out.Workflow); err != nil {
		return nil, fmt.Errorf("decode workflow of session %s: %w", s.Id, err)
	}
	if err := fromJSON(s.Data, &out.Data); err != nil {
		return nil, fmt.Errorf("decode collected data of session %s: %w", s.Id, err)
	}
	return out, nil
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}
	data := s.Data
	data.SchemaVersion = entity.CollectedDataSchemaVersion
	return &model.ChatSession{
		Id:          s.Id,
		UserId:      s.UserId,
		AssistantId: s.AssistantId,
		Title:       s.Title,
		Workflow:    toJSON(s.Workflow),
		Data:        toJSON(data),
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
	}
}

func (m *ChatMapper) ChatMessageToEntity(c *model.ChatMessage) (*entity.ChatMessage, error) {
	if c == nil {
		return nil, nil
	}
	out := &entity.ChatMessage{
		Id:            c.Id,
		ChatSessionId: c.ChatSessionId,
		Role:          c.Role,
		Chat:          c.Chat,
		IntentKind:    c.IntentKind,
		Failed:        c.Failed,
		CreatedAt:     c.CreatedAt,
	}
	if err := fromJSON(c.Sources, &out.Sources); err != nil {
		return nil, fmt.Errorf("decode sources of message %s: %w", c.Id, err)
	}
	return out, nil
}

func (m *ChatMapper) ChatMessageToModel(c *entity.ChatMessage) *model.ChatMessage {
	if c == nil {
		return nil
	}
	return &model.ChatMessage{
		Id:            c.Id,
		ChatSessionId: c.ChatSessionId,
		Role:          c.Role,
		Chat:          c.Chat,
		IntentKind:    c.IntentKind,
		Sources:       toJSON(c.Sources),
		Failed:        c.Failed,
		CreatedAt:     c.CreatedAt,
	}
}
