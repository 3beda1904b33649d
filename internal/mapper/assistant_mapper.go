package mapper

import (
	"fmt"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/model"
)

type AssistantMapper struct{}

func NewAssistantMapper() *AssistantMapper {
	return &AssistantMapper{}
}

func (m *AssistantMapper) ToEntity(a *model.Assistant) (*entity.Assistant, error) {
	if a == nil {
		return nil, nil
	}

	out := &entity.Assistant{
		Id:          a.Id,
		OwnerId:     a.OwnerId,
		Name:        a.Name,
		Kind:        a.Kind,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
	}
	if !a.UpdatedAt.IsZero() {
		t := a.UpdatedAt
		out.UpdatedAt = &t
	}
	if err := fromJSON(a.Steps, &out.Steps); err != nil {
		return nil, fmt.Errorf("decode steps of assistant %s: %w", a.Id, err)
	}
	if err := fromJSON(a.ModelConfig, &out.ModelConfig); err != nil {
		return nil, fmt.Errorf("decode model config of assistant %s: %w", a.Id, err)
	}
	if err := fromJSON(a.Retrieval, &out.Retrieval); err != nil {
		return nil, fmt.Errorf("decode retrieval config of assistant %s: %w", a.Id, err)
	}
	return out, nil
}

func (m *AssistantMapper) ToModel(a *entity.Assistant) *model.Assistant {
	if a == nil {
		return nil
	}
	return &model.Assistant{
		Id:          a.Id,
		OwnerId:     a.OwnerId,
		Name:        a.Name,
		Kind:        a.Kind,
		Description: a.Description,
		Steps:       toJSON(a.Steps),
		ModelConfig: toJSON(a.ModelConfig),
		Retrieval:   toJSON(a.Retrieval),
		CreatedAt:   a.CreatedAt,
	}
}
