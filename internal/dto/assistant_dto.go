package dto

import (
	"time"

	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

type AssistantRequest struct {
	Id          uuid.UUID              `json:"-"`
	Name        string                 `json:"name" validate:"required,max=120"`
	Kind        string                 `json:"kind" validate:"required,max=60"`
	Description string                 `json:"description" validate:"max=2000"`
	Steps       []entity.StepDef       `json:"steps" validate:"dive"`
	ModelConfig entity.ModelConfig     `json:"model_config"`
	Retrieval   entity.RetrievalConfig `json:"retrieval" validate:"-"`
}

type AssistantResponse struct {
	Id          uuid.UUID              `json:"id"`
	Name        string                 `json:"name"`
	Kind        string                 `json:"kind"`
	Description string                 `json:"description"`
	Steps       []entity.StepDef       `json:"steps"`
	ModelConfig entity.ModelConfig     `json:"model_config"`
	Retrieval   entity.RetrievalConfig `json:"retrieval"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   *time.Time             `json:"updated_at"`
}
