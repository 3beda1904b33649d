package service

import (
	"context"
	"testing"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/memory"
	"ai-assistant-be/pkg/rag"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportRequest() *dto.AssistantRequest {
	return &dto.AssistantRequest{
		Name: "Report writer",
		Kind: "report",
		Steps: []entity.StepDef{
			{Id: "report", Order: 2, Name: "Report", Kind: entity.StepKindGenerate, Dependencies: []string{"topic"},
				Config: entity.StepConfig{PromptTemplate: "Write about {{answer_1}}."}},
			{Id: "topic", Order: 1, Name: "Topic", Kind: entity.StepKindCollectInfo, Required: true,
				Config: entity.StepConfig{Questions: []string{"Topic?"}}},
		},
	}
}

func TestAssistantService_CreateOrdersSteps(t *testing.T) {
	svc := NewAssistantService(memory.NewStore(), logger.NewNopLogger())
	owner := uuid.New()

	res, err := svc.Create(context.Background(), owner, reportRequest())
	require.NoError(t, err)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, "topic", res.Steps[0].Id)
	assert.Equal(t, "report", res.Steps[1].Id)

	all, err := svc.GetAll(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAssistantService_RejectsInvalidWorkflow(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(req *dto.AssistantRequest)
	}{
		{"unknown dependency", func(req *dto.AssistantRequest) { req.Steps[0].Dependencies = []string{"missing"} }},
		{"duplicate id", func(req *dto.AssistantRequest) { req.Steps[1].Id = "report" }},
		{"unknown kind", func(req *dto.AssistantRequest) { req.Steps[0].Kind = "teleport" }},
		{"generate without template", func(req *dto.AssistantRequest) { req.Steps[0].Config.PromptTemplate = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			svc := NewAssistantService(store, logger.NewNopLogger())
			req := reportRequest()
			tt.mutate(req)
			owner := uuid.New()

			_, err := svc.Create(context.Background(), owner, req)
			assert.ErrorIs(t, err, rag.ErrInvalidWorkflow)

			all, err := store.Assistants.FindAllByOwner(context.Background(), owner)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestAssistantService_UpdateAndOwnership(t *testing.T) {
	svc := NewAssistantService(memory.NewStore(), logger.NewNopLogger())
	ctx := context.Background()
	owner := uuid.New()

	created, err := svc.Create(ctx, owner, reportRequest())
	require.NoError(t, err)

	req := reportRequest()
	req.Id = created.Id
	req.Name = "Renamed"
	updated, err := svc.Update(ctx, owner, req)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.NotNil(t, updated.UpdatedAt)

	_, err = svc.Update(ctx, uuid.New(), req)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Show(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
