package workflow

import (
	"testing"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/pkg/rag"
	"ai-assistant-be/pkg/rag/intent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectStep(id string, order int, questions ...string) entity.StepDef {
	return entity.StepDef{
		Id: id, Order: order, Name: id, Kind: entity.StepKindCollectInfo, Required: true,
		Config: entity.StepConfig{Questions: questions},
	}
}

func generateStep(id string, order int, template string, deps ...string) entity.StepDef {
	return entity.StepDef{
		Id: id, Order: order, Name: id, Kind: entity.StepKindGenerate, Dependencies: deps,
		Config: entity.StepConfig{PromptTemplate: template},
	}
}

func reportAssistant() *entity.Assistant {
	return &entity.Assistant{
		Name: "Report writer",
		Steps: []entity.StepDef{
			generateStep("write", 2, "Write a report on {{answer_1}} for {{answer_2}}.", "ask"),
			collectStep("ask", 1, "What is the topic?", "Who is the audience?"),
		},
	}
}

func workflowIntent() intent.Intent {
	return intent.Intent{Kind: intent.KindWorkflow, Confidence: 0.9}
}

func TestPlanner_ValidateOrders(t *testing.T) {
	steps := []entity.StepDef{
		generateStep("c", 2, "x"),
		collectStep("b", 1, "q"),
		collectStep("a", 1, "q"),
	}

	ordered, err := NewPlanner().Validate(steps)
	require.NoError(t, err)
	ids := []string{ordered[0].Id, ordered[1].Id, ordered[2].Id}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestPlanner_ValidateRejects(t *testing.T) {
	badKind := collectStep("a", 1, "q")
	badKind.Kind = "teleport"

	validateNoRetry := entity.StepDef{
		Id: "v", Order: 1, Name: "v", Kind: entity.StepKindValidate,
		Config: entity.StepConfig{Predicate: &entity.Predicate{Field: "x", Op: entity.PredicateExists}},
	}
	badJump := entity.StepDef{
		Id: "c", Order: 2, Name: "c", Kind: entity.StepKindConditional,
		Config: entity.StepConfig{Predicate: &entity.Predicate{Field: "x", Op: entity.PredicateExists}, OnTrue: "ghost"},
	}

	tests := []struct {
		name  string
		steps []entity.StepDef
	}{
		{"forward reference", []entity.StepDef{collectStep("a", 1, "q"), generateStep("b", 0, "x", "a")}},
		{"cycle", []entity.StepDef{generateStep("a", 1, "x", "b"), generateStep("b", 2, "x", "a")}},
		{"self dependency", []entity.StepDef{generateStep("a", 1, "x", "a")}},
		{"unknown dependency", []entity.StepDef{generateStep("a", 1, "x", "ghost")}},
		{"duplicate id", []entity.StepDef{collectStep("a", 1, "q"), collectStep("a", 2, "q")}},
		{"empty id", []entity.StepDef{collectStep("", 1, "q")}},
		{"unknown kind", []entity.StepDef{badKind}},
		{"collect asks nothing", []entity.StepDef{collectStep("a", 1)}},
		{"generate without template", []entity.StepDef{generateStep("a", 1, " ")}},
		{"validate with nothing to retry", []entity.StepDef{validateNoRetry}},
		{"jump to unknown step", []entity.StepDef{collectStep("a", 1, "q"), badJump}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlanner().Validate(tt.steps)
			assert.ErrorIs(t, err, rag.ErrInvalidWorkflow)
		})
	}
}

func TestPlanner_InputKeysNumberAcrossSteps(t *testing.T) {
	steps := []entity.StepDef{
		collectStep("first", 1, "q1", "q2"),
		generateStep("mid", 2, "x"),
		{Id: "second", Order: 3, Name: "second", Kind: entity.StepKindCollectInfo,
			Config: entity.StepConfig{Questions: []string{"q3"}, Fields: []string{"email"}}},
	}

	keys := NewPlanner().InputKeys(steps)
	assert.Equal(t, []string{"answer_1", "answer_2"}, keys["first"])
	assert.Equal(t, []string{"answer_3", "email"}, keys["second"])
	assert.NotContains(t, keys, "mid")
}

func TestPlanner_Plan(t *testing.T) {
	p := NewPlanner()
	assistant := reportAssistant()

	t.Run("full plan for fresh data", func(t *testing.T) {
		plan, err := p.Plan(workflowIntent(), assistant, entity.NewCollectedData())
		require.NoError(t, err)
		require.Len(t, plan, 2)
		assert.Equal(t, "ask", plan[0].Id)
	})

	t.Run("skips satisfied steps", func(t *testing.T) {
		data := dataWith(map[string]string{"answer_1": "sales", "answer_2": "board"})
		plan, err := p.Plan(workflowIntent(), assistant, data)
		require.NoError(t, err)
		require.Len(t, plan, 1)
		assert.Equal(t, "write", plan[0].Id)
	})

	t.Run("partly answered step stays", func(t *testing.T) {
		plan, err := p.Plan(workflowIntent(), assistant, dataWith(map[string]string{"answer_1": "sales"}))
		require.NoError(t, err)
		assert.Len(t, plan, 2)
	})

	t.Run("question intent plans nothing", func(t *testing.T) {
		plan, err := p.Plan(intent.Intent{Kind: intent.KindQuestion}, assistant, entity.NewCollectedData())
		require.NoError(t, err)
		assert.Empty(t, plan)
	})

	t.Run("invalid workflow", func(t *testing.T) {
		broken := &entity.Assistant{Steps: []entity.StepDef{generateStep("a", 1, "x", "b"), generateStep("b", 2, "x")}}
		_, err := p.Plan(workflowIntent(), broken, entity.NewCollectedData())
		assert.ErrorIs(t, err, rag.ErrInvalidWorkflow)
	})
}

func TestPlanner_Start(t *testing.T) {
	data := dataWith(map[string]string{"answer_1": "sales", "answer_2": "board"})

	state, remaining, err := NewPlanner().Start(workflowIntent(), reportAssistant(), data)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.NotNil(t, state)

	assert.Len(t, state.Plan, 2)
	assert.Equal(t, 1, state.CurrentStepIndex)
	assert.Equal(t, entity.StepCompleted, state.StepStatus["ask"])
	assert.Equal(t, entity.StepPending, state.StepStatus["write"])
	assert.Equal(t, entity.WorkflowInProgress, state.Status)

	data.Set("write", "done already")
	state, remaining, err = NewPlanner().Start(workflowIntent(), reportAssistant(), data)
	require.NoError(t, err)
	assert.Nil(t, state)
	assert.Empty(t, remaining)
}

func TestEligible(t *testing.T) {
	step := generateStep("b", 2, "x", "a")
	assert.False(t, Eligible(step, map[string]entity.StepStatus{"a": entity.StepPending}))
	assert.False(t, Eligible(step, map[string]entity.StepStatus{}))
	assert.True(t, Eligible(step, map[string]entity.StepStatus{"a": entity.StepCompleted}))
}
