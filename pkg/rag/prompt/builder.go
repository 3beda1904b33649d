package prompt

import (
	"strings"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/pkg/llm"
)

// Builder assembles the message list sent for generation: system prompt,
// recent history, then the current request with its reference material.
type Builder struct {
	systemPrompt string
	history      []llm.Message
}

func NewBuilder(systemPrompt string, history []llm.Message) *Builder {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = constant.DefaultSystemPrompt
	}
	return &Builder{
		systemPrompt: systemPrompt,
		history:      history,
	}
}

// Answer builds a question-answering request. An empty reference means
// nothing matched and the model is told so.
func (b *Builder) Answer(question, reference string) []llm.Message {
	var prompt strings.Builder
	b.writeReferenceMaterial(&prompt, reference, true)
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(question)
	prompt.WriteString("\n</user_question>")
	return b.messages(prompt.String())
}

// Step builds the request of a workflow generate step from its rendered
// template and optional reference material.
func (b *Builder) Step(instruction, reference string) []llm.Message {
	var prompt strings.Builder
	b.writeReferenceMaterial(&prompt, reference, false)
	prompt.WriteString("<task>\n")
	prompt.WriteString(instruction)
	prompt.WriteString("\n</task>")
	return b.messages(prompt.String())
}

func (b *Builder) writeReferenceMaterial(prompt *strings.Builder, reference string, noticeWhenEmpty bool) {
	if reference == "" {
		if noticeWhenEmpty {
			prompt.WriteString("<no_reference>\n")
			prompt.WriteString(constant.NoReferenceNotice)
			prompt.WriteString("\n</no_reference>\n\n")
		}
		return
	}
	prompt.WriteString("<reference_material>\n")
	prompt.WriteString(reference)
	prompt.WriteString("\n</reference_material>\n\n")
}

func (b *Builder) messages(user string) []llm.Message {
	out := make([]llm.Message, 0, len(b.history)+2)
	out = append(out, llm.Message{Role: constant.ChatMessageRoleSystem, Content: b.systemPrompt})
	out = append(out, b.history...)
	out = append(out, llm.Message{Role: constant.ChatMessageRoleUser, Content: user})
	return out
}
