package ragtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"ai-assistant-be/pkg/llm"
)

var _ llm.LLMProvider = (*FakeLLM)(nil)

// FakeLLM answers classification calls (Chat/Generate) with a fixed JSON
// reply and generation calls (Stream) through Reply, word by word.
type FakeLLM struct {
	mu sync.Mutex

	classifyResponse string
	classifyErr      error
	reply            func(messages []llm.Message) string
	streamErr        error
	tokenDelay       time.Duration

	chatCalls    int
	streamCalls  int
	lastMessages []llm.Message
}

// NewFakeLLM replies to every generation with reply.
func NewFakeLLM(reply string) *FakeLLM {
	return &FakeLLM{
		classifyErr: ErrInjected,
		reply:       func([]llm.Message) string { return reply },
	}
}

// ClassifyWith makes Chat return response. By default Chat fails, which
// drives the keyword fallback.
func (f *FakeLLM) ClassifyWith(response string) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifyResponse, f.classifyErr = response, nil
	return f
}

func (f *FakeLLM) ReplyWith(reply func(messages []llm.Message) string) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = reply
	return f
}

func (f *FakeLLM) FailStream(err error) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamErr = err
	return f
}

// SlowDown delays every streamed token by d.
func (f *FakeLLM) SlowDown(d time.Duration) *FakeLLM {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenDelay = d
	return f
}

func (f *FakeLLM) StreamCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

func (f *FakeLLM) ChatCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls
}

// LastMessages returns the messages of the latest Stream call.
func (f *FakeLLM) LastMessages() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Message(nil), f.lastMessages...)
}

func (f *FakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	return f.classifyResponse, f.classifyErr
}

func (f *FakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

func (f *FakeLLM) Stream(ctx context.Context, history []llm.Message, onToken llm.TokenFunc, options ...llm.Option) (string, error) {
	f.mu.Lock()
	f.streamCalls++
	f.lastMessages = append([]llm.Message(nil), history...)
	reply, streamErr, delay := f.reply(history), f.streamErr, f.tokenDelay
	f.mu.Unlock()

	if streamErr != nil {
		return "", streamErr
	}

	var full strings.Builder
	for _, tok := range Tokens(reply) {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return full.String(), ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}
		if err := onToken(tok); err != nil {
			return full.String(), err
		}
		full.WriteString(tok)
	}
	return full.String(), nil
}

// Tokens splits s into word tokens that keep their trailing whitespace,
// so joining them gives s back.
func Tokens(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' && (i+1 == len(s) || s[i+1] != ' ') {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// ReferenceOf extracts the reference material block of the last user
// message, or "" when there is none.
func ReferenceOf(messages []llm.Message) string {
	if len(messages) == 0 {
		return ""
	}
	content := messages[len(messages)-1].Content
	start := strings.Index(content, "<reference_material>\n")
	end := strings.Index(content, "\n</reference_material>")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return content[start+len("<reference_material>\n") : end]
}
