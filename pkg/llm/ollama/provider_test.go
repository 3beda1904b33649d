package ollama

import (
	"ai-assistant-be/pkg/llm"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: `{"kind":"question"}`}, Done: true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "llama3")
	out, err := p.Chat(context.Background(), []llm.Message{{Role: "model", Content: "hi"}},
		llm.WithTemperature(0), llm.WithJSONFormat(), llm.WithMaxTokens(64))
	require.NoError(t, err)

	assert.Equal(t, `{"kind":"question"}`, out)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.Equal(t, "assistant", got.Messages[0].Role)
	require.NotNil(t, got.Options.Temperature)
	assert.Equal(t, 0.0, *got.Options.Temperature)
	assert.Equal(t, 64, got.Options.NumPredict)
}

func TestOllamaProvider_ChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "missing").Chat(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOllamaProvider_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		for _, tok := range []string{"Dear ", "hiring ", "manager"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", tok)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	var tokens []string
	full, err := NewOllamaProvider(srv.URL, "llama3").Stream(context.Background(), nil, func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dear ", "hiring ", "manager"}, tokens)
	assert.Equal(t, "Dear hiring manager", full)
}

func TestOllamaProvider_StreamAbort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"one"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"two"},"done":false}`)
		fmt.Fprintln(w, `{"done":true}`)
	}))
	defer srv.Close()

	stop := errors.New("stop")
	full, err := NewOllamaProvider(srv.URL, "llama3").Stream(context.Background(), nil, func(tok string) error {
		if tok == "two" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, "one", full)
}

func TestOllamaProvider_StreamTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"partial"},"done":false}`)
	}))
	defer srv.Close()

	full, err := NewOllamaProvider(srv.URL, "llama3").Stream(context.Background(), nil, func(string) error { return nil })
	assert.Error(t, err)
	assert.Equal(t, "partial", full)
}
