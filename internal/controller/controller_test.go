package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/repository/memory"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/rag/executor"
	"ai-assistant-be/pkg/rag/ragtest"
	"ai-assistant-be/pkg/rag/search"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "controller-test-secret"
	replyText  = "Our refund window is fourteen days."
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testApp struct {
	app   *fiber.App
	store *memory.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	log := logger.NewNopLogger()
	store := memory.NewStore()

	retriever := search.NewRetriever(ragtest.NewHashEmbedder(8), store.Chunks, log)
	pipeline, err := executor.NewPipeline(ragtest.NewFakeLLM(replyText), retriever, executor.DefaultConfig(), log)
	require.NoError(t, err)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	chatbotService := service.NewChatbotService(
		store,
		memory.NewSessionRepository(0),
		memory.NewSessionLocker(),
		pipeline,
		events.NopPublisher{},
		service.ChatbotOptions{LockTimeout: 50 * time.Millisecond},
		log,
	)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	jwtMiddleware := serverutils.NewJwtMiddleware(testSecret)
	api := app.Group("/api")
	NewAssistantController(service.NewAssistantService(store, log)).RegisterRoutes(api, jwtMiddleware)
	NewDocumentController(service.NewDocumentService(store, service.NewPublisherService("index", pubSub), log)).RegisterRoutes(api, jwtMiddleware)
	NewChatbotController(chatbotService, log).RegisterRoutes(api, jwtMiddleware)

	return &testApp{app: app, store: store}
}

func tokenFor(t *testing.T, userId uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode(t *testing.T, raw []byte, out interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func (a *testApp) plainAssistant(t *testing.T, owner uuid.UUID) *entity.Assistant {
	t.Helper()
	assistant := &entity.Assistant{Id: uuid.New(), OwnerId: owner, Name: "Support", Kind: "support"}
	require.NoError(t, a.store.Assistants.Create(context.Background(), assistant))
	return assistant
}

func TestAuthentication(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
		{"wrong secret", func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": uuid.NewString()}).SignedString([]byte("other"))
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := a.do(t, http.MethodGet, "/api/assistant/v1", tt.token, nil)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestAssistantController(t *testing.T) {
	a := newTestApp(t)
	owner, stranger := uuid.New(), uuid.New()

	resp, raw := a.do(t, http.MethodPost, "/api/assistant/v1", tokenFor(t, owner), map[string]interface{}{
		"name": "Report writer",
		"kind": "report",
		"steps": []map[string]interface{}{
			{"id": "topic", "order": 1, "name": "Topic", "kind": "collect_info", "config": map[string]interface{}{"questions": []string{"Topic?"}}},
		},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(raw))

	var created struct {
		Id uuid.UUID `json:"id"`
	}
	decode(t, raw, &created)

	t.Run("owner reads it back", func(t *testing.T) {
		resp, _ := a.do(t, http.MethodGet, "/api/assistant/v1/"+created.Id.String(), tokenFor(t, owner), nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		resp, _ := a.do(t, http.MethodGet, "/api/assistant/v1/"+created.Id.String(), tokenFor(t, stranger), nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("bad id", func(t *testing.T) {
		resp, _ := a.do(t, http.MethodGet, "/api/assistant/v1/nope", tokenFor(t, owner), nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing name", func(t *testing.T) {
		resp, _ := a.do(t, http.MethodPost, "/api/assistant/v1", tokenFor(t, owner), map[string]interface{}{"kind": "report"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unrunnable workflow", func(t *testing.T) {
		resp, _ := a.do(t, http.MethodPost, "/api/assistant/v1", tokenFor(t, owner), map[string]interface{}{
			"name": "Broken",
			"kind": "report",
			"steps": []map[string]interface{}{
				{"id": "write", "order": 1, "name": "Write", "kind": "generate", "dependencies": []string{"ghost"}},
			},
		})
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestDocumentController_Upload(t *testing.T) {
	a := newTestApp(t)
	owner := uuid.New()

	resp, raw := a.do(t, http.MethodPost, "/api/document/v1", tokenFor(t, owner), map[string]interface{}{
		"title":   "Refund policy",
		"content": "Refunds are issued within fourteen days.",
	})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode, string(raw))

	var doc struct {
		Id     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	decode(t, raw, &doc)
	assert.Equal(t, string(entity.DocumentPending), doc.Status)

	resp, _ = a.do(t, http.MethodPost, "/api/document/v1", tokenFor(t, owner), map[string]interface{}{
		"title": "Scan", "content": "x", "mime_type": "application/pdf",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// sseFrames parses "event:"/"data:" pairs.
func sseFrames(t *testing.T, body []byte) []map[string]interface{} {
	t.Helper()
	var frames []map[string]interface{}
	for _, block := range strings.Split(strings.TrimSpace(string(body)), "\n\n") {
		for _, line := range strings.Split(block, "\n") {
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var f map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(data), &f))
				frames = append(frames, f)
			}
		}
	}
	return frames
}

func TestChatbotController_StreamsTurn(t *testing.T) {
	a := newTestApp(t)
	owner := uuid.New()
	token := tokenFor(t, owner)
	assistant := a.plainAssistant(t, owner)

	resp, raw := a.do(t, http.MethodPost, "/api/chatbot/v1/sessions", token, map[string]interface{}{"assistant_id": assistant.Id})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(raw))
	var session struct {
		Id uuid.UUID `json:"id"`
	}
	decode(t, raw, &session)

	resp, body := a.do(t, http.MethodPost, "/api/chatbot/v1/sessions/"+session.Id.String()+"/messages", token,
		map[string]interface{}{"message": "How long do refunds take?"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := sseFrames(t, body)
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, "done", last["type"])

	var streamed strings.Builder
	for _, f := range frames[:len(frames)-1] {
		assert.NotEqual(t, "done", f["type"])
		assert.NotEqual(t, "error", f["type"])
		if f["type"] == "content" {
			streamed.WriteString(f["content"].(string))
		}
	}
	assert.Contains(t, streamed.String(), replyText)

	resp, raw = a.do(t, http.MethodGet, "/api/chatbot/v1/sessions/"+session.Id.String(), token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var history struct {
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	decode(t, raw, &history)
	assert.Len(t, history.Messages, 2)
}

func TestChatbotController_RejectedTurns(t *testing.T) {
	a := newTestApp(t)
	owner := uuid.New()
	assistant := a.plainAssistant(t, owner)

	resp, raw := a.do(t, http.MethodPost, "/api/chatbot/v1/sessions", tokenFor(t, owner), map[string]interface{}{"assistant_id": assistant.Id})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var session struct {
		Id uuid.UUID `json:"id"`
	}
	decode(t, raw, &session)

	t.Run("empty message is a plain 400", func(t *testing.T) {
		resp, _ := a.do(t, http.MethodPost, "/api/chatbot/v1/sessions/"+session.Id.String()+"/messages", tokenFor(t, owner),
			map[string]interface{}{"message": ""})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	tests := []struct {
		name      string
		sessionId uuid.UUID
		user      uuid.UUID
		status    float64
	}{
		{"unknown session", uuid.New(), owner, fiber.StatusNotFound},
		{"someone else's session", session.Id, uuid.New(), fiber.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, body := a.do(t, http.MethodPost, "/api/chatbot/v1/sessions/"+tt.sessionId.String()+"/messages", tokenFor(t, tt.user),
				map[string]interface{}{"message": "hello"})

			frames := sseFrames(t, body)
			require.Len(t, frames, 1)
			assert.Equal(t, "error", frames[0]["type"])
			assert.Equal(t, "request_rejected", frames[0]["code"])
			assert.Equal(t, tt.status, frames[0]["data"].(map[string]interface{})["status"])
		})
	}
}
