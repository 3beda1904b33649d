package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	AssistantId uuid.UUID `json:"assistant_id" validate:"required"`
}

type SessionResponse struct {
	Id             uuid.UUID  `json:"id"`
	AssistantId    uuid.UUID  `json:"assistant_id"`
	Title          string     `json:"title"`
	WorkflowStatus string     `json:"workflow_status,omitempty"`
	CurrentStep    string     `json:"current_step,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
}

type ChatMessageResponse struct {
	Id         uuid.UUID `json:"id"`
	Role       string    `json:"role"`
	Chat       string    `json:"chat"`
	IntentKind string    `json:"intent,omitempty"`
	Sources    []string  `json:"sources,omitempty"`
	Failed     bool      `json:"failed,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type ChatHistoryResponse struct {
	Session  SessionResponse        `json:"session"`
	Messages []*ChatMessageResponse `json:"messages"`
	// Collected holds the answers and outputs gathered by the workflow so far.
	Collected map[string]string `json:"collected,omitempty"`
}

// SendMessageRequest starts a new session for AssistantId when
// ChatSessionId is empty. The websocket carries both in the body, the
// HTTP route takes the session id from the path.
type SendMessageRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id"`
	AssistantId   uuid.UUID `json:"assistant_id" validate:"required_without=ChatSessionId"`
	Message       string    `json:"message" validate:"required,max=8000"`
}

type SendMessageResponse struct {
	ChatSessionId    uuid.UUID `json:"chat_session_id"`
	ChatSessionTitle string    `json:"chat_session_title"`
	Reply            string    `json:"reply"`
	Intent           string    `json:"intent"`
	WorkflowStatus   string    `json:"workflow_status,omitempty"`
	Sources          []string  `json:"sources,omitempty"`
	Failed           bool      `json:"failed,omitempty"`
	ErrorCode        string    `json:"error_code,omitempty"`
}
