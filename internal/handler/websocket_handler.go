package handler

import (
	"context"
	"encoding/json"
	"strings"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/service"
	internalWS "ai-assistant-be/internal/websocket"
	"ai-assistant-be/pkg/rag/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	websocketModule = "WebsocketHandler"

	inboundMessage = "message"
	outboundTurn   = "turn"
)

// inboundEnvelope is what clients send over the socket.
type inboundEnvelope struct {
	Type      string `json:"type"`
	RequestId string `json:"request_id"`
	dto.SendMessageRequest
}

// TurnFrame tags each frame with the request it belongs to so a client can
// run several sessions over one connection.
type TurnFrame struct {
	RequestId string `json:"request_id,omitempty"`
	stream.Frame
}

type WebsocketHandler struct {
	chatbotService service.IChatbotService
	hub            *internalWS.Hub
	jwtSecret      string
	logger         logger.ILogger
}

func NewWebsocketHandler(chatbotService service.IChatbotService, hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *WebsocketHandler {
	h := &WebsocketHandler{
		chatbotService: chatbotService,
		hub:            hub,
		jwtSecret:      jwtSecret,
		logger:         log,
	}
	hub.OnMessage(h.handleInbound)
	return h
}

func (h *WebsocketHandler) RegisterRoutes(app fiber.Router) {
	app.Get("/ws", h.ServeWs)
}

// ServeWs authenticates with the token query parameter (browsers cannot
// set headers on the upgrade) or the Authorization header.
func (h *WebsocketHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	}
	if tokenStr == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}

	userId, err := serverutils.ParseToken(tokenStr, h.jwtSecret)
	if err != nil {
		h.logger.Warn(websocketModule, "Invalid token in handshake", map[string]interface{}{"error": err.Error()})
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info(websocketModule, "Session started", map[string]interface{}{"user_id": userId})
		internalWS.ServeWs(h.hub, conn, userId)
		h.logger.Info(websocketModule, "Session ended", map[string]interface{}{"user_id": userId})
	})(c)
}

func (h *WebsocketHandler) handleInbound(client *internalWS.Client, payload []byte) {
	var in inboundEnvelope
	if err := json.Unmarshal(payload, &in); err != nil || in.Type != inboundMessage {
		_ = client.Emit(outboundTurn, TurnFrame{
			RequestId: in.RequestId,
			Frame:     stream.Frame{Type: stream.FrameError, Code: constant.ErrorCodeRejected, Message: "Unsupported message"},
		})
		return
	}
	if err := serverutils.ValidateRequest(in.SendMessageRequest); err != nil {
		_ = client.Emit(outboundTurn, TurnFrame{
			RequestId: in.RequestId,
			Frame:     stream.Frame{Type: stream.FrameError, Code: constant.ErrorCodeRejected, Message: err.Error()},
		})
		return
	}

	// Turns run off the read loop so pings keep flowing while they stream.
	go h.runTurn(client, in)
}

func (h *WebsocketHandler) runTurn(client *internalWS.Client, in inboundEnvelope) {
	tracker := &serverutils.TerminalTracker{Next: func(f stream.Frame) error {
		return client.Emit(outboundTurn, TurnFrame{RequestId: in.RequestId, Frame: f})
	}}

	_, err := h.chatbotService.SendMessage(context.Background(), client.UserId, &in.SendMessageRequest, tracker.Emit)
	if err == nil || tracker.Terminated() {
		return
	}

	h.logger.Warn(websocketModule, "Turn rejected", map[string]interface{}{"user_id": client.UserId, "error": err.Error()})
	_ = client.Emit(outboundTurn, TurnFrame{RequestId: in.RequestId, Frame: serverutils.RejectedFrame(err)})
}
