package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/pkg/rag/stream"

	"github.com/gofiber/fiber/v2"
)

type IChatbotController interface {
	RegisterRoutes(r fiber.Router, jwt fiber.Handler)
	CreateSession(ctx *fiber.Ctx) error
	GetAllSessions(ctx *fiber.Ctx) error
	GetChatHistory(ctx *fiber.Ctx) error
	ResetSession(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
}

type chatbotController struct {
	chatbotService service.IChatbotService
	logger         logger.ILogger
}

func NewChatbotController(chatbotService service.IChatbotService, logger logger.ILogger) IChatbotController {
	return &chatbotController{
		chatbotService: chatbotService,
		logger:         logger,
	}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router, jwt fiber.Handler) {
	h := r.Group("/chatbot/v1", jwt)
	h.Post("sessions", c.CreateSession)
	h.Get("sessions", c.GetAllSessions)
	h.Get("sessions/:id", c.GetChatHistory)
	h.Post("sessions/:id/reset", c.ResetSession)
	h.Post("sessions/:id/messages", c.SendMessage)
}

func (c *chatbotController) CreateSession(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserId(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatbotService.CreateSession(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Session created", res))
}

func (c *chatbotController) GetAllSessions(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserId(ctx)
	if err != nil {
		return err
	}

	res, err := c.chatbotService.GetAllSessions(ctx.UserContext(), userId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get sessions", res))
}

func (c *chatbotController) GetChatHistory(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserId(ctx)
	if err != nil {
		return err
	}
	sessionId, err := serverutils.ParamId(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.chatbotService.GetChatHistory(ctx.UserContext(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatbotController) ResetSession(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserId(ctx)
	if err != nil {
		return err
	}
	sessionId, err := serverutils.ParamId(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.chatbotService.ResetSession(ctx.UserContext(), userId, sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Session reset", res))
}

// SendMessage streams the turn as server-sent events, one frame per event.
func (c *chatbotController) SendMessage(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserId(ctx)
	if err != nil {
		return err
	}
	sessionId, err := serverutils.ParamId(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	req.ChatSessionId = sessionId
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// The fiber context is recycled once the handler returns, so the stream
	// writer only sees copies.
	turnCtx, cancel := context.WithCancel(context.Background())
	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		tracker := &serverutils.TerminalTracker{Next: func(f stream.Frame) error {
			return writeEvent(w, f)
		}}

		_, err := c.chatbotService.SendMessage(turnCtx, userId, &req, tracker.Emit)
		if err != nil && !tracker.Terminated() {
			c.logger.Warn("ChatbotController", "Turn rejected", map[string]interface{}{
				"session_id": sessionId,
				"error":      err.Error(),
			})
			_ = writeEvent(w, serverutils.RejectedFrame(err))
		}
	})

	return nil
}

// writeEvent fails once the client is gone, which stops the turn's stream.
func writeEvent(w *bufio.Writer, f stream.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.Type, data); err != nil {
		return err
	}
	return w.Flush()
}
