package serverutils

import (
	"errors"

	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/pkg/rag"
	"ai-assistant-be/pkg/rag/access"

	"github.com/gofiber/fiber/v2"
)

type Response[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) *Response[T] {
	return &Response[T]{
		Success: true,
		Code:    fiber.StatusOK,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, message string) *Response[any] {
	return &Response[any]{Code: code, Message: message}
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) (int, string) {
	var fe *fiber.Error
	var ve *ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, ve.Error()
	case errors.Is(err, contract.ErrNotFound):
		return fiber.StatusNotFound, "Resource not found"
	case errors.Is(err, access.ErrForbidden):
		return fiber.StatusForbidden, "Access denied"
	case errors.Is(err, contract.ErrLockNotAcquired):
		return fiber.StatusConflict, "This conversation is still answering a previous message"
	case rag.IsFatal(err):
		return fiber.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, rag.ErrExtractionFailed):
		return fiber.StatusUnprocessableEntity, err.Error()
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

// ErrorHandlerMiddleware turns errors returned by handlers into the
// standard response envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
