package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/renewal-engine/internal/observability"
	"go.uber.org/zap"
)

// ErrorHandler renders every handler error as {"error": message}. Server-side
// failures are logged at error level, client errors at warn.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}
		if requestID, ok := c.Locals(observability.RequestIDLocal).(string); ok && requestID != "" {
			fields = append(fields, zap.String("requestId", requestID))
		}

		message := err.Error()
		if code >= fiber.StatusInternalServerError {
			logger.Error("request error", fields...)
			if fiberErr == nil {
				message = "internal server error"
			}
		} else {
			logger.Warn("request rejected", fields...)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
