package middleware

import (
	"github.com/StakeGuard/ShieldGate/pkg/common"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type panicRecoverMiddleware struct {
	logger *logrus.Logger
}

// NewPanicRecoverMiddleware converts handler panics into the same
// stable-code JSON shape the defense chain answers with, so callers
// never see a half-written response.
func NewPanicRecoverMiddleware(logger *logrus.Logger) Middleware {
	return &panicRecoverMiddleware{logger: logger}
}

func (m *panicRecoverMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				identifier, _ := c.Locals(common.IdentifierLocalKey).(string)
				m.logger.WithFields(logrus.Fields{
					"error":      r,
					"path":       c.Path(),
					"method":     c.Method(),
					"identifier": identifier,
				}).Error("recovered from panic in request handler")

				// The response is buffered, so whatever the handler wrote
				// before panicking is replaced wholesale.
				_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "internal error",
					"code":  "INTERNAL_ERROR",
				})
			}
		}()

		return c.Next()
	}
}
