package middleware

import (
	"strings"

	"github.com/StakeGuard/ShieldGate/pkg/infra/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const bearerPrefix = "Bearer "

type adminAuthMiddleware struct {
	logger     *logrus.Logger
	jwtManager jwt.Manager
}

// NewAdminAuthMiddleware guards the admin API with the bearer tokens
// issued by the token handler. Rejections carry a stable code like
// every other refusal in the gateway.
func NewAdminAuthMiddleware(
	logger *logrus.Logger,
	jwtManager jwt.Manager,
) Middleware {
	return &adminAuthMiddleware{
		logger:     logger,
		jwtManager: jwtManager,
	}
}

func (m *adminAuthMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			m.logger.Debug("missing or malformed authorization header")
			return unauthorized(c, "authorization required", "AUTH_REQUIRED")
		}

		if err := m.jwtManager.ValidateToken(token); err != nil {
			m.logger.WithError(err).Debug("admin token rejected")
			return unauthorized(c, "invalid token", "AUTH_INVALID")
		}

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(header, bearerPrefix)
	return token, token != ""
}

func unauthorized(c *fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}
