package middleware

import (
	"github.com/StakeGuard/ShieldGate/pkg/common"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const hstsValue = "max-age=31536000; includeSubDomains"

type securityHeadersMiddleware struct {
	logger      *logrus.Logger
	environment string
}

// NewSecurityHeadersMiddleware sets conservative browser hardening
// headers on every proxied response. HSTS is only meaningful behind
// TLS, so it is limited to production.
func NewSecurityHeadersMiddleware(logger *logrus.Logger, environment string) Middleware {
	return &securityHeadersMiddleware{
		logger:      logger,
		environment: environment,
	}
}

func (m *securityHeadersMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if m.environment == common.EnvironmentProduction {
			c.Set(fiber.HeaderStrictTransportSecurity, hstsValue)
		}

		return err
	}
}
