package middleware

import (
	"context"

	"github.com/StakeGuard/ShieldGate/pkg/common"
	"github.com/StakeGuard/ShieldGate/pkg/infra/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// identityMiddleware resolves the caller's stable identifier before
// anything else looks at the request. Every downstream decision keys on
// what is stored here.
type identityMiddleware struct {
	logger   *logrus.Logger
	resolver *identity.Resolver
}

func NewIdentityMiddleware(logger *logrus.Logger, resolver *identity.Resolver) Middleware {
	return &identityMiddleware{
		logger:   logger,
		resolver: resolver,
	}
}

func (m *identityMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		headers := c.GetReqHeaders()
		identifier, country := m.resolver.Resolve(c.Context().RemoteAddr().String(), headers)

		c.Locals(common.IdentifierLocalKey, identifier)
		c.Locals(common.CountryLocalKey, country)

		traceID := c.Get("X-Request-Id")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Locals(string(common.TraceIdKey), traceID)

		ctx := context.WithValue(c.UserContext(), common.IdentifierContextKey, identifier)
		ctx = context.WithValue(ctx, common.TraceIdKey, traceID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}
