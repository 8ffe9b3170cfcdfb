package http

import (
	"crypto/subtle"

	"github.com/StakeGuard/ShieldGate/pkg/config"
	"github.com/StakeGuard/ShieldGate/pkg/infra/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const adminSecretHeader = "X-Admin-Secret"

type createTokenHandler struct {
	logger     *logrus.Logger
	jwtManager jwt.Manager
	cfg        *config.ServerConfig
}

func NewCreateTokenHandler(
	logger *logrus.Logger,
	jwtManager jwt.Manager,
	cfg *config.ServerConfig,
) Handler {
	return &createTokenHandler{
		logger:     logger,
		jwtManager: jwtManager,
		cfg:        cfg,
	}
}

// Handle exchanges the deployment secret for a short-lived admin token.
// This is the only admin route outside the JWT guard.
func (h *createTokenHandler) Handle(c *fiber.Ctx) error {
	if h.cfg.SecretKey == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "admin auth not configured"})
	}

	provided := c.Get(adminSecretHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.cfg.SecretKey)) != 1 {
		h.logger.Debug("admin token request with invalid secret")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid secret"})
	}

	token, err := h.jwtManager.CreateToken()
	if err != nil {
		h.logger.WithError(err).Error("failed to create admin token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create token"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"token": token})
}
