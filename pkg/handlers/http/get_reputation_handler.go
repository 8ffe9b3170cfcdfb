package http

import (
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type getReputationHandler struct {
	logger *logrus.Logger
	scorer *reputation.Scorer
}

func NewGetReputationHandler(logger *logrus.Logger, scorer *reputation.Scorer) Handler {
	return &getReputationHandler{
		logger: logger,
		scorer: scorer,
	}
}

// Handle returns the identifier's reputation record. Unknown identifiers
// come back with the full-trust default.
func (h *getReputationHandler) Handle(c *fiber.Ctx) error {
	identifier := c.Params("identifier")
	if identifier == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "identifier required"})
	}

	record := h.scorer.Get(identifier)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"identifier": identifier,
		"reputation": record,
	})
}
