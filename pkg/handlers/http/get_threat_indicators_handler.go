package http

import (
	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type getThreatIndicatorsHandler struct {
	logger *logrus.Logger
	bus    *events.Bus
}

func NewGetThreatIndicatorsHandler(logger *logrus.Logger, bus *events.Bus) Handler {
	return &getThreatIndicatorsHandler{
		logger: logger,
		bus:    bus,
	}
}

// Handle reports the identifier's current threat score and the derived
// indicators.
func (h *getThreatIndicatorsHandler) Handle(c *fiber.Ctx) error {
	identifier := c.Params("identifier")
	if identifier == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "identifier required"})
	}

	indicators := h.bus.ThreatIndicators(identifier)
	if indicators == nil {
		indicators = []string{}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"identifier":   identifier,
		"threat_score": h.bus.ThreatScore(identifier),
		"indicators":   indicators,
	})
}
