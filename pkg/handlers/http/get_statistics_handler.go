package http

import (
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const defaultStatsWindow = time.Hour

type getStatisticsHandler struct {
	logger *logrus.Logger
	bus    *events.Bus
}

func NewGetStatisticsHandler(logger *logrus.Logger, bus *events.Bus) Handler {
	return &getStatisticsHandler{
		logger: logger,
		bus:    bus,
	}
}

// Handle returns aggregate security statistics over a window given by
// the "window" query parameter (Go duration syntax, default 1h).
func (h *getStatisticsHandler) Handle(c *fiber.Ctx) error {
	window := defaultStatsWindow
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid window"})
		}
		window = parsed
	}

	return c.Status(fiber.StatusOK).JSON(h.bus.Stats(window))
}
