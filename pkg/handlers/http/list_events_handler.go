package http

import (
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type listEventsHandler struct {
	logger *logrus.Logger
	bus    *events.Bus
}

func NewListEventsHandler(logger *logrus.Logger, bus *events.Bus) Handler {
	return &listEventsHandler{
		logger: logger,
		bus:    bus,
	}
}

// Handle lists retained security events, newest last. Optional query
// parameters: "window" (Go duration, default everything retained),
// "type" and "identifier" filters.
func (h *listEventsHandler) Handle(c *fiber.Ctx) error {
	var window time.Duration
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid window"})
		}
		window = parsed
	}

	typeFilter := c.Query("type")
	identifierFilter := c.Query("identifier")

	all := h.bus.RecentEvents(window)
	filtered := make([]events.Event, 0, len(all))
	for _, evt := range all {
		if typeFilter != "" && string(evt.Type) != typeFilter {
			continue
		}
		if identifierFilter != "" && evt.Identifier != identifierFilter {
			continue
		}
		filtered = append(filtered, evt)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count":  len(filtered),
		"events": filtered,
	})
}
