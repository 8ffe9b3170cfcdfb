package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(ctx *fiber.Ctx) error
}

type HandlerTransport struct {
	// Proxy
	ForwardedHandler Handler

	// Admin
	GetStatisticsHandler       Handler
	ListEventsHandler          Handler
	GetThreatIndicatorsHandler Handler
	GetReputationHandler       Handler
	CreateTokenHandler         Handler
}
