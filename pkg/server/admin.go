package server

import (
	"fmt"

	handlers "github.com/StakeGuard/ShieldGate/pkg/handlers/http"
	"github.com/StakeGuard/ShieldGate/pkg/middleware"
	"github.com/gofiber/fiber/v2"

	"github.com/sirupsen/logrus"

	"github.com/StakeGuard/ShieldGate/pkg/config"
)

type (
	AdminServerDI struct {
		MiddlewareTransport middleware.Transport
		HandlerTransport    handlers.HandlerTransport
		Config              *config.Config
		Logger              *logrus.Logger
	}
	AdminServer struct {
		*BaseServer
		middlewareTransport middleware.Transport
		handlerTransport    handlers.HandlerTransport
	}
)

func NewAdminServer(di AdminServerDI) *AdminServer {
	return &AdminServer{
		BaseServer:          NewBaseServer(di.Config, di.Logger),
		middlewareTransport: di.MiddlewareTransport,
		handlerTransport:    di.HandlerTransport,
	}
}

func (s *AdminServer) Run() error {
	s.setupRoutes()
	s.setupHealthCheck()

	addr := fmt.Sprintf(":%d", s.config.Server.AdminPort)
	s.logger.WithField("addr", addr).Info("starting admin server")
	return s.router.Listen(addr)
}

func (s *AdminServer) setupRoutes() {
	s.router.Use(s.middlewareTransport.PanicRecoverMiddleware.Middleware())

	baseRouter := s.router.Group("")
	s.addRoutes(baseRouter)
}

func (s *AdminServer) addRoutes(router fiber.Router) {
	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.Post("/token", s.handlerTransport.CreateTokenHandler.Handle)
		}

		security := v1.Group("/security", s.middlewareTransport.AdminAuthMiddleware.Middleware())
		{
			security.Get("/statistics", s.handlerTransport.GetStatisticsHandler.Handle)
			security.Get("/events", s.handlerTransport.ListEventsHandler.Handle)
			security.Get("/threats/:identifier", s.handlerTransport.GetThreatIndicatorsHandler.Handle)
			security.Get("/reputation/:identifier", s.handlerTransport.GetReputationHandler.Handle)
		}
	}
}

func (s *AdminServer) Shutdown() error {
	return s.router.Shutdown()
}
