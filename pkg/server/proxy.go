package server

import (
	"fmt"

	handlers "github.com/StakeGuard/ShieldGate/pkg/handlers/http"
	"github.com/StakeGuard/ShieldGate/pkg/middleware"

	"github.com/sirupsen/logrus"

	"github.com/StakeGuard/ShieldGate/pkg/config"
)

type (
	ProxyServerDI struct {
		MiddlewareTransport middleware.Transport
		HandlerTransport    handlers.HandlerTransport
		Config              *config.Config
		Logger              *logrus.Logger
	}
	ProxyServer struct {
		*BaseServer
		middlewareTransport middleware.Transport
		handlerTransport    handlers.HandlerTransport
	}
)

func NewProxyServer(di ProxyServerDI) *ProxyServer {
	return &ProxyServer{
		BaseServer:          NewBaseServer(di.Config, di.Logger),
		middlewareTransport: di.MiddlewareTransport,
		handlerTransport:    di.HandlerTransport,
	}
}

func (s *ProxyServer) Run() error {
	s.setupHealthCheck()
	s.setupMetricsEndpoint()
	s.setupRoutes()

	addr := fmt.Sprintf(":%d", s.config.Server.ProxyPort)
	s.logger.WithField("addr", addr).Info("starting proxy server")
	return s.router.Listen(addr)
}

// setupRoutes wires the defense chain in front of the catch-all
// forwarder. Health and metrics are registered before the chain so
// probes never consume rate-limit tokens.
func (s *ProxyServer) setupRoutes() {
	s.router.Use(s.middlewareTransport.PanicRecoverMiddleware.Middleware())
	s.router.Use(s.middlewareTransport.IdentityMiddleware.Middleware())
	s.router.Use(s.middlewareTransport.SecurityHeadersMiddleware.Middleware())
	s.router.Use(s.middlewareTransport.DefenseMiddleware.Middleware())

	s.router.All("/*", s.handlerTransport.ForwardedHandler.Handle)
}

func (s *ProxyServer) Shutdown() error {
	return s.router.Shutdown()
}
