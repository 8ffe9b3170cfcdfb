package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/common"
	"github.com/StakeGuard/ShieldGate/pkg/config"
	"github.com/StakeGuard/ShieldGate/pkg/infra/httpx"
	"github.com/StakeGuard/ShieldGate/pkg/infra/prometheus"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const defaultUpstreamTimeout = 30 * time.Second

// hopByHopHeaders must not be forwarded between connections.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// forwardedHandler relays requests that survived the defense chain to
// the configured upstream. Upstream failures trip a circuit breaker so
// a dead backend answers fast instead of tying up connections.
type forwardedHandler struct {
	logger   *logrus.Logger
	cfg      *config.UpstreamConfig
	client   *fasthttp.Client
	breaker  httpx.CircuitBreaker
	timeout  time.Duration
	upstream string
}

func NewForwardedHandler(logger *logrus.Logger, cfg *config.UpstreamConfig) Handler {
	timeout := defaultUpstreamTimeout
	if cfg.Timeout != "" {
		if parsed, err := time.ParseDuration(cfg.Timeout); err == nil && parsed > 0 {
			timeout = parsed
		}
	}

	client := &fasthttp.Client{
		ReadTimeout:              timeout,
		WriteTimeout:             timeout,
		MaxConnsPerHost:          16384,
		MaxIdleConnDuration:      120 * time.Second,
		ReadBufferSize:           32768,
		WriteBufferSize:          32768,
		NoDefaultUserAgentHeader: true,
	}

	return &forwardedHandler{
		logger:   logger,
		cfg:      cfg,
		client:   client,
		breaker:  httpx.NewCircuitBreaker("upstream", 30*time.Second, 5),
		timeout:  timeout,
		upstream: fmt.Sprintf("%s://%s:%d", cfg.Scheme, cfg.Host, cfg.Port),
	}
}

func (h *forwardedHandler) Handle(c *fiber.Ctx) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	c.Request().CopyTo(req)
	req.SetRequestURI(h.upstream + c.OriginalURL())

	for _, header := range hopByHopHeaders {
		req.Header.Del(header)
	}
	if identifier, ok := c.Locals(common.IdentifierLocalKey).(string); ok && identifier != common.UnknownIdentifier {
		req.Header.Set("X-Forwarded-For", identifier)
	}
	if traceID, ok := c.Locals(string(common.TraceIdKey)).(string); ok && traceID != "" {
		req.Header.Set("X-Request-Id", traceID)
	}

	err := h.breaker.Execute(func() error {
		return h.client.DoTimeout(req, resp, h.timeout)
	})
	if err != nil {
		reason := "request_failed"
		if httpx.IsOpen(err) {
			reason = "breaker_open"
		} else if strings.Contains(err.Error(), "timeout") {
			reason = "timeout"
		}
		prometheus.UpstreamErrors.WithLabelValues(reason).Inc()
		h.logger.WithError(err).WithField("upstream", h.upstream).Error("upstream request failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "upstream unavailable",
			"code":  "UPSTREAM_UNAVAILABLE",
		})
	}

	resp.Header.VisitAll(func(key, value []byte) {
		c.Response().Header.SetBytesKV(key, value)
	})
	for _, header := range hopByHopHeaders {
		c.Response().Header.Del(header)
	}
	return c.Status(resp.StatusCode()).Send(resp.Body())
}
