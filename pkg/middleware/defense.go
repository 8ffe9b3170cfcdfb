package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/common"
	"github.com/StakeGuard/ShieldGate/pkg/infra/prometheus"
	"github.com/StakeGuard/ShieldGate/pkg/plugins"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// defenseMiddleware runs the plugin chain against every proxied request.
// A rejection answers immediately with the plugin's status and stable
// code; an allowed request continues to the forwarding handler and the
// final response is fed back to the observer plugins.
type defenseMiddleware struct {
	logger  *logrus.Logger
	manager plugins.Manager
	now     func() time.Time
}

type DefenseOpts struct {
	TimeProvider func() time.Time
}

func NewDefenseMiddleware(logger *logrus.Logger, manager plugins.Manager, opts *DefenseOpts) Middleware {
	now := time.Now
	if opts != nil && opts.TimeProvider != nil {
		now = opts.TimeProvider
	}
	return &defenseMiddleware{
		logger:  logger,
		manager: manager,
		now:     now,
	}
}

func (m *defenseMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := m.buildRequestContext(c)
		resp := &types.ResponseContext{}

		start := m.now()
		_, err := m.manager.ExecutePreRequest(c.UserContext(), req, resp)
		prometheus.DecisionLatency.WithLabelValues("pre_request").
			Observe(float64(m.now().Sub(start).Microseconds()) / 1000.0)

		if err != nil {
			var pluginErr *types.PluginError
			if errors.As(err, &pluginErr) {
				return m.reject(c, req, pluginErr)
			}
			m.logger.WithError(err).Error("defense chain failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal error",
				"code":  "INTERNAL_ERROR",
			})
		}

		prometheus.RequestsTotal.WithLabelValues(req.Method, "allowed").Inc()

		nextErr := c.Next()

		resp.StatusCode = c.Response().StatusCode()
		resp.Size = len(c.Response().Body())
		m.manager.NotifyResponse(c.UserContext(), req, resp)

		return nextErr
	}
}

func (m *defenseMiddleware) reject(c *fiber.Ctx, req *types.RequestContext, pluginErr *types.PluginError) error {
	prometheus.RequestsTotal.WithLabelValues(req.Method, "rejected").Inc()
	prometheus.RejectionsTotal.WithLabelValues(pluginErr.Code).Inc()

	m.logger.WithFields(logrus.Fields{
		"identifier": req.Identifier,
		"path":       req.Path,
		"method":     req.Method,
		"code":       pluginErr.Code,
		"status":     pluginErr.StatusCode,
	}).Info("request rejected by defense chain")

	body := fiber.Map{
		"error": pluginErr.Message,
		"code":  pluginErr.Code,
	}
	if pluginErr.RetryAfter > 0 {
		body["retry_after"] = pluginErr.RetryAfter
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(pluginErr.RetryAfter))
	}
	if pluginErr.Challenge {
		body["challenge"] = true
	}
	return c.Status(pluginErr.StatusCode).JSON(body)
}

func (m *defenseMiddleware) buildRequestContext(c *fiber.Ctx) *types.RequestContext {
	identifier, ok := c.Locals(common.IdentifierLocalKey).(string)
	if !ok || identifier == "" {
		identifier = common.UnknownIdentifier
	}
	country, _ := c.Locals(common.CountryLocalKey).(string)

	req := &types.RequestContext{
		Context:    c.UserContext(),
		Identifier: identifier,
		Country:    country,
		Headers:    make(map[string][]string),
		Method:     c.Method(),
		Path:       c.Path(),
		Body:       c.Body(),
		Metadata:   make(map[string]interface{}),
		Stage:      types.PreRequest,
		ReceivedAt: m.now(),
	}
	for key, values := range c.GetReqHeaders() {
		req.Headers[key] = values
	}
	return req
}
