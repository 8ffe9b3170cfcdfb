package rate_limiter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/config"
	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/pluginiface"
	"github.com/StakeGuard/ShieldGate/pkg/infra/ratelimit"
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/sirupsen/logrus"
)

const PluginName = "rate_limiter"

// endpointRule is an EndpointLimit with its window parsed once at
// construction instead of on every request.
type endpointRule struct {
	name       string
	pathPrefix string
	limit      int
	window     time.Duration
}

// RateLimiterPlugin applies two layers: an adaptive per-identifier token
// bucket whose allowance shrinks with reputation, and absolute
// fixed-window counters on named sensitive endpoints. The endpoint layer
// runs first so a burst against /api/auth/login cannot hide inside an
// otherwise healthy global allowance.
type RateLimiterPlugin struct {
	logger  *logrus.Logger
	buckets *ratelimit.BucketStore
	windows *ratelimit.WindowStore
	scorer  *reputation.Scorer
	bus     *events.Bus
	rules   []endpointRule
}

func NewRateLimiterPlugin(
	logger *logrus.Logger,
	buckets *ratelimit.BucketStore,
	windows *ratelimit.WindowStore,
	scorer *reputation.Scorer,
	bus *events.Bus,
	limits []config.EndpointLimit,
) pluginiface.Plugin {
	rules := make([]endpointRule, 0, len(limits))
	for _, l := range limits {
		window, err := time.ParseDuration(l.Window)
		if err != nil || window <= 0 {
			logger.WithFields(logrus.Fields{
				"endpoint": l.Name,
				"window":   l.Window,
			}).Error("skipping endpoint limit with invalid window")
			continue
		}
		rules = append(rules, endpointRule{
			name:       l.Name,
			pathPrefix: l.PathPrefix,
			limit:      l.Limit,
			window:     window,
		})
	}
	return &RateLimiterPlugin{
		logger:  logger,
		buckets: buckets,
		windows: windows,
		scorer:  scorer,
		bus:     bus,
		rules:   rules,
	}
}

func (p *RateLimiterPlugin) Name() string {
	return PluginName
}

func (p *RateLimiterPlugin) ValidateConfig(config types.PluginConfig) error {
	return nil
}

func (p *RateLimiterPlugin) Execute(
	ctx context.Context,
	cfg types.PluginConfig,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	for _, rule := range p.rules {
		if !strings.HasPrefix(req.Path, rule.pathPrefix) {
			continue
		}
		key := rule.name + ":" + req.Identifier
		allowed, retryAfter := p.windows.Hit(key, rule.limit, rule.window)
		if allowed {
			continue
		}

		p.scorer.ReportViolation(req.Identifier, reputation.ViolationRateLimit)
		p.bus.Record(
			events.EventRateLimitExceeded,
			events.SeverityMedium,
			req.Identifier,
			req.Path,
			req.Method,
			map[string]interface{}{"endpoint": rule.name, "limit": rule.limit},
			true,
		)
		return nil, &types.PluginError{
			StatusCode: http.StatusTooManyRequests,
			Code:       types.CodeEndpointRateLimitExceeded,
			Message:    fmt.Sprintf("rate limit exceeded for %s", rule.name),
			RetryAfter: retryAfter,
		}
	}

	tier := reputation.LimiterTier(p.scorer.Get(req.Identifier).Score)
	allowed, retryAfter := p.buckets.TryConsume(req.Identifier, tier.Capacity, tier.RefillPerSec)
	if !allowed {
		p.scorer.ReportViolation(req.Identifier, reputation.ViolationRateLimit)
		p.bus.Record(
			events.EventRateLimitExceeded,
			events.SeverityMedium,
			req.Identifier,
			req.Path,
			req.Method,
			map[string]interface{}{"capacity": tier.Capacity, "refill_per_sec": tier.RefillPerSec},
			true,
		)
		return nil, &types.PluginError{
			StatusCode: http.StatusTooManyRequests,
			Code:       types.CodeRateLimitExceeded,
			Message:    "too many requests",
			RetryAfter: retryAfter,
		}
	}

	return nil, nil
}
