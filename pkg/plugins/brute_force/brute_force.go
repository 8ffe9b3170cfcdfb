package brute_force

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const (
	PluginName = "brute_force"

	defaultMaxFailures = 5
	defaultWindow      = 15 * time.Minute
)

var defaultAuthPathPrefixes = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/reset-password",
	"/api/auth/2fa",
}

type Config struct {
	MaxFailures int    `mapstructure:"max_failures"`
	Window      string `mapstructure:"window"`
}

// BruteForcePlugin guards authentication endpoints. Execute rejects a
// caller whose recent authentication failures crossed the threshold;
// OnResponse is where those failures are recorded, from the upstream's
// actual 401/403 answers. Both phases watch the same path prefixes,
// fixed at construction.
type BruteForcePlugin struct {
	logger    *logrus.Logger
	scorer    *reputation.Scorer
	bus       *events.Bus
	authPaths []string
}

func NewBruteForcePlugin(
	logger *logrus.Logger,
	scorer *reputation.Scorer,
	bus *events.Bus,
	authPathPrefixes []string,
) *BruteForcePlugin {
	if len(authPathPrefixes) == 0 {
		authPathPrefixes = defaultAuthPathPrefixes
	}
	return &BruteForcePlugin{
		logger:    logger,
		scorer:    scorer,
		bus:       bus,
		authPaths: authPathPrefixes,
	}
}

func (p *BruteForcePlugin) Name() string {
	return PluginName
}

func (p *BruteForcePlugin) ValidateConfig(config types.PluginConfig) error {
	var cfg Config
	if err := mapstructure.Decode(config.Settings, &cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.MaxFailures < 0 {
		return fmt.Errorf("max_failures must be non-negative")
	}
	if cfg.Window != "" {
		if _, err := time.ParseDuration(cfg.Window); err != nil {
			return fmt.Errorf("invalid window: %w", err)
		}
	}
	return nil
}

func (p *BruteForcePlugin) Execute(
	ctx context.Context,
	cfg types.PluginConfig,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	conf := p.decode(cfg)
	if !isAuthPath(req.Path, p.authPaths) {
		return nil, nil
	}

	window := defaultWindow
	if conf.Window != "" {
		if parsed, err := time.ParseDuration(conf.Window); err == nil && parsed > 0 {
			window = parsed
		}
	}

	failures := p.bus.CountEvents(req.Identifier, events.EventAuthenticationFail, window)
	if failures < conf.MaxFailures {
		return nil, nil
	}

	p.scorer.ReportViolation(req.Identifier, reputation.ViolationAttackAttempt)
	p.bus.Record(
		events.EventBruteForce,
		events.SeverityCritical,
		req.Identifier,
		req.Path,
		req.Method,
		map[string]interface{}{"recent_failures": failures, "window": window.String()},
		true,
	)
	return nil, &types.PluginError{
		StatusCode: http.StatusForbidden,
		Code:       types.CodeBruteForceDetected,
		Message:    "too many failed authentication attempts",
	}
}

// OnResponse turns upstream auth rejections on guarded paths into
// authentication_failure events that Execute later counts.
func (p *BruteForcePlugin) OnResponse(
	ctx context.Context,
	req *types.RequestContext,
	resp *types.ResponseContext,
) {
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return
	}
	if !isAuthPath(req.Path, p.authPaths) {
		return
	}

	p.scorer.ReportViolation(req.Identifier, reputation.ViolationFailedAuth)
	p.bus.Record(
		events.EventAuthenticationFail,
		events.SeverityMedium,
		req.Identifier,
		req.Path,
		req.Method,
		map[string]interface{}{"status": resp.StatusCode},
		false,
	)
}

func (p *BruteForcePlugin) decode(cfg types.PluginConfig) Config {
	var conf Config
	if err := mapstructure.Decode(cfg.Settings, &conf); err != nil {
		p.logger.WithError(err).Error("failed to decode brute force config")
	}
	if conf.MaxFailures == 0 {
		conf.MaxFailures = defaultMaxFailures
	}
	return conf
}

func isAuthPath(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
