package exfiltration

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const (
	PluginName = "exfiltration"

	defaultLargeResponseBytes = 500 * 1024
	defaultMaxLargeResponses  = 10
	defaultWindow             = time.Minute
)

type Config struct {
	MaxLargeResponses int    `mapstructure:"max_large_responses"`
	Window            string `mapstructure:"window"`
}

// ExfiltrationPlugin watches for bulk data pulls. OnResponse flags
// oversized payloads as data_exfiltration events; Execute cuts the
// identifier off once too many of those stack up inside the window.
type ExfiltrationPlugin struct {
	logger *logrus.Logger
	scorer *reputation.Scorer
	bus    *events.Bus
}

func NewExfiltrationPlugin(
	logger *logrus.Logger,
	scorer *reputation.Scorer,
	bus *events.Bus,
) *ExfiltrationPlugin {
	return &ExfiltrationPlugin{
		logger: logger,
		scorer: scorer,
		bus:    bus,
	}
}

func (p *ExfiltrationPlugin) Name() string {
	return PluginName
}

func (p *ExfiltrationPlugin) ValidateConfig(config types.PluginConfig) error {
	var cfg Config
	if err := mapstructure.Decode(config.Settings, &cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.MaxLargeResponses < 0 {
		return fmt.Errorf("max_large_responses must be non-negative")
	}
	if cfg.Window != "" {
		if _, err := time.ParseDuration(cfg.Window); err != nil {
			return fmt.Errorf("invalid window: %w", err)
		}
	}
	return nil
}

func (p *ExfiltrationPlugin) Execute(
	ctx context.Context,
	cfg types.PluginConfig,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	conf := p.decode(cfg)

	window := defaultWindow
	if conf.Window != "" {
		if parsed, err := time.ParseDuration(conf.Window); err == nil && parsed > 0 {
			window = parsed
		}
	}

	recent := p.bus.CountEvents(req.Identifier, events.EventDataExfiltration, window)
	if recent < conf.MaxLargeResponses {
		return nil, nil
	}

	p.scorer.ReportViolation(req.Identifier, reputation.ViolationAttackAttempt)
	p.bus.Record(
		events.EventDataExfiltration,
		events.SeverityCritical,
		req.Identifier,
		req.Path,
		req.Method,
		map[string]interface{}{"recent_large_responses": recent, "window": window.String()},
		true,
	)
	return nil, &types.PluginError{
		StatusCode: http.StatusForbidden,
		Code:       types.CodeDataExfiltration,
		Message:    "unusual data volume detected",
	}
}

// OnResponse records one data_exfiltration event per oversized payload.
func (p *ExfiltrationPlugin) OnResponse(
	ctx context.Context,
	req *types.RequestContext,
	resp *types.ResponseContext,
) {
	if resp.Size <= defaultLargeResponseBytes {
		return
	}

	p.bus.Record(
		events.EventDataExfiltration,
		events.SeverityHigh,
		req.Identifier,
		req.Path,
		req.Method,
		map[string]interface{}{"response_bytes": resp.Size},
		false,
	)
}

func (p *ExfiltrationPlugin) decode(cfg types.PluginConfig) Config {
	var conf Config
	if err := mapstructure.Decode(cfg.Settings, &conf); err != nil {
		p.logger.WithError(err).Error("failed to decode exfiltration config")
	}
	if conf.MaxLargeResponses == 0 {
		conf.MaxLargeResponses = defaultMaxLargeResponses
	}
	return conf
}
