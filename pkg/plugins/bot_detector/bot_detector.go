package bot_detector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/fingerprint"
	"github.com/StakeGuard/ShieldGate/pkg/infra/pluginiface"
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/avct/uasurfer"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const (
	PluginName = "bot_detector"

	// replayWindow is the interval below which an identical fingerprint
	// repeat is considered faster than a human can act.
	replayWindow = 50 * time.Millisecond
)

type Config struct {
	// ChallengeThreshold and BlockThreshold split the score range into
	// pass / soft-challenge / hard-block.
	ChallengeThreshold int `mapstructure:"challenge_threshold"`
	BlockThreshold     int `mapstructure:"block_threshold"`
}

type BotDetectorPlugin struct {
	logger  *logrus.Logger
	tracker *fingerprint.Tracker
	scorer  *reputation.Scorer
	bus     *events.Bus
}

func NewBotDetectorPlugin(
	logger *logrus.Logger,
	tracker *fingerprint.Tracker,
	scorer *reputation.Scorer,
	bus *events.Bus,
) pluginiface.Plugin {
	return &BotDetectorPlugin{
		logger:  logger,
		tracker: tracker,
		scorer:  scorer,
		bus:     bus,
	}
}

func (p *BotDetectorPlugin) Name() string {
	return PluginName
}

func (p *BotDetectorPlugin) ValidateConfig(config types.PluginConfig) error {
	var cfg Config
	if err := mapstructure.Decode(config.Settings, &cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.ChallengeThreshold < 0 || cfg.BlockThreshold < 0 {
		return fmt.Errorf("thresholds must be non-negative")
	}
	if cfg.BlockThreshold != 0 && cfg.ChallengeThreshold > cfg.BlockThreshold {
		return fmt.Errorf("challenge_threshold must not exceed block_threshold")
	}
	return nil
}

func (p *BotDetectorPlugin) Execute(
	ctx context.Context,
	cfg types.PluginConfig,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	var conf Config
	if err := mapstructure.Decode(cfg.Settings, &conf); err != nil {
		p.logger.WithError(err).Error("failed to decode bot detector config")
		conf = Config{}
	}
	if conf.ChallengeThreshold == 0 {
		conf.ChallengeThreshold = 100
	}
	if conf.BlockThreshold == 0 {
		conf.BlockThreshold = 150
	}

	score, indicators := p.classify(req)

	if req.Metadata == nil {
		req.Metadata = make(map[string]interface{})
	}
	req.Metadata["bot_score"] = score
	req.Metadata["bot_indicators"] = indicators

	if score >= conf.BlockThreshold {
		p.scorer.ReportViolation(req.Identifier, reputation.ViolationBotDetected)
		p.bus.Record(
			events.EventBotDetected,
			events.SeverityHigh,
			req.Identifier,
			req.Path,
			req.Method,
			map[string]interface{}{"score": score, "indicators": indicators},
			true,
		)
		return nil, &types.PluginError{
			StatusCode: http.StatusForbidden,
			Code:       types.CodeBotDetected,
			Message:    "automated traffic detected",
		}
	}

	if score >= conf.ChallengeThreshold {
		// Soft rejection: the caller is invited to prove humanness and
		// retry. No reputation penalty for a single suspicion.
		p.bus.Record(
			events.EventSuspiciousActivity,
			events.SeverityLow,
			req.Identifier,
			req.Path,
			req.Method,
			map[string]interface{}{"score": score, "indicators": indicators},
			true,
		)
		return nil, &types.PluginError{
			StatusCode: http.StatusForbidden,
			Code:       types.CodeBotSuspected,
			Message:    "verification required",
			Challenge:  true,
		}
	}

	return &types.PluginResponse{
		Metadata: map[string]interface{}{"bot_score": score},
	}, nil
}

// classify computes the heuristic suspicion score from header shape,
// known automation signatures, and fingerprint replay. Each signal is
// additive and independent; the exact weights are part of the contract.
func (p *BotDetectorPlugin) classify(req *types.RequestContext) (int, []string) {
	score := 0
	var indicators []string

	add := func(points int, indicator string) {
		score += points
		indicators = append(indicators, indicator)
	}

	// Legitimate browsers always send these.
	if req.Header("Accept-Language") == "" {
		add(20, "missing accept-language")
	}
	if req.Header("Accept") == "" {
		add(15, "missing accept")
	}
	if req.Header("Accept-Encoding") == "" {
		add(10, "missing accept-encoding")
	}

	ua := strings.ToLower(req.Header("User-Agent"))
	if matched := matchAny(ua, automationSignatures); matched != "" {
		add(50, "automation signature: "+matched)
	} else if matched := matchAny(ua, headlessSignatures); matched != "" {
		add(50, "headless browser: "+matched)
	} else if matched := matchAny(ua, genericBotSignatures); matched != "" {
		add(30, "bot signature: "+matched)
	} else if ua != "" {
		parsed := uasurfer.Parse(ua)
		if parsed.Browser.Name == uasurfer.BrowserUnknown && parsed.DeviceType == uasurfer.DeviceUnknown {
			add(15, "unrecognized user-agent")
		}
	}

	for header, points := range automationHeaders {
		if req.Header(header) != "" {
			add(points, "automation header: "+header)
		}
	}

	if req.Header("X-Requested-With") != "" && req.Header("Referer") == "" {
		add(25, "ajax without referer")
	}

	hash := fingerprint.Compute(req.Identifier, req.Headers)
	if p.tracker.Observe(hash, replayWindow) {
		add(30, "fingerprint replay under 50ms")
	}

	return score, indicators
}

func matchAny(haystack string, needles []string) string {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return needle
		}
	}
	return ""
}
