package honeypot

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/pluginiface"
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"
)

const PluginName = "honeypot"

// decoyFields are form field names that are rendered invisibly in the
// frontend. Humans never fill them; autofill bots do.
var decoyFields = []string{
	"website",
	"company",
	"fax",
	"address",
	"honeypot",
	"url2",
	"email_confirm",
}

type Config struct {
	// ExemptPathPrefixes lists endpoints whose legitimate payloads may
	// contain decoy-looking field names.
	ExemptPathPrefixes []string `mapstructure:"exempt_path_prefixes"`
}

// HoneypotPlugin inspects mutating request bodies for decoy form fields.
// A filled decoy is near-certain automation, so it is scored like a
// confirmed bot. Malformed or non-JSON bodies pass: the upstream owns
// payload validation.
type HoneypotPlugin struct {
	logger *logrus.Logger
	scorer *reputation.Scorer
	bus    *events.Bus
}

func NewHoneypotPlugin(
	logger *logrus.Logger,
	scorer *reputation.Scorer,
	bus *events.Bus,
) pluginiface.Plugin {
	return &HoneypotPlugin{
		logger: logger,
		scorer: scorer,
		bus:    bus,
	}
}

func (p *HoneypotPlugin) Name() string {
	return PluginName
}

func (p *HoneypotPlugin) ValidateConfig(config types.PluginConfig) error {
	var cfg Config
	if err := mapstructure.Decode(config.Settings, &cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

func (p *HoneypotPlugin) Execute(
	ctx context.Context,
	cfg types.PluginConfig,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	if req.Method != http.MethodPost && req.Method != http.MethodPut && req.Method != http.MethodPatch {
		return nil, nil
	}
	if len(req.Body) == 0 {
		return nil, nil
	}

	var conf Config
	if err := mapstructure.Decode(cfg.Settings, &conf); err != nil {
		p.logger.WithError(err).Error("failed to decode honeypot config")
	}
	for _, prefix := range conf.ExemptPathPrefixes {
		if strings.HasPrefix(req.Path, prefix) {
			return nil, nil
		}
	}

	field := filledDecoyField(req.Body)
	if field == "" {
		return nil, nil
	}

	p.scorer.ReportViolation(req.Identifier, reputation.ViolationBotDetected)
	p.bus.Record(
		events.EventHoneypotTriggered,
		events.SeverityHigh,
		req.Identifier,
		req.Path,
		req.Method,
		map[string]interface{}{"field": field},
		true,
	)
	return nil, &types.PluginError{
		StatusCode: http.StatusForbidden,
		Code:       types.CodeBotDetected,
		Message:    "request rejected",
	}
}

// filledDecoyField returns the first decoy field carrying a non-empty
// value, or "" if none. Parse failures mean "not a JSON object", which
// is not this plugin's concern.
func filledDecoyField(body []byte) string {
	var parser fastjson.Parser
	v, err := parser.ParseBytes(body)
	if err != nil || v.Type() != fastjson.TypeObject {
		return ""
	}

	for _, field := range decoyFields {
		fv := v.Get(field)
		if fv == nil {
			continue
		}
		switch fv.Type() {
		case fastjson.TypeString:
			if len(fv.GetStringBytes()) > 0 {
				return field
			}
		case fastjson.TypeNull:
			// Explicit null counts as empty.
		default:
			return field
		}
	}
	return ""
}
