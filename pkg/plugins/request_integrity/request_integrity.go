package request_integrity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/pluginiface"
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	PluginName = "request_integrity"

	signatureHeader = "X-Signature"
	timestampHeader = "X-Timestamp"

	// maxSignatureAge bounds how far a signed timestamp may lag behind
	// receipt before the request is treated as replayed.
	maxSignatureAge = 5 * time.Minute
)

// RequestIntegrityPlugin verifies optional HMAC signatures on mutating
// requests. Clients that sign get replay and tamper protection; clients
// that send neither header pass through untouched, so rollout can be
// gradual.
type RequestIntegrityPlugin struct {
	logger *logrus.Logger
	scorer *reputation.Scorer
	bus    *events.Bus
	secret []byte
}

func NewRequestIntegrityPlugin(
	logger *logrus.Logger,
	scorer *reputation.Scorer,
	bus *events.Bus,
	signingSecret string,
) pluginiface.Plugin {
	return &RequestIntegrityPlugin{
		logger: logger,
		scorer: scorer,
		bus:    bus,
		secret: []byte(signingSecret),
	}
}

func (p *RequestIntegrityPlugin) Name() string {
	return PluginName
}

func (p *RequestIntegrityPlugin) ValidateConfig(config types.PluginConfig) error {
	return nil
}

func (p *RequestIntegrityPlugin) Execute(
	ctx context.Context,
	cfg types.PluginConfig,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	if req.Method != http.MethodPost && req.Method != http.MethodPut &&
		req.Method != http.MethodPatch && req.Method != http.MethodDelete {
		return nil, nil
	}
	if len(p.secret) == 0 {
		return nil, nil
	}

	signature := req.Header(signatureHeader)
	timestamp := req.Header(timestampHeader)
	if signature == "" && timestamp == "" {
		return nil, nil
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, p.reject(req, events.EventTamperedRequest, types.CodeTamperDetected,
			map[string]interface{}{"reason": "unparseable timestamp"})
	}

	age := req.ReceivedAt.Sub(time.Unix(unix, 0))
	if age > maxSignatureAge || age < -maxSignatureAge {
		return nil, p.reject(req, events.EventReplayAttack, types.CodeReplayAttackDetected,
			map[string]interface{}{"age_seconds": int(age.Seconds())})
	}

	if !hmac.Equal([]byte(signature), []byte(p.sign(req.Body, timestamp))) {
		return nil, p.reject(req, events.EventTamperedRequest, types.CodeTamperDetected,
			map[string]interface{}{"reason": "signature mismatch"})
	}

	return nil, nil
}

func (p *RequestIntegrityPlugin) sign(body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(body)
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

func (p *RequestIntegrityPlugin) reject(
	req *types.RequestContext,
	eventType events.Type,
	code string,
	details map[string]interface{},
) *types.PluginError {
	severity := events.SeverityHigh
	if eventType == events.EventReplayAttack {
		severity = events.SeverityCritical
	}

	p.scorer.ReportViolation(req.Identifier, reputation.ViolationAttackAttempt)
	p.bus.Record(eventType, severity, req.Identifier, req.Path, req.Method, details, true)

	return &types.PluginError{
		StatusCode: http.StatusForbidden,
		Code:       code,
		Message:    "request failed integrity verification",
	}
}
