package reputation_gate

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/pluginiface"
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/sirupsen/logrus"
)

const PluginName = "reputation_gate"

// ReputationGatePlugin rejects requests from identifiers that are
// currently blocked by the reputation scorer. It runs first in the
// chain: nothing downstream should spend cycles on a blocked caller.
type ReputationGatePlugin struct {
	logger *logrus.Logger
	scorer *reputation.Scorer
	bus    *events.Bus
}

func NewReputationGatePlugin(
	logger *logrus.Logger,
	scorer *reputation.Scorer,
	bus *events.Bus,
) pluginiface.Plugin {
	return &ReputationGatePlugin{
		logger: logger,
		scorer: scorer,
		bus:    bus,
	}
}

func (p *ReputationGatePlugin) Name() string {
	return PluginName
}

func (p *ReputationGatePlugin) ValidateConfig(config types.PluginConfig) error {
	return nil
}

func (p *ReputationGatePlugin) Execute(
	ctx context.Context,
	cfg types.PluginConfig,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	rec := p.scorer.Get(req.Identifier)
	if !rec.Blocked {
		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}
		req.Metadata["reputation_score"] = rec.Score
		return nil, nil
	}

	remaining := rec.BlockedUntil.Sub(req.ReceivedAt)
	remainingMinutes := int(math.Ceil(remaining.Minutes()))
	if remainingMinutes < 1 {
		remainingMinutes = 1
	}

	p.bus.Record(
		events.EventReputationBlock,
		events.SeverityMedium,
		req.Identifier,
		req.Path,
		req.Method,
		map[string]interface{}{"score": rec.Score, "remaining_minutes": remainingMinutes},
		true,
	)

	return nil, &types.PluginError{
		StatusCode: http.StatusForbidden,
		Code:       types.CodeIPBlocked,
		Message:    fmt.Sprintf("access blocked, try again in %d minutes", remainingMinutes),
		RetryAfter: remainingMinutes * 60,
	}
}
