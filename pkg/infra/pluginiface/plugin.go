package pluginiface

import (
	"context"

	"github.com/StakeGuard/ShieldGate/pkg/types"
)

// Plugin is one check in the defense chain. Execute runs at the
// pre-request stage and either allows (nil error, optional annotations)
// or rejects the request by returning a *types.PluginError. Internal
// failures must degrade to "no signal": a plugin never rejects because
// it could not evaluate.
type Plugin interface {
	Name() string
	// ValidateConfig is called once when the chain is assembled.
	ValidateConfig(config types.PluginConfig) error
	Execute(
		ctx context.Context,
		cfg types.PluginConfig,
		req *types.RequestContext,
		resp *types.ResponseContext,
	) (*types.PluginResponse, error)
}

// Observer is the post-response half of a two-phase plugin. OnResponse
// runs after the upstream answered, with the final status and payload
// size filled into resp. It must not block and has no way to reject the
// current request; it feeds state for future decisions.
type Observer interface {
	OnResponse(ctx context.Context, req *types.RequestContext, resp *types.ResponseContext)
}
