package plugins

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/StakeGuard/ShieldGate/pkg/infra/pluginiface"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/sirupsen/logrus"
)

// Manager owns the registered plugins and the ordered defense chain.
// Chain order is load-bearing: cheap identity checks run before
// expensive body inspection, and every plugin sees the annotations of
// the ones before it, so stages execute strictly sequentially.
type Manager interface {
	RegisterPlugin(plugin pluginiface.Plugin) error
	ValidatePlugin(name string, config types.PluginConfig) error
	SetChain(chain []types.PluginConfig) error
	Chain() []types.PluginConfig
	GetPlugin(name string) pluginiface.Plugin
	ExecutePreRequest(
		ctx context.Context,
		req *types.RequestContext,
		resp *types.ResponseContext,
	) (*types.PluginResponse, error)
	NotifyResponse(ctx context.Context, req *types.RequestContext, resp *types.ResponseContext)
}

type manager struct {
	mu        sync.RWMutex
	logger    *logrus.Logger
	plugins   map[string]pluginiface.Plugin
	chain     []types.PluginConfig
	observers []pluginiface.Observer
}

func NewManager(logger *logrus.Logger) Manager {
	return &manager{
		logger:  logger,
		plugins: make(map[string]pluginiface.Plugin),
	}
}

func (m *manager) RegisterPlugin(plugin pluginiface.Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := plugin.Name()
	if _, exists := m.plugins[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}
	m.plugins[name] = plugin
	if observer, ok := plugin.(pluginiface.Observer); ok {
		m.observers = append(m.observers, observer)
	}
	return nil
}

func (m *manager) ValidatePlugin(name string, config types.PluginConfig) error {
	m.mu.RLock()
	plugin, exists := m.plugins[name]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("unknown plugin: %s", name)
	}
	if err := plugin.ValidateConfig(config); err != nil {
		m.logger.WithError(err).Errorf("plugin %s validation failed", name)
		return err
	}
	return nil
}

// SetChain validates every entry and installs the chain sorted by
// ascending priority. Entries with equal priority keep their given
// order.
func (m *manager) SetChain(chain []types.PluginConfig) error {
	for _, cfg := range chain {
		if err := m.ValidatePlugin(cfg.Name, cfg); err != nil {
			return fmt.Errorf("invalid chain entry %s: %w", cfg.Name, err)
		}
	}

	sorted := make([]types.PluginConfig, len(chain))
	copy(sorted, chain)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	m.mu.Lock()
	m.chain = sorted
	m.mu.Unlock()
	return nil
}

func (m *manager) Chain() []types.PluginConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.PluginConfig, len(m.chain))
	copy(out, m.chain)
	return out
}

func (m *manager) GetPlugin(name string) pluginiface.Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plugins[name]
}

// ExecutePreRequest runs the chain in order and stops at the first
// rejection, which is returned as a *types.PluginError. Any other error
// from a plugin is logged and skipped: an internal failure must not
// turn into a denial of service.
func (m *manager) ExecutePreRequest(
	ctx context.Context,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	m.mu.RLock()
	chain := m.chain
	m.mu.RUnlock()

	var last *types.PluginResponse
	for _, cfg := range chain {
		if !cfg.Enabled {
			continue
		}
		plugin := m.GetPlugin(cfg.Name)
		if plugin == nil {
			m.logger.Errorf("chain references unregistered plugin %s", cfg.Name)
			continue
		}

		pluginResp, err := plugin.Execute(ctx, cfg, req, resp)
		if err != nil {
			var pluginErr *types.PluginError
			if errors.As(err, &pluginErr) {
				return nil, pluginErr
			}
			m.logger.WithError(err).Errorf("plugin %s failed, skipping", cfg.Name)
			continue
		}
		if pluginResp != nil {
			last = pluginResp
			for k, v := range pluginResp.Metadata {
				if req.Metadata == nil {
					req.Metadata = make(map[string]interface{})
				}
				req.Metadata[k] = v
			}
		}
	}
	return last, nil
}

// NotifyResponse fans the final response out to every registered
// observer, in registration order.
func (m *manager) NotifyResponse(
	ctx context.Context,
	req *types.RequestContext,
	resp *types.ResponseContext,
) {
	m.mu.RLock()
	observers := m.observers
	m.mu.RUnlock()

	for _, observer := range observers {
		observer.OnResponse(ctx, req, resp)
	}
}
