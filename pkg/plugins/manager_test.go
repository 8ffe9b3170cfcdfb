package plugins

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlugin struct {
	name        string
	executed    *[]string
	reject      *types.PluginError
	failErr     error
	observed    *[]string
	validateErr error
}

func (p *stubPlugin) Name() string { return p.name }

func (p *stubPlugin) ValidateConfig(config types.PluginConfig) error {
	return p.validateErr
}

func (p *stubPlugin) Execute(
	ctx context.Context,
	cfg types.PluginConfig,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	*p.executed = append(*p.executed, p.name)
	if p.reject != nil {
		return nil, p.reject
	}
	if p.failErr != nil {
		return nil, p.failErr
	}
	return &types.PluginResponse{Metadata: map[string]interface{}{p.name: true}}, nil
}

func (p *stubPlugin) OnResponse(ctx context.Context, req *types.RequestContext, resp *types.ResponseContext) {
	if p.observed != nil {
		*p.observed = append(*p.observed, p.name)
	}
}

func newTestManager() Manager {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewManager(logger)
}

func TestManager_RejectsDuplicateRegistration(t *testing.T) {
	m := newTestManager()
	executed := []string{}

	require.NoError(t, m.RegisterPlugin(&stubPlugin{name: "a", executed: &executed}))
	assert.Error(t, m.RegisterPlugin(&stubPlugin{name: "a", executed: &executed}))
}

func TestManager_ChainSortedByPriority(t *testing.T) {
	m := newTestManager()
	executed := []string{}

	require.NoError(t, m.RegisterPlugin(&stubPlugin{name: "second", executed: &executed}))
	require.NoError(t, m.RegisterPlugin(&stubPlugin{name: "first", executed: &executed}))

	require.NoError(t, m.SetChain([]types.PluginConfig{
		{Name: "second", Enabled: true, Priority: 20},
		{Name: "first", Enabled: true, Priority: 10},
	}))

	req := &types.RequestContext{Metadata: map[string]interface{}{}}
	_, err := m.ExecutePreRequest(context.Background(), req, &types.ResponseContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, executed)
}

func TestManager_ShortCircuitsOnRejection(t *testing.T) {
	m := newTestManager()
	executed := []string{}

	rejection := &types.PluginError{StatusCode: 403, Code: types.CodeBotDetected, Message: "denied"}
	require.NoError(t, m.RegisterPlugin(&stubPlugin{name: "gate", executed: &executed, reject: rejection}))
	require.NoError(t, m.RegisterPlugin(&stubPlugin{name: "after", executed: &executed}))

	require.NoError(t, m.SetChain([]types.PluginConfig{
		{Name: "gate", Enabled: true, Priority: 10},
		{Name: "after", Enabled: true, Priority: 20},
	}))

	_, err := m.ExecutePreRequest(context.Background(), &types.RequestContext{}, &types.ResponseContext{})
	require.Error(t, err)

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, types.CodeBotDetected, pluginErr.Code)
	assert.Equal(t, []string{"gate"}, executed)
}

func TestManager_InternalFailureDoesNotReject(t *testing.T) {
	m := newTestManager()
	executed := []string{}

	require.NoError(t, m.RegisterPlugin(&stubPlugin{name: "broken", executed: &executed, failErr: errors.New("boom")}))
	require.NoError(t, m.RegisterPlugin(&stubPlugin{name: "after", executed: &executed}))

	require.NoError(t, m.SetChain([]types.PluginConfig{
		{Name: "broken", Enabled: true, Priority: 10},
		{Name: "after", Enabled: true, Priority: 20},
	}))

	_, err := m.ExecutePreRequest(context.Background(), &types.RequestContext{}, &types.ResponseContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"broken", "after"}, executed)
}

func TestManager_DisabledPluginSkipped(t *testing.T) {
	m := newTestManager()
	executed := []string{}

	require.NoError(t, m.RegisterPlugin(&stubPlugin{name: "off", executed: &executed}))
	require.NoError(t, m.SetChain([]types.PluginConfig{
		{Name: "off", Enabled: false, Priority: 10},
	}))

	_, err := m.ExecutePreRequest(context.Background(), &types.RequestContext{}, &types.ResponseContext{})
	require.NoError(t, err)
	assert.Empty(t, executed)
}

func TestManager_SetChainValidatesEntries(t *testing.T) {
	m := newTestManager()
	executed := []string{}

	require.NoError(t, m.RegisterPlugin(&stubPlugin{name: "picky", executed: &executed, validateErr: errors.New("bad settings")}))

	assert.Error(t, m.SetChain([]types.PluginConfig{{Name: "picky", Enabled: true}}))
	assert.Error(t, m.SetChain([]types.PluginConfig{{Name: "ghost", Enabled: true}}))
}

func TestManager_MetadataMergedIntoRequest(t *testing.T) {
	m := newTestManager()
	executed := []string{}

	require.NoError(t, m.RegisterPlugin(&stubPlugin{name: "annotator", executed: &executed}))
	require.NoError(t, m.SetChain([]types.PluginConfig{{Name: "annotator", Enabled: true, Priority: 10}}))

	req := &types.RequestContext{}
	_, err := m.ExecutePreRequest(context.Background(), req, &types.ResponseContext{})
	require.NoError(t, err)
	assert.Equal(t, true, req.Metadata["annotator"])
}

func TestManager_NotifyResponseReachesObservers(t *testing.T) {
	m := newTestManager()
	executed := []string{}
	observed := []string{}

	require.NoError(t, m.RegisterPlugin(&stubPlugin{name: "watcher", executed: &executed, observed: &observed}))

	m.NotifyResponse(context.Background(), &types.RequestContext{}, &types.ResponseContext{StatusCode: 200})
	assert.Equal(t, []string{"watcher"}, observed)
}
