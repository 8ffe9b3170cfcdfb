package honeypot

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture() (*HoneypotPlugin, *reputation.Scorer, *events.Bus) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	scorer := reputation.NewScorer(logger, nil)
	bus := events.NewBus(logger, nil)
	plugin, _ := NewHoneypotPlugin(logger, scorer, bus).(*HoneypotPlugin)
	return plugin, scorer, bus
}

func postRequest(path string, body []byte) *types.RequestContext {
	return &types.RequestContext{
		Identifier: "1.2.3.4",
		Method:     "POST",
		Path:       path,
		Body:       body,
	}
}

func TestHoneypot_CleanBodyPasses(t *testing.T) {
	plugin, _, _ := newFixture()

	req := postRequest("/api/register", []byte(`{"username":"alice","email":"a@example.com"}`))
	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.NoError(t, err)
}

func TestHoneypot_FilledDecoyRejected(t *testing.T) {
	plugin, scorer, bus := newFixture()

	req := postRequest("/api/register", []byte(`{"username":"bot","website":"http://spam.example"}`))
	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.Error(t, err)

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, 403, pluginErr.StatusCode)
	assert.Equal(t, types.CodeBotDetected, pluginErr.Code)

	assert.Equal(t, 75, scorer.Get("1.2.3.4").Score)
	assert.Equal(t, 1, bus.CountEvents("1.2.3.4", events.EventHoneypotTriggered, time.Hour))
}

func TestHoneypot_EmptyDecoyValuePasses(t *testing.T) {
	plugin, _, _ := newFixture()

	req := postRequest("/api/register", []byte(`{"username":"alice","website":"","honeypot":null}`))
	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.NoError(t, err)
}

func TestHoneypot_NonDecoyFieldsIgnored(t *testing.T) {
	plugin, _, _ := newFixture()

	req := postRequest("/api/profile", []byte(`{"company_name":"ACME Ltd","url":"https://acme.example"}`))
	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.NoError(t, err)
}

func TestHoneypot_GetRequestsNotInspected(t *testing.T) {
	plugin, _, _ := newFixture()

	req := &types.RequestContext{
		Identifier: "1.2.3.4",
		Method:     "GET",
		Path:       "/api/register",
		Body:       []byte(`{"website":"http://spam.example"}`),
	}
	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.NoError(t, err)
}

func TestHoneypot_MalformedBodyPasses(t *testing.T) {
	plugin, _, _ := newFixture()

	req := postRequest("/api/register", []byte(`{"website": broken`))
	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.NoError(t, err)
}

func TestHoneypot_ExemptPathPrefixSkipsScan(t *testing.T) {
	plugin, _, _ := newFixture()

	cfg := types.PluginConfig{Settings: map[string]interface{}{
		"exempt_path_prefixes": []string{"/api/withdrawals"},
	}}

	// legitimate withdrawal payloads may carry decoy-looking fields
	req := postRequest("/api/withdrawals", []byte(`{"amount":100,"company":"ACME Bank"}`))
	_, err := plugin.Execute(context.Background(), cfg, req, nil)
	require.NoError(t, err)

	req = postRequest("/api/register", []byte(`{"company":"ACME Bank"}`))
	_, err = plugin.Execute(context.Background(), cfg, req, nil)
	require.Error(t, err)
}

func TestHoneypot_AddressFieldOnlyAllowedOnExemptPaths(t *testing.T) {
	plugin, _, _ := newFixture()

	cfg := types.PluginConfig{Settings: map[string]interface{}{
		"exempt_path_prefixes": []string{"/api/withdrawals"},
	}}
	body := []byte(`{"amount":100,"address":"bc1qxyz"}`)

	req := postRequest("/api/withdrawals", body)
	_, err := plugin.Execute(context.Background(), cfg, req, nil)
	require.NoError(t, err)

	req = postRequest("/api/register", body)
	_, err = plugin.Execute(context.Background(), cfg, req, nil)
	require.Error(t, err)

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, types.CodeBotDetected, pluginErr.Code)
}

func TestHoneypot_NumericDecoyValueRejected(t *testing.T) {
	plugin, _, _ := newFixture()

	req := postRequest("/api/register", []byte(`{"fax":12345}`))
	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.Error(t, err)
}
