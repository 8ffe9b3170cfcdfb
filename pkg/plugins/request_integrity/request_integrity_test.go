package request_integrity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "signing-secret"

func newFixture() (*RequestIntegrityPlugin, *events.Bus) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	scorer := reputation.NewScorer(logger, nil)
	bus := events.NewBus(logger, nil)
	plugin, _ := NewRequestIntegrityPlugin(logger, scorer, bus, testSecret).(*RequestIntegrityPlugin)
	return plugin, bus
}

func sign(body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

func signedRequest(body []byte, signedAt, receivedAt time.Time) *types.RequestContext {
	timestamp := strconv.FormatInt(signedAt.Unix(), 10)
	return &types.RequestContext{
		Identifier: "1.2.3.4",
		Method:     "POST",
		Path:       "/api/bets",
		Body:       body,
		ReceivedAt: receivedAt,
		Headers: map[string][]string{
			"X-Signature": {sign(body, timestamp)},
			"X-Timestamp": {timestamp},
		},
	}
}

func TestRequestIntegrity_ValidSignaturePasses(t *testing.T) {
	plugin, _ := newFixture()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	req := signedRequest([]byte(`{"amount":50}`), now, now)

	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.NoError(t, err)
}

func TestRequestIntegrity_UnsignedRequestPasses(t *testing.T) {
	plugin, _ := newFixture()

	req := &types.RequestContext{
		Identifier: "1.2.3.4",
		Method:     "POST",
		Path:       "/api/bets",
		Body:       []byte(`{"amount":50}`),
		ReceivedAt: time.Now(),
	}
	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.NoError(t, err)
}

func TestRequestIntegrity_StaleTimestampIsReplay(t *testing.T) {
	plugin, bus := newFixture()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	req := signedRequest([]byte(`{"amount":50}`), now.Add(-6*time.Minute), now)

	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.Error(t, err)

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, types.CodeReplayAttackDetected, pluginErr.Code)
	assert.Equal(t, 1, bus.CountEvents("1.2.3.4", events.EventReplayAttack, time.Hour))
}

func TestRequestIntegrity_TimestampJustInsideWindowPasses(t *testing.T) {
	plugin, _ := newFixture()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	req := signedRequest([]byte(`{"amount":50}`), now.Add(-5*time.Minute+time.Second), now)

	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.NoError(t, err)
}

func TestRequestIntegrity_TamperedBodyRejected(t *testing.T) {
	plugin, bus := newFixture()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	req := signedRequest([]byte(`{"amount":50}`), now, now)
	req.Body = []byte(`{"amount":5000}`)

	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.Error(t, err)

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, types.CodeTamperDetected, pluginErr.Code)
	assert.Equal(t, 1, bus.CountEvents("1.2.3.4", events.EventTamperedRequest, time.Hour))
}

func TestRequestIntegrity_GarbageTimestampRejected(t *testing.T) {
	plugin, _ := newFixture()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	req := signedRequest([]byte(`{"amount":50}`), now, now)
	req.Headers["X-Timestamp"] = []string{"yesterday"}

	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.Error(t, err)

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, types.CodeTamperDetected, pluginErr.Code)
}

func TestRequestIntegrity_ReadOnlyMethodsSkipped(t *testing.T) {
	plugin, _ := newFixture()

	req := &types.RequestContext{
		Identifier: "1.2.3.4",
		Method:     "GET",
		Path:       "/api/bets",
		ReceivedAt: time.Now(),
		Headers: map[string][]string{
			"X-Signature": {"nonsense"},
			"X-Timestamp": {"nonsense"},
		},
	}
	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.NoError(t, err)
}
