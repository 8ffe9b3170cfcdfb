package exfiltration

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

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture() (*ExfiltrationPlugin, *fakeClock, *events.Bus) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	clock := newFakeClock()
	scorer := reputation.NewScorer(logger, &reputation.ScorerOpts{TimeProvider: clock.Now})
	bus := events.NewBus(logger, &events.BusOpts{TimeProvider: clock.Now})
	return NewExfiltrationPlugin(logger, scorer, bus), clock, bus
}

func request(identifier string) *types.RequestContext {
	return &types.RequestContext{Identifier: identifier, Method: "GET", Path: "/api/export"}
}

func TestExfiltration_SmallResponsesIgnored(t *testing.T) {
	plugin, _, bus := newFixture()

	plugin.OnResponse(context.Background(), request("1.2.3.4"), &types.ResponseContext{StatusCode: 200, Size: 100 * 1024})

	assert.Equal(t, 0, bus.CountEvents("1.2.3.4", events.EventDataExfiltration, time.Hour))
}

func TestExfiltration_LargeResponseRecorded(t *testing.T) {
	plugin, _, bus := newFixture()

	plugin.OnResponse(context.Background(), request("1.2.3.4"), &types.ResponseContext{StatusCode: 200, Size: 600 * 1024})

	assert.Equal(t, 1, bus.CountEvents("1.2.3.4", events.EventDataExfiltration, time.Hour))
}

func TestExfiltration_NineLargeResponsesStillAllowed(t *testing.T) {
	plugin, _, _ := newFixture()

	for i := 0; i < 9; i++ {
		plugin.OnResponse(context.Background(), request("1.2.3.4"), &types.ResponseContext{StatusCode: 200, Size: 600 * 1024})
	}

	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, request("1.2.3.4"), nil)
	require.NoError(t, err)
}

func TestExfiltration_TenLargeResponsesRejected(t *testing.T) {
	plugin, _, _ := newFixture()

	for i := 0; i < 10; i++ {
		plugin.OnResponse(context.Background(), request("1.2.3.4"), &types.ResponseContext{StatusCode: 200, Size: 600 * 1024})
	}

	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, request("1.2.3.4"), nil)
	require.Error(t, err)

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, 403, pluginErr.StatusCode)
	assert.Equal(t, types.CodeDataExfiltration, pluginErr.Code)
}

func TestExfiltration_LargeResponsesAgeOut(t *testing.T) {
	plugin, clock, _ := newFixture()

	for i := 0; i < 10; i++ {
		plugin.OnResponse(context.Background(), request("1.2.3.4"), &types.ResponseContext{StatusCode: 200, Size: 600 * 1024})
	}

	clock.Advance(2 * time.Minute)
	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, request("1.2.3.4"), nil)
	require.NoError(t, err)
}

func TestExfiltration_IdentifiersIndependent(t *testing.T) {
	plugin, _, _ := newFixture()

	for i := 0; i < 10; i++ {
		plugin.OnResponse(context.Background(), request("1.2.3.4"), &types.ResponseContext{StatusCode: 200, Size: 600 * 1024})
	}

	_, err := plugin.Execute(context.Background(), types.PluginConfig{}, request("5.6.7.8"), nil)
	require.NoError(t, err)
}
