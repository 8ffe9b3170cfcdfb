package bot_detector

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/fingerprint"
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

type fixture struct {
	plugin  *BotDetectorPlugin
	clock   *fakeClock
	scorer  *reputation.Scorer
	bus     *events.Bus
	tracker *fingerprint.Tracker
}

func newFixture() *fixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	clock := newFakeClock()
	scorer := reputation.NewScorer(logger, &reputation.ScorerOpts{TimeProvider: clock.Now})
	bus := events.NewBus(logger, &events.BusOpts{TimeProvider: clock.Now})
	tracker := fingerprint.NewTracker(&fingerprint.TrackerOpts{TimeProvider: clock.Now})
	plugin, _ := NewBotDetectorPlugin(logger, tracker, scorer, bus).(*BotDetectorPlugin)
	return &fixture{plugin: plugin, clock: clock, scorer: scorer, bus: bus, tracker: tracker}
}

func browserRequest(identifier string) *types.RequestContext {
	return &types.RequestContext{
		Identifier: identifier,
		Method:     "GET",
		Path:       "/api/games",
		Headers: map[string][]string{
			"User-Agent":      {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"},
			"Accept":          {"text/html,application/json"},
			"Accept-Language": {"en-US,en;q=0.9"},
			"Accept-Encoding": {"gzip, deflate, br"},
			"Referer":         {"https://example.com/"},
		},
	}
}

func TestBotDetector_CleanBrowserPasses(t *testing.T) {
	f := newFixture()

	resp, err := f.plugin.Execute(context.Background(), types.PluginConfig{}, browserRequest("1.2.3.4"), nil)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 0, resp.Metadata["bot_score"])
}

func TestBotDetector_CurlScoresButPassesBelowChallenge(t *testing.T) {
	f := newFixture()

	req := &types.RequestContext{
		Identifier: "1.2.3.4",
		Method:     "GET",
		Path:       "/api/games",
		Headers:    map[string][]string{"User-Agent": {"curl/8.4.0"}},
	}

	// missing accept-language 20, accept 15, accept-encoding 10, generic bot 30
	resp, err := f.plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 75, resp.Metadata["bot_score"])
}

func TestBotDetector_ChallengeRange(t *testing.T) {
	f := newFixture()

	req := &types.RequestContext{
		Identifier: "1.2.3.4",
		Method:     "GET",
		Path:       "/api/games",
		Headers: map[string][]string{
			"User-Agent": {"Mozilla/5.0 selenium"},
			"Webdriver":  {"true"},
			"Accept":     {"*/*"},
			// accept-language and accept-encoding missing: 20 + 10
		},
	}

	// 50 automation + 40 webdriver + 30 missing headers = 120
	_, err := f.plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.Error(t, err)

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, types.CodeBotSuspected, pluginErr.Code)
	assert.True(t, pluginErr.Challenge)
	assert.Equal(t, 403, pluginErr.StatusCode)

	// a challenge alone must not damage reputation
	assert.Equal(t, 100, f.scorer.Get("1.2.3.4").Score)
}

func TestBotDetector_BlockRange(t *testing.T) {
	f := newFixture()

	req := &types.RequestContext{
		Identifier: "1.2.3.4",
		Method:     "GET",
		Path:       "/api/games",
		Headers: map[string][]string{
			"User-Agent":        {"puppeteer headlesschrome"},
			"X-Chrome-Devtools": {"1"},
		},
	}

	// missing headers 45 + automation 50 + devtools 60 = 155
	_, err := f.plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.Error(t, err)

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, types.CodeBotDetected, pluginErr.Code)
	assert.False(t, pluginErr.Challenge)

	assert.Equal(t, 75, f.scorer.Get("1.2.3.4").Score)
	assert.Equal(t, 1, f.bus.CountEvents("1.2.3.4", events.EventBotDetected, time.Hour))
}

func TestBotDetector_FingerprintReplayAddsScore(t *testing.T) {
	f := newFixture()

	first := browserRequest("1.2.3.4")
	resp, err := f.plugin.Execute(context.Background(), types.PluginConfig{}, first, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Metadata["bot_score"])

	f.clock.Advance(10 * time.Millisecond)

	second := browserRequest("1.2.3.4")
	resp, err = f.plugin.Execute(context.Background(), types.PluginConfig{}, second, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, resp.Metadata["bot_score"])
}

func TestBotDetector_AjaxWithoutReferer(t *testing.T) {
	f := newFixture()

	req := browserRequest("1.2.3.4")
	req.Headers["X-Requested-With"] = []string{"XMLHttpRequest"}
	delete(req.Headers, "Referer")

	resp, err := f.plugin.Execute(context.Background(), types.PluginConfig{}, req, nil)
	require.NoError(t, err)
	assert.Equal(t, 25, resp.Metadata["bot_score"])
}

func TestBotDetector_CustomThresholds(t *testing.T) {
	f := newFixture()

	cfg := types.PluginConfig{Settings: map[string]interface{}{
		"challenge_threshold": 50,
		"block_threshold":     70,
	}}
	req := &types.RequestContext{
		Identifier: "1.2.3.4",
		Method:     "GET",
		Path:       "/api/games",
		Headers:    map[string][]string{"User-Agent": {"curl/8.4.0"}},
	}

	// score 75 crosses the lowered block threshold
	_, err := f.plugin.Execute(context.Background(), cfg, req, nil)
	require.Error(t, err)

	var pluginErr *types.PluginError
	require.True(t, errors.As(err, &pluginErr))
	assert.Equal(t, types.CodeBotDetected, pluginErr.Code)
}

func TestBotDetector_ValidateConfig(t *testing.T) {
	f := newFixture()

	assert.NoError(t, f.plugin.ValidateConfig(types.PluginConfig{}))
	assert.Error(t, f.plugin.ValidateConfig(types.PluginConfig{Settings: map[string]interface{}{
		"challenge_threshold": 200,
		"block_threshold":     100,
	}}))
}
