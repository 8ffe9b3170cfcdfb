package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/config"
	handlers "github.com/StakeGuard/ShieldGate/pkg/handlers/http"
	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/fingerprint"
	"github.com/StakeGuard/ShieldGate/pkg/infra/identity"
	"github.com/StakeGuard/ShieldGate/pkg/infra/jwt"
	infraLogger "github.com/StakeGuard/ShieldGate/pkg/infra/logger"
	"github.com/StakeGuard/ShieldGate/pkg/infra/pluginiface"
	"github.com/StakeGuard/ShieldGate/pkg/infra/prometheus"
	"github.com/StakeGuard/ShieldGate/pkg/infra/ratelimit"
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/StakeGuard/ShieldGate/pkg/middleware"
	"github.com/StakeGuard/ShieldGate/pkg/plugins"
	"github.com/StakeGuard/ShieldGate/pkg/plugins/behavior_analyzer"
	"github.com/StakeGuard/ShieldGate/pkg/plugins/bot_detector"
	"github.com/StakeGuard/ShieldGate/pkg/plugins/brute_force"
	"github.com/StakeGuard/ShieldGate/pkg/plugins/exfiltration"
	"github.com/StakeGuard/ShieldGate/pkg/plugins/honeypot"
	"github.com/StakeGuard/ShieldGate/pkg/plugins/rate_limiter"
	"github.com/StakeGuard/ShieldGate/pkg/plugins/reputation_gate"
	"github.com/StakeGuard/ShieldGate/pkg/plugins/request_integrity"
	"github.com/StakeGuard/ShieldGate/pkg/server"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	bucketIdleTTL     = 2 * time.Hour
	reputationIdleTTL = 24 * time.Hour
	maintenanceEvery  = 5 * time.Minute
	eventSweepEvery   = time.Hour
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger("proxy")

	if err := config.Load("./config"); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	prometheus.Initialize()

	// shared state
	resolver := identity.NewResolver(cfg.Security.TrustedProxyHeaders)
	scorer := reputation.NewScorer(logger, nil)
	buckets := ratelimit.NewBucketStore(nil)
	windows := ratelimit.NewWindowStore(nil)
	bus := events.NewBus(logger, nil)
	tracker := fingerprint.NewTracker(nil)
	jwtManager := jwt.NewJwtManager(&cfg.Server)

	// plugins
	behaviorAnalyzer := behavior_analyzer.NewBehaviorAnalyzerPlugin(logger, scorer, bus, cfg.Security.Environment, nil)
	bruteForce := brute_force.NewBruteForcePlugin(logger, scorer, bus, nil)
	exfiltrationPlugin := exfiltration.NewExfiltrationPlugin(logger, scorer, bus)

	pluginManager := plugins.NewManager(logger)
	registerPlugins(logger, pluginManager,
		reputation_gate.NewReputationGatePlugin(logger, scorer, bus),
		rate_limiter.NewRateLimiterPlugin(logger, buckets, windows, scorer, bus, cfg.Security.EndpointLimits),
		bruteForce,
		bot_detector.NewBotDetectorPlugin(logger, tracker, scorer, bus),
		honeypot.NewHoneypotPlugin(logger, scorer, bus),
		request_integrity.NewRequestIntegrityPlugin(logger, scorer, bus, cfg.Security.SigningSecret),
		behaviorAnalyzer,
		exfiltrationPlugin,
	)
	if err := pluginManager.SetChain(defaultChain(cfg)); err != nil {
		logger.Fatalf("failed to set plugin chain: %v", err)
	}

	// middleware
	middlewareTransport := middleware.Transport{
		PanicRecoverMiddleware:    middleware.NewPanicRecoverMiddleware(logger),
		IdentityMiddleware:        middleware.NewIdentityMiddleware(logger, resolver),
		DefenseMiddleware:         middleware.NewDefenseMiddleware(logger, pluginManager, nil),
		SecurityHeadersMiddleware: middleware.NewSecurityHeadersMiddleware(logger, cfg.Security.Environment),
		AdminAuthMiddleware:       middleware.NewAdminAuthMiddleware(logger, jwtManager),
	}

	// handlers
	handlerTransport := handlers.HandlerTransport{
		ForwardedHandler:           handlers.NewForwardedHandler(logger, &cfg.Upstream),
		GetStatisticsHandler:       handlers.NewGetStatisticsHandler(logger, bus),
		ListEventsHandler:          handlers.NewListEventsHandler(logger, bus),
		GetThreatIndicatorsHandler: handlers.NewGetThreatIndicatorsHandler(logger, bus),
		GetReputationHandler:       handlers.NewGetReputationHandler(logger, scorer),
		CreateTokenHandler:         handlers.NewCreateTokenHandler(logger, jwtManager, &cfg.Server),
	}

	proxyServer := server.NewProxyServer(server.ProxyServerDI{
		MiddlewareTransport: middlewareTransport,
		HandlerTransport:    handlerTransport,
		Config:              cfg,
		Logger:              logger,
	})
	adminServer := server.NewAdminServer(server.AdminServerDI{
		MiddlewareTransport: middlewareTransport,
		HandlerTransport:    handlerTransport,
		Config:              cfg,
		Logger:              logger,
	})

	go runMaintenance(ctx, logger, scorer, buckets, windows, bus, tracker, behaviorAnalyzer)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(proxyServer.Run)
	group.Go(adminServer.Run)
	group.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
			fmt.Println("shutting down servers...")
		case <-groupCtx.Done():
		}
		if err := proxyServer.Shutdown(); err != nil {
			logger.WithError(err).Error("error shutting down proxy server")
		}
		if err := adminServer.Shutdown(); err != nil {
			logger.WithError(err).Error("error shutting down admin server")
		}
		cancel()
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
	fmt.Println("servers gracefully stopped")
}

func registerPlugins(logger *logrus.Logger, manager plugins.Manager, list ...pluginiface.Plugin) {
	for _, plugin := range list {
		if err := manager.RegisterPlugin(plugin); err != nil {
			logger.WithError(err).Errorf("failed to register plugin %s", plugin.Name())
		}
	}
}

// defaultChain orders the defense: the reputation gate first, then the
// bot and behavior profilers so they see traffic before any limiter
// consumes it, then the rate limiters, then the specialized detectors.
func defaultChain(cfg *config.Config) []types.PluginConfig {
	return []types.PluginConfig{
		{Name: reputation_gate.PluginName, Enabled: true, Priority: 10},
		{Name: bot_detector.PluginName, Enabled: true, Priority: 20},
		{Name: behavior_analyzer.PluginName, Enabled: true, Priority: 30},
		{Name: rate_limiter.PluginName, Enabled: true, Priority: 40},
		{Name: brute_force.PluginName, Enabled: true, Priority: 50},
		{Name: honeypot.PluginName, Enabled: true, Priority: 60, Settings: map[string]interface{}{
			"exempt_path_prefixes": cfg.Security.HoneypotExemptPaths,
		}},
		{Name: request_integrity.PluginName, Enabled: true, Priority: 70},
		{Name: exfiltration.PluginName, Enabled: true, Priority: 80},
	}
}

// runMaintenance periodically evicts idle per-identifier state and
// expired events so memory stays bounded under long uptime.
func runMaintenance(
	ctx context.Context,
	logger *logrus.Logger,
	scorer *reputation.Scorer,
	buckets *ratelimit.BucketStore,
	windows *ratelimit.WindowStore,
	bus *events.Bus,
	tracker *fingerprint.Tracker,
	behaviorAnalyzer *behavior_analyzer.BehaviorAnalyzerPlugin,
) {
	stateTicker := time.NewTicker(maintenanceEvery)
	eventTicker := time.NewTicker(eventSweepEvery)
	defer stateTicker.Stop()
	defer eventTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stateTicker.C:
			removed := buckets.Sweep(bucketIdleTTL)
			removed += windows.Sweep()
			removed += scorer.Sweep(reputationIdleTTL)
			removed += tracker.Sweep(fingerprint.DefaultTTL)
			removed += behaviorAnalyzer.Sweep()
			if removed > 0 {
				logger.WithField("removed", removed).Debug("maintenance sweep evicted idle state")
			}
		case <-eventTicker.C:
			if removed := bus.Sweep(); removed > 0 {
				logger.WithField("removed", removed).Debug("event retention sweep")
			}
		}
	}
}
