package behavior_analyzer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/common"
	"github.com/StakeGuard/ShieldGate/pkg/infra/events"
	"github.com/StakeGuard/ShieldGate/pkg/infra/reputation"
	"github.com/StakeGuard/ShieldGate/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const (
	PluginName = "behavior_analyzer"

	rapidFireGap    = 100 * time.Millisecond
	decayGap        = 30 * time.Second
	scanPathCount   = 20
	scanRequestCeil = 50
	writeHeavyShare = 0.7
	writeHeavyAfter = 10
	recordTTL       = 15 * time.Minute
)

type Config struct {
	BlockScore int `mapstructure:"block_score"`
}

// behaviorRecord is the per-identifier traffic profile. anomalyScore
// accumulates from weighted signals and decays with inactivity.
type behaviorRecord struct {
	requestCount  int
	failedAuth    int
	lastRequestAt time.Time
	pathCounts    map[string]int
	methodCounts  map[string]int
	anomalyScore  int
	scanFlagged   bool
}

// BehaviorAnalyzerPlugin flags scanning and other anomalous traffic
// shapes. It is two-phase: Execute scores the request pattern before the
// upstream call, OnResponse feeds auth failures back in afterwards.
type BehaviorAnalyzerPlugin struct {
	logger      *logrus.Logger
	scorer      *reputation.Scorer
	bus         *events.Bus
	environment string

	mu      sync.Mutex
	records map[string]*behaviorRecord
	now     func() time.Time
}

type Opts struct {
	TimeProvider func() time.Time
}

func NewBehaviorAnalyzerPlugin(
	logger *logrus.Logger,
	scorer *reputation.Scorer,
	bus *events.Bus,
	environment string,
	opts *Opts,
) *BehaviorAnalyzerPlugin {
	now := time.Now
	if opts != nil && opts.TimeProvider != nil {
		now = opts.TimeProvider
	}
	return &BehaviorAnalyzerPlugin{
		logger:      logger,
		scorer:      scorer,
		bus:         bus,
		environment: environment,
		records:     make(map[string]*behaviorRecord),
		now:         now,
	}
}

func (p *BehaviorAnalyzerPlugin) Name() string {
	return PluginName
}

func (p *BehaviorAnalyzerPlugin) ValidateConfig(config types.PluginConfig) error {
	var cfg Config
	if err := mapstructure.Decode(config.Settings, &cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.BlockScore < 0 {
		return fmt.Errorf("block_score must be non-negative")
	}
	return nil
}

func (p *BehaviorAnalyzerPlugin) Execute(
	ctx context.Context,
	cfg types.PluginConfig,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.PluginResponse, error) {
	var conf Config
	if err := mapstructure.Decode(cfg.Settings, &conf); err != nil {
		p.logger.WithError(err).Error("failed to decode behavior analyzer config")
	}
	blockScore := conf.BlockScore
	if blockScore == 0 {
		blockScore = 80
	}

	now := p.now()

	p.mu.Lock()
	rec := p.records[req.Identifier]
	if rec == nil {
		rec = &behaviorRecord{
			pathCounts:   make(map[string]int),
			methodCounts: make(map[string]int),
		}
		p.records[req.Identifier] = rec
	}

	if !rec.lastRequestAt.IsZero() {
		gap := now.Sub(rec.lastRequestAt)
		if gap < rapidFireGap {
			rec.anomalyScore += 10
		} else if gap > decayGap {
			rec.anomalyScore -= 5
			if rec.anomalyScore < 0 {
				rec.anomalyScore = 0
			}
		}
	}

	rec.requestCount++
	rec.lastRequestAt = now
	rec.pathCounts[req.Path]++
	rec.methodCounts[req.Method]++

	// Endpoint-scanning signature: many distinct paths in few requests.
	// Scored once per identifier, not per request.
	if !rec.scanFlagged && len(rec.pathCounts) > scanPathCount && rec.requestCount < scanRequestCeil {
		rec.anomalyScore += 20
		rec.scanFlagged = true
	}

	if rec.requestCount > writeHeavyAfter {
		nonGet := rec.requestCount - rec.methodCounts[http.MethodGet]
		if float64(nonGet)/float64(rec.requestCount) > writeHeavyShare {
			rec.anomalyScore += 15
		}
	}

	score := rec.anomalyScore
	p.mu.Unlock()

	if score > blockScore {
		// Local traffic often has no resolvable address; blocking the
		// shared "unknown" identifier in development would lock every
		// developer out at once.
		if p.environment != common.EnvironmentProduction && req.Identifier == common.UnknownIdentifier {
			return nil, nil
		}

		p.scorer.ReportViolation(req.Identifier, reputation.ViolationSuspiciousActivity)
		p.bus.Record(
			events.EventAnomalousBehavior,
			events.SeverityHigh,
			req.Identifier,
			req.Path,
			req.Method,
			map[string]interface{}{"anomaly_score": score},
			true,
		)
		return nil, &types.PluginError{
			StatusCode: http.StatusForbidden,
			Code:       types.CodeAnomalyDetected,
			Message:    "anomalous traffic pattern detected",
		}
	}

	return nil, nil
}

// OnResponse feeds auth failures back into the profile once the
// upstream has answered.
func (p *BehaviorAnalyzerPlugin) OnResponse(
	ctx context.Context,
	req *types.RequestContext,
	resp *types.ResponseContext,
) {
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rec := p.records[req.Identifier]
	if rec == nil {
		return
	}
	rec.failedAuth++
	rec.anomalyScore += 5
}

// Sweep evicts profiles idle longer than the record TTL.
func (p *BehaviorAnalyzerPlugin) Sweep() int {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, rec := range p.records {
		if now.Sub(rec.lastRequestAt) > recordTTL {
			delete(p.records, id)
			removed++
		}
	}
	return removed
}
