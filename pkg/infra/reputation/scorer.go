package reputation

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ViolationKind classifies what a detector reported. Each kind carries a
// fixed score penalty.
type ViolationKind string

const (
	ViolationRateLimit          ViolationKind = "rate_limit"
	ViolationFailedAuth         ViolationKind = "failed_auth"
	ViolationSuspiciousActivity ViolationKind = "suspicious_activity"
	ViolationBotDetected        ViolationKind = "bot_detected"
	ViolationAttackAttempt      ViolationKind = "attack_attempt"
)

var violationWeights = map[ViolationKind]int{
	ViolationRateLimit:          5,
	ViolationFailedAuth:         10,
	ViolationSuspiciousActivity: 15,
	ViolationBotDetected:        25,
	ViolationAttackAttempt:      40,
}

const (
	maxScore        = 100
	blockThreshold  = 20
	unblockScore    = 50
	blockDuration   = 30 * time.Minute
	recoveryEvery   = time.Hour
	defaultStaleTTL = 24 * time.Hour
)

// Record is a point-in-time view of an identifier's trust state.
type Record struct {
	Score           int       `json:"score"`
	ViolationCount  int       `json:"violation_count"`
	LastViolationAt time.Time `json:"last_violation_at"`
	Blocked         bool      `json:"blocked"`
	BlockedUntil    time.Time `json:"blocked_until"`
}

// Tier is the token-bucket allowance granted to a score range. Lower
// trust buys a smaller bucket.
type Tier struct {
	Capacity     float64
	RefillPerSec float64
}

type record struct {
	score           int
	violationCount  int
	lastViolationAt time.Time
	lastRecoveryAt  time.Time
	blocked         bool
	blockedUntil    time.Time
}

// Scorer maintains a decaying 0-100 trust score per identifier. All
// methods are safe for concurrent use.
type Scorer struct {
	mu      sync.Mutex
	records map[string]*record
	logger  *logrus.Logger
	now     func() time.Time
}

type ScorerOpts struct {
	TimeProvider func() time.Time
}

func NewScorer(logger *logrus.Logger, opts *ScorerOpts) *Scorer {
	now := time.Now
	if opts != nil && opts.TimeProvider != nil {
		now = opts.TimeProvider
	}
	return &Scorer{
		records: make(map[string]*record),
		logger:  logger,
		now:     now,
	}
}

// ReportViolation decrements the identifier's score by the kind's weight
// and blocks it for 30 minutes once the score falls below 20.
func (s *Scorer) ReportViolation(identifier string, kind ViolationKind) {
	weight, ok := violationWeights[kind]
	if !ok {
		weight = violationWeights[ViolationSuspiciousActivity]
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[identifier]
	if rec == nil {
		rec = &record{score: maxScore}
		s.records[identifier] = rec
	}
	rec.advance(now)

	rec.score -= weight
	if rec.score < 0 {
		rec.score = 0
	}
	rec.violationCount++
	rec.lastViolationAt = now
	rec.lastRecoveryAt = now

	if rec.score < blockThreshold && !rec.blocked {
		rec.blocked = true
		rec.blockedUntil = now.Add(blockDuration)
		s.logger.WithFields(logrus.Fields{
			"identifier": identifier,
			"score":      rec.score,
			"kind":       string(kind),
			"until":      rec.blockedUntil,
		}).Warn("identifier blocked by reputation")
	}
}

// Get returns the identifier's record, applying passive recovery first.
// Absence is never penalized: unknown identifiers get a full-trust
// default without creating state.
func (s *Scorer) Get(identifier string) Record {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[identifier]
	if rec == nil {
		return Record{Score: maxScore}
	}
	rec.advance(now)

	return Record{
		Score:           rec.score,
		ViolationCount:  rec.violationCount,
		LastViolationAt: rec.lastViolationAt,
		Blocked:         rec.blocked,
		BlockedUntil:    rec.blockedUntil,
	}
}

// advance applies passive recovery: +1 per full hour without violations,
// capped at 100, and lifts the block once the window elapsed or the
// score climbed back above 50.
func (r *record) advance(now time.Time) {
	if !r.lastRecoveryAt.IsZero() {
		for now.Sub(r.lastRecoveryAt) >= recoveryEvery && r.score < maxScore {
			r.score++
			r.lastRecoveryAt = r.lastRecoveryAt.Add(recoveryEvery)
		}
	}
	if r.blocked && (r.score > unblockScore || now.After(r.blockedUntil)) {
		r.blocked = false
	}
}

// LimiterTier maps a reputation score to the adaptive token-bucket
// allowance. Four tiers; the default tier is full allowance.
func LimiterTier(score int) Tier {
	switch {
	case score < 30:
		return Tier{Capacity: 10, RefillPerSec: 0.1}
	case score < 50:
		return Tier{Capacity: 25, RefillPerSec: 0.5}
	case score < 70:
		return Tier{Capacity: 50, RefillPerSec: 1}
	default:
		return Tier{Capacity: 100, RefillPerSec: 2}
	}
}

// Sweep evicts unblocked records with no violations for maxIdle. Blocked
// records are kept so the block outlives quiet periods.
func (s *Scorer) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		maxIdle = defaultStaleTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		rec.advance(now)
		if !rec.blocked && now.Sub(rec.lastViolationAt) > maxIdle {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// Len reports how many identifiers currently have reputation state.
func (s *Scorer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
