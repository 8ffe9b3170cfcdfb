package events

import (
	"sync"
	"time"

	"github.com/StakeGuard/ShieldGate/pkg/infra/prometheus"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Type classifies a security event.
type Type string

const (
	EventRateLimitExceeded  Type = "rate_limit_exceeded"
	EventAuthenticationFail Type = "authentication_failure"
	EventBotDetected        Type = "bot_detected"
	EventAnomalousBehavior  Type = "anomalous_behavior"
	EventBruteForce         Type = "brute_force_attack"
	EventDataExfiltration   Type = "data_exfiltration"
	EventReplayAttack       Type = "replay_attack"
	EventTamperedRequest    Type = "tampered_request"
	EventHoneypotTriggered  Type = "honeypot_triggered"
	EventReputationBlock    Type = "reputation_block"
	EventSuspiciousActivity Type = "suspicious_activity"
)

// Severity grades an event. Each severity carries a fixed threat weight.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityWeights = map[Severity]float64{
	SeverityLow:      1,
	SeverityMedium:   5,
	SeverityHigh:     15,
	SeverityCritical: 30,
}

// ThreatLevel is the aggregate global state derived from recent events.
type ThreatLevel string

const (
	ThreatNone     ThreatLevel = "none"
	ThreatElevated ThreatLevel = "elevated"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// Event is immutable once recorded.
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	Severity   Severity               `json:"severity"`
	Timestamp  time.Time              `json:"timestamp"`
	Identifier string                 `json:"identifier"`
	Path       string                 `json:"path"`
	Method     string                 `json:"method"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Blocked    bool                   `json:"blocked"`
}

const (
	// MaxEvents bounds the ring buffer; the oldest entry is evicted first.
	MaxEvents = 10000
	// Retention is how long events survive the periodic sweep.
	Retention = 24 * time.Hour
	// threatWindow is how long an event contributes to threat scores.
	threatWindow = 30 * time.Minute
	// coordinatedWindow and coordinatedIdentifiers define the
	// coordinated-attack condition: N distinct identifiers raising the
	// same event type within the window.
	coordinatedWindow      = time.Minute
	coordinatedIdentifiers = 5
)

// Bus is an append-only, bounded, in-memory security event log with
// severity-weighted per-identifier and global threat aggregates. Safe
// for concurrent use.
type Bus struct {
	mu     sync.Mutex
	ring   []Event
	start  int
	count  int
	logger *logrus.Logger
	now    func() time.Time

	// lastCoordinated de-duplicates the coordinated-attack warning per
	// event type.
	lastCoordinated map[Type]time.Time
}

type BusOpts struct {
	TimeProvider func() time.Time
}

func NewBus(logger *logrus.Logger, opts *BusOpts) *Bus {
	now := time.Now
	if opts != nil && opts.TimeProvider != nil {
		now = opts.TimeProvider
	}
	return &Bus{
		ring:            make([]Event, MaxEvents),
		logger:          logger,
		now:             now,
		lastCoordinated: make(map[Type]time.Time),
	}
}

// Record appends a classified event, updates the aggregates, and emits a
// structured log line. Returns the stored event.
func (b *Bus) Record(
	eventType Type,
	severity Severity,
	identifier, path, method string,
	details map[string]interface{},
	blocked bool,
) Event {
	evt := Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Severity:   severity,
		Timestamp:  b.now(),
		Identifier: identifier,
		Path:       path,
		Method:     method,
		Details:    details,
		Blocked:    blocked,
	}

	b.mu.Lock()
	idx := (b.start + b.count) % MaxEvents
	if b.count == MaxEvents {
		// Ring full: overwrite the oldest.
		b.ring[b.start] = evt
		b.start = (b.start + 1) % MaxEvents
	} else {
		b.ring[idx] = evt
		b.count++
	}
	coordinated := b.checkCoordinatedLocked(evt)
	b.mu.Unlock()

	prometheus.SecurityEventsTotal.WithLabelValues(string(evt.Type), string(evt.Severity)).Inc()

	entry := b.logger.WithFields(logrus.Fields{
		"event_id":   evt.ID,
		"type":       string(evt.Type),
		"severity":   string(evt.Severity),
		"identifier": evt.Identifier,
		"path":       evt.Path,
		"method":     evt.Method,
		"blocked":    evt.Blocked,
	})
	switch severity {
	case SeverityCritical, SeverityHigh:
		entry.Warn("security event recorded")
	default:
		entry.Info("security event recorded")
	}

	if coordinated {
		b.logger.WithFields(logrus.Fields{
			"type":   string(evt.Type),
			"window": coordinatedWindow.String(),
		}).Warn("coordinated attack pattern detected")
	}

	return evt
}

// checkCoordinatedLocked flags the coordinated-attack condition once per
// type per window. Caller holds b.mu.
func (b *Bus) checkCoordinatedLocked(evt Event) bool {
	if last, ok := b.lastCoordinated[evt.Type]; ok && evt.Timestamp.Sub(last) < coordinatedWindow {
		return false
	}
	cutoff := evt.Timestamp.Add(-coordinatedWindow)
	identifiers := make(map[string]struct{})
	b.iterateLocked(func(e Event) {
		if e.Type == evt.Type && !e.Timestamp.Before(cutoff) {
			identifiers[e.Identifier] = struct{}{}
		}
	})
	if len(identifiers) >= coordinatedIdentifiers {
		b.lastCoordinated[evt.Type] = evt.Timestamp
		return true
	}
	return false
}

// iterateLocked visits events oldest-first. Caller holds b.mu.
func (b *Bus) iterateLocked(fn func(Event)) {
	for i := 0; i < b.count; i++ {
		fn(b.ring[(b.start+i)%MaxEvents])
	}
}

// RecentEvents returns events within the window, oldest first. A
// non-positive window means everything retained.
func (b *Bus) RecentEvents(window time.Duration) []Event {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	b.iterateLocked(func(e Event) {
		if window <= 0 || now.Sub(e.Timestamp) <= window {
			out = append(out, e)
		}
	})
	return out
}

// CountEvents counts the identifier's events of a type within the
// window. Detectors use this for their sliding-window thresholds.
func (b *Bus) CountEvents(identifier string, eventType Type, window time.Duration) int {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	b.iterateLocked(func(e Event) {
		if e.Identifier == identifier && e.Type == eventType && now.Sub(e.Timestamp) <= window {
			n++
		}
	})
	return n
}

// ThreatScore returns the identifier's severity-weighted score over the
// contribution window. Contributions age out after 30 minutes, so the
// score decays toward zero on its own.
func (b *Bus) ThreatScore(identifier string) float64 {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	score := 0.0
	b.iterateLocked(func(e Event) {
		if e.Identifier == identifier && now.Sub(e.Timestamp) <= threatWindow {
			score += severityWeights[e.Severity]
		}
	})
	return score
}

// GlobalThreat returns the aggregate level and score over all
// identifiers within the contribution window.
func (b *Bus) GlobalThreat() (ThreatLevel, float64) {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	score := 0.0
	b.iterateLocked(func(e Event) {
		if now.Sub(e.Timestamp) <= threatWindow {
			score += severityWeights[e.Severity]
		}
	})
	return levelFor(score), score
}

func levelFor(score float64) ThreatLevel {
	switch {
	case score >= 150:
		return ThreatCritical
	case score >= 50:
		return ThreatHigh
	case score >= 10:
		return ThreatElevated
	default:
		return ThreatNone
	}
}

// Sweep drops events older than the retention period. Meant to run
// hourly from the maintenance loop.
func (b *Bus) Sweep() int {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for b.count > 0 {
		oldest := b.ring[b.start]
		if now.Sub(oldest.Timestamp) <= Retention {
			break
		}
		b.start = (b.start + 1) % MaxEvents
		b.count--
		removed++
	}
	return removed
}

// Len reports how many events are retained.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
