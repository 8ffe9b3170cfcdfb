package events

import (
	"fmt"
	"sort"
	"time"
)

// OffenderStat summarizes one identifier's standing in a statistics
// snapshot.
type OffenderStat struct {
	Identifier  string  `json:"identifier"`
	EventCount  int     `json:"event_count"`
	ThreatScore float64 `json:"threat_score"`
	Blocked     int     `json:"blocked_count"`
}

// Statistics is the admin-facing snapshot over a window of events.
type Statistics struct {
	WindowSeconds    int            `json:"window_seconds"`
	TotalEvents      int            `json:"total_events"`
	ByType           map[string]int `json:"by_type"`
	BySeverity       map[string]int `json:"by_severity"`
	TopOffenders     []OffenderStat `json:"top_offenders"`
	GlobalLevel      ThreatLevel    `json:"global_level"`
	GlobalScore      float64        `json:"global_score"`
	CoordinatedTypes []string       `json:"coordinated_types,omitempty"`
}

const topOffenderLimit = 10

// Stats computes counts by type and severity, the top offending
// identifiers, and the current global threat state. A non-positive
// window covers everything retained.
func (b *Bus) Stats(window time.Duration) Statistics {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	stats := Statistics{
		WindowSeconds: int(window.Seconds()),
		ByType:        make(map[string]int),
		BySeverity:    make(map[string]int),
	}

	type agg struct {
		events  int
		score   float64
		blocked int
	}
	perID := make(map[string]*agg)
	globalScore := 0.0

	b.iterateLocked(func(e Event) {
		if window > 0 && now.Sub(e.Timestamp) > window {
			return
		}
		stats.TotalEvents++
		stats.ByType[string(e.Type)]++
		stats.BySeverity[string(e.Severity)]++

		a := perID[e.Identifier]
		if a == nil {
			a = &agg{}
			perID[e.Identifier] = a
		}
		a.events++
		if e.Blocked {
			a.blocked++
		}
		if now.Sub(e.Timestamp) <= threatWindow {
			a.score += severityWeights[e.Severity]
			globalScore += severityWeights[e.Severity]
		}
	})

	for id, a := range perID {
		stats.TopOffenders = append(stats.TopOffenders, OffenderStat{
			Identifier:  id,
			EventCount:  a.events,
			ThreatScore: a.score,
			Blocked:     a.blocked,
		})
	}
	sort.Slice(stats.TopOffenders, func(i, j int) bool {
		if stats.TopOffenders[i].ThreatScore != stats.TopOffenders[j].ThreatScore {
			return stats.TopOffenders[i].ThreatScore > stats.TopOffenders[j].ThreatScore
		}
		return stats.TopOffenders[i].EventCount > stats.TopOffenders[j].EventCount
	})
	if len(stats.TopOffenders) > topOffenderLimit {
		stats.TopOffenders = stats.TopOffenders[:topOffenderLimit]
	}

	stats.GlobalScore = globalScore
	stats.GlobalLevel = levelFor(globalScore)

	for t, last := range b.lastCoordinated {
		if now.Sub(last) <= coordinatedWindow {
			stats.CoordinatedTypes = append(stats.CoordinatedTypes, string(t))
		}
	}
	sort.Strings(stats.CoordinatedTypes)

	return stats
}

// ThreatIndicators derives human-readable reasons why an identifier
// looks dangerous. Empty when nothing stands out.
func (b *Bus) ThreatIndicators(identifier string) []string {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	critical := 0
	blocked := 0
	score := 0.0
	b.iterateLocked(func(e Event) {
		if e.Identifier != identifier {
			return
		}
		total++
		if e.Severity == SeverityCritical {
			critical++
		}
		if e.Blocked {
			blocked++
		}
		if now.Sub(e.Timestamp) <= threatWindow {
			score += severityWeights[e.Severity]
		}
	})

	var indicators []string
	if total >= 50 {
		indicators = append(indicators, fmt.Sprintf("high event volume (%d events)", total))
	}
	if critical > 0 {
		indicators = append(indicators, fmt.Sprintf("critical events present (%d)", critical))
	}
	if blocked >= 3 {
		indicators = append(indicators, fmt.Sprintf("repeatedly blocked (%d times)", blocked))
	}
	if score >= 50 {
		indicators = append(indicators, fmt.Sprintf("high cumulative threat score (%.0f)", score))
	}
	return indicators
}
