package fingerprint

import (
	"sync"
	"time"
)

// DefaultTTL is how long an entry survives without being seen again.
const DefaultTTL = time.Hour

// Tracker remembers when each fingerprint was last seen. Its single
// consumer is the bot detector's replay check: an identical fingerprint
// observed again within a few tens of milliseconds is too fast to be a
// human.
type Tracker struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

type TrackerOpts struct {
	TimeProvider func() time.Time
}

func NewTracker(opts *TrackerOpts) *Tracker {
	now := time.Now
	if opts != nil && opts.TimeProvider != nil {
		now = opts.TimeProvider
	}
	return &Tracker{
		seen: make(map[string]time.Time),
		now:  now,
	}
}

// Observe records the fingerprint and reports whether it was previously
// seen within the given interval.
func (t *Tracker) Observe(hash string, within time.Duration) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.seen[hash]
	t.seen[hash] = now
	return ok && now.Sub(last) < within
}

// Sweep drops entries older than ttl (DefaultTTL when non-positive).
func (t *Tracker) Sweep(ttl time.Duration) int {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for hash, last := range t.seen {
		if now.Sub(last) > ttl {
			delete(t.seen, hash)
			removed++
		}
	}
	return removed
}

// Len reports how many fingerprints are currently tracked.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
