package ratelimit

import (
	"math"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// WindowStore implements fixed-window counters keyed by arbitrary
// strings (normally "endpoint:identifier"). Named sensitive endpoints
// get these instead of token buckets: the thresholds are absolute per
// window, not burst-shaped.
type WindowStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type WindowStoreOpts struct {
	TimeProvider func() time.Time
}

func NewWindowStore(opts *WindowStoreOpts) *WindowStore {
	now := time.Now
	if opts != nil && opts.TimeProvider != nil {
		now = opts.TimeProvider
	}
	return &WindowStore{
		windows: make(map[string]*window),
		now:     now,
	}
}

// Hit counts one request against the key's window. Returns
// (false, retryAfterSeconds) once limit is reached within the window.
func (s *WindowStore) Hit(key string, limit int, windowSize time.Duration) (bool, int) {
	if limit <= 0 || windowSize <= 0 {
		return true, 0
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(windowSize)}
		s.windows[key] = w
	}

	if w.count >= limit {
		retryAfter := int(math.Ceil(w.resetAt.Sub(now).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	w.count++
	return true, 0
}

// Sweep drops expired windows.
func (s *WindowStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}
