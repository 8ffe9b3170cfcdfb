package ratelimit

import (
	"math"
	"sync"
	"time"
)

// bucket holds per-identifier token state. Refill is lazy: tokens are
// recomputed from elapsed time on each access, so no per-bucket timer is
// needed.
type bucket struct {
	tokens     float64
	lastRefill time.Time
	violations int
}

// BucketStore is a per-identifier token-bucket limiter. Capacity and
// refill rate are passed per call because the pipeline scales them with
// the caller's current reputation.
type BucketStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type BucketStoreOpts struct {
	TimeProvider func() time.Time
}

func NewBucketStore(opts *BucketStoreOpts) *BucketStore {
	now := time.Now
	if opts != nil && opts.TimeProvider != nil {
		now = opts.TimeProvider
	}
	return &BucketStore{
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

// TryConsume takes one token from the identifier's bucket, creating it
// full on first sight. It never errors: exhaustion is reported as
// (false, retryAfterSeconds), where retryAfter is the time until at
// least one token is available.
func (s *BucketStore) TryConsume(identifier string, capacity, refillPerSec float64) (bool, int) {
	if capacity <= 0 || refillPerSec <= 0 {
		return true, 0
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[identifier]
	if !ok {
		b = &bucket{tokens: capacity, lastRefill: now}
		s.buckets[identifier] = b
	} else {
		elapsed := now.Sub(b.lastRefill).Seconds()
		b.tokens = math.Min(capacity, b.tokens+elapsed*refillPerSec)
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	b.violations++
	retryAfter := int(math.Ceil((1 - b.tokens) / refillPerSec))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}

// Sweep evicts buckets idle for longer than maxIdle and returns how many
// were removed.
func (s *BucketStore) Sweep(maxIdle time.Duration) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, b := range s.buckets {
		if now.Sub(b.lastRefill) > maxIdle {
			delete(s.buckets, id)
			removed++
		}
	}
	return removed
}

// Len reports how many buckets currently exist.
func (s *BucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
