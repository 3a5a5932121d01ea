package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps windows in process memory. It is not shared between
// gateway instances; use RedisStore when running more than one.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	hits   []time.Time
	window time.Duration
}

// NewMemoryStore creates a store and, when sweepEvery > 0, starts a sweeper
// that drops keys with no hits left in their window.
func NewMemoryStore(sweepEvery time.Duration) *MemoryStore {
	s := &MemoryStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if sweepEvery > 0 {
		go s.sweepLoop(sweepEvery)
	}
	return s
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{}
		s.buckets[key] = b
	}
	b.window = window
	b.expire(now)

	if len(b.hits) < limit {
		b.hits = append(b.hits, now)
		return Decision{Allowed: true, Limit: limit, Remaining: limit - len(b.hits)}, nil
	}

	return Decision{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		RetryAfter: b.hits[0].Add(window).Sub(now),
	}, nil
}

// expire drops hits at or before now-window. hits are in ascending order.
func (b *bucket) expire(now time.Time) {
	cutoff := now.Add(-b.window)
	i := sort.Search(len(b.hits), func(i int) bool { return b.hits[i].After(cutoff) })
	if i > 0 {
		b.hits = append(b.hits[:0], b.hits[i:]...)
	}
}

// Sweep removes keys whose every hit has left the window.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, b := range s.buckets {
		b.expire(now)
		if len(b.hits) == 0 {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports how many keys are tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Stop ends the sweeper goroutine. Safe to call more than once.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}
