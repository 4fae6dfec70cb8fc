package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps a sliding-window log per key in process memory. Budgets
// are enforced per instance only; run the Redis store when more than one
// instance serves traffic.
type MemoryStore struct {
	mu      sync.Mutex
	entries *cache.Cache
}

type hitLog struct {
	hits []time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: cache.New(time.Hour, 10*time.Minute),
	}
}

func (s *MemoryStore) Take(_ context.Context, key string, rule Rule, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &hitLog{}
	if v, ok := s.entries.Get(key); ok {
		entry = v.(*hitLog)
	}

	cutoff := now.Add(-rule.Window)
	live := entry.hits[:0]
	for _, h := range entry.hits {
		if h.After(cutoff) {
			live = append(live, h)
		}
	}
	entry.hits = live

	d := Decision{Limit: rule.Limit}
	if len(entry.hits) < rule.Limit {
		entry.hits = append(entry.hits, now)
		d.Allowed = true
		d.Remaining = rule.Limit - len(entry.hits)
		d.ResetAt = entry.hits[0].Add(rule.Window)
	} else {
		d.ResetAt = entry.hits[0].Add(rule.Window)
		d.RetryAfter = d.ResetAt.Sub(now)
	}

	s.entries.Set(key, entry, rule.Window)
	return d, nil
}
