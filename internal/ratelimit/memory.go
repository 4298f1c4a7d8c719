package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v2"
)

// Memory is the in-process limiter. Each key holds the times of its
// allowed requests and is evicted once its newest entry leaves the window.
type Memory struct {
	mu    sync.Mutex
	cache *ttlcache.Cache
	now   func() time.Time
}

func NewMemory() *Memory {
	c := ttlcache.NewCache()
	c.SkipTTLExtensionOnHit(true)

	return &Memory{cache: c, now: time.Now}
}

func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-window)

	var log []time.Time

	v, err := m.cache.Get(key)
	switch {
	case err == nil:
		log = v.([]time.Time)
	case errors.Is(err, ttlcache.ErrNotFound):
	default:
		return false, err
	}

	kept := log[:0]
	for _, t := range log {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		if err := m.cache.SetWithTTL(key, kept, window); err != nil {
			return false, err
		}

		return false, nil
	}

	kept = append(kept, now)
	if err := m.cache.SetWithTTL(key, kept, window); err != nil {
		return false, err
	}

	return true, nil
}

// Close stops the cache's expiry loop
func (m *Memory) Close() error {
	return m.cache.Close()
}
