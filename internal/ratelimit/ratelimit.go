// Package ratelimit counts requests per key over a sliding window
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request under key fits into the last
// window. A denied request is not counted.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
