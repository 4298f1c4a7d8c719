package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// Redis keeps one sorted set per key, scored by request time in
// milliseconds. Old entries are trimmed on every call.
type Redis struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedis(c redis.UniversalClient) *Redis {
	return &Redis{client: c, now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	key = keyPrefix + key
	now := r.now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	var card *redis.IntCmd

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now-window.Milliseconds(), 10))
		card = pipe.ZCard(ctx, key)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: member})
		pipe.PExpire(ctx, key, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit pipeline failed, %w", err)
	}

	if card.Val() < int64(limit) {
		return true, nil
	}

	// Over the limit, take back the entry that was just added
	if err := r.client.ZRem(ctx, key, member).Err(); err != nil {
		return false, fmt.Errorf("failed to undo rate limit entry, %w", err)
	}

	return false, nil
}
