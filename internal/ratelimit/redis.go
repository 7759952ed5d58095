package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow is a fixed-window counter shared by every instance.
type RedisWindow struct {
	rdb    redis.UniversalClient
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisWindow(rdb redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisWindow {
	return &RedisWindow{
		rdb:    rdb,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (w *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	slot := w.now().UnixNano() / int64(w.window)
	k := w.prefix + ":" + key + ":" + strconv.FormatInt(slot, 10)

	var incr *redis.IntCmd
	_, err := w.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, w.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", w.prefix, err)
	}
	return incr.Val() <= w.limit, nil
}
