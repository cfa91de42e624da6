package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisKey holds the request slot shared by all processes using the
// same Reader token.
const DefaultRedisKey = "readwise:rate_limit:slot"

// Shared spaces requests across processes through a Redis key. A process may
// send a request only after it claimed the slot key, which expires one
// interval later.
type Shared struct {
	redis    *redis.Client
	key      string
	interval time.Duration
	logger   zerolog.Logger
}

// NewShared creates a Redis-backed limiter admitting requests per window.
func NewShared(redisClient *redis.Client, key string, requests int, window time.Duration, logger zerolog.Logger) *Shared {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &Shared{
		redis:    redisClient,
		key:      key,
		interval: Interval(requests, window),
		logger:   logger,
	}
}

// Wait implements Limiter.
func (s *Shared) Wait(ctx context.Context) error {
	start := time.Now()
	for {
		claimed, err := s.redis.SetNX(ctx, s.key, strconv.FormatInt(time.Now().UnixMilli(), 10), s.interval).Result()
		if err != nil {
			return fmt.Errorf("claim request slot: %w", err)
		}
		if claimed {
			waitSeconds.WithLabelValues("shared").Observe(time.Since(start).Seconds())
			return nil
		}

		remaining, err := s.redis.PTTL(ctx, s.key).Result()
		if err != nil {
			return fmt.Errorf("read request slot ttl: %w", err)
		}
		// Key without expiry or already gone: poll again shortly.
		if remaining <= 0 {
			remaining = 50 * time.Millisecond
		}

		s.logger.Debug().
			Str("key", s.key).
			Dur("wait_duration", remaining).
			Msg("Request slot held by another process")

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit wait: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
