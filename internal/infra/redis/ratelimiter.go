package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/kursadbilgin/renewal-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	fallbackLimitPerSec int64 = 10
	keyPrefix                = "renewal:ratelimit"
	backoffStep              = 25 * time.Millisecond
	backoffMax               = 250 * time.Millisecond
	windowSeconds            = 1
)

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a fixed one-second window limiter shared by every
// instance that points at the same Redis. Each channel has its own budget.
type RedisRateLimiter struct {
	client       *goredis.Client
	defaultLimit int64
	limits       map[domain.Channel]int64
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, defaultLimitPerSec int, channelLimits map[domain.Channel]int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, defaultLimitPerSec, channelLimits, time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	defaultLimitPerSec int,
	channelLimits map[domain.Channel]int,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	defaultLimit := int64(defaultLimitPerSec)
	if defaultLimit <= 0 {
		defaultLimit = fallbackLimitPerSec
	}

	limits := make(map[domain.Channel]int64, len(channelLimits))
	for ch, limit := range channelLimits {
		if !ch.IsValid() {
			return nil, fmt.Errorf("%w: unknown rate limit channel %q", domain.ErrValidation, ch)
		}
		if limit > 0 {
			limits[ch] = int64(limit)
		}
	}

	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client:       client,
		defaultLimit: defaultLimit,
		limits:       limits,
		now:          nowFn,
		sleep:        sleepFn,
	}, nil
}

func (r *RedisRateLimiter) limitFor(channel domain.Channel) int64 {
	if limit, ok := r.limits[channel]; ok {
		return limit
	}
	return r.defaultLimit
}

func (r *RedisRateLimiter) Allow(ctx context.Context, channel domain.Channel) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}
	if !channel.IsValid() {
		return false, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, channel)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := fmt.Sprintf("%s:%s:%d", keyPrefix, channel, r.now().UTC().Unix())
	result, err := allowScript.Run(ctx, r.client, []string{key}, r.limitFor(channel), windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

// Wait blocks until the channel has budget in the current window or ctx ends.
func (r *RedisRateLimiter) Wait(ctx context.Context, channel domain.Channel) error {
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := backoffStep
	for {
		allowed, err := r.Allow(ctx, channel)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff = min(backoff+backoffStep, backoffMax)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
