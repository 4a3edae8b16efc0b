package redislimiter

import (
	"context"
	"time"

	"github.com/jrsteele09/go-class-attendance/token"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "attendance:token-attempts:"

// Limiter shares token attempt counters between replicas through Redis. The key is created
// with its TTL before it is counted, so a counter can never outlive its window.
type Limiter struct {
	redis       *redis.Client
	maxAttempts int
	window      time.Duration
}

var _ token.AttemptLimiter = (*Limiter)(nil)

func New(redisClient *redis.Client, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		redis:       redisClient,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (l *Limiter) Locked(ctx context.Context, classID string) (bool, error) {
	count, err := l.redis.Get(ctx, key(classID)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Limiter.Locked] get")
	}
	return count >= l.maxAttempts, nil
}

func (l *Limiter) Fail(ctx context.Context, classID string) error {
	// SET NX EX opens the window only if none is running; INCR keeps the TTL.
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key(classID), 0, l.window)
		pipe.Incr(ctx, key(classID))
		return nil
	})
	return errors.Wrap(err, "[Limiter.Fail]")
}

func (l *Limiter) Reset(ctx context.Context, classID string) error {
	if err := l.redis.Del(ctx, key(classID)).Err(); err != nil {
		return errors.Wrap(err, "[Limiter.Reset]")
	}
	return nil
}

func key(classID string) string {
	return keyPrefix + classID
}
