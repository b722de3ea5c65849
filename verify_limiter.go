package authkeep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// verifyLimiter throttles failed two-factor verifications per user. The
// counter lives in Redis so all engine instances share one budget.
type verifyLimiter struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int
	window      time.Duration
}

func newVerifyLimiter(client redis.UniversalClient, prefix string, maxAttempts int, window time.Duration) *verifyLimiter {
	return &verifyLimiter{
		redis:       client,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (l *verifyLimiter) key(userID string) string {
	return l.prefix + ":att:" + userID
}

// Check returns ErrTooManyAttempts when the user has exhausted the window's
// failure budget.
func (l *verifyLimiter) Check(ctx context.Context, userID string) error {
	count, err := l.redis.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if count >= int64(l.maxAttempts) {
		return ErrTooManyAttempts
	}
	return nil
}

// RecordFailure increments the counter, starting the window on the first
// failure, and reports ErrTooManyAttempts once the budget is spent.
func (l *verifyLimiter) RecordFailure(ctx context.Context, userID string) error {
	count, err := l.redis.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(userID), l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if count >= int64(l.maxAttempts) {
		return ErrTooManyAttempts
	}
	return nil
}

// Reset clears the counter after a successful verification.
func (l *verifyLimiter) Reset(ctx context.Context, userID string) error {
	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
