package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TOTPConfig tunes the second-factor attempt limiter.
type TOTPConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// TOTPLimiter caps code guesses on the two-factor completion path. A
// six-digit code with a skew window is brute-forceable without this;
// counters are keyed by principal so one account cannot burn another's
// budget. Safe for concurrent use.
type TOTPLimiter struct {
	redis  redis.UniversalClient
	config TOTPConfig
}

func NewTOTP(client redis.UniversalClient, cfg TOTPConfig) *TOTPLimiter {
	return &TOTPLimiter{redis: client, config: cfg}
}

// Check reports whether the principal still has attempt budget.
func (l *TOTPLimiter) Check(ctx context.Context, principalID string) error {
	count, err := l.redis.Get(ctx, totpKey(principalID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure counts one wrong code and starts the cooldown window on
// the first failure.
func (l *TOTPLimiter) RecordFailure(ctx context.Context, principalID string) error {
	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, totpKey(principalID))
	pipe.ExpireNX(ctx, totpKey(principalID), l.config.Cooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if incr.Val() > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter after a correct code.
func (l *TOTPLimiter) Reset(ctx context.Context, principalID string) error {
	if err := l.redis.Del(ctx, totpKey(principalID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func totpKey(principalID string) string {
	return "authcore:2fa:id:" + principalID
}
