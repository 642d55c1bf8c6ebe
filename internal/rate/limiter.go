// Package rate enforces login attempt budgets with Redis counters keyed
// by identifier and, optionally, by client IP. The limiter sits in front
// of credential verification; its counters are cleared on success.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited signals the attempt budget is exhausted.
	ErrRateLimited = errors.New("rate: limited")
	// ErrUnavailable signals the Redis backend could not be reached.
	ErrUnavailable = errors.New("rate: backend unavailable")
)

// Config holds limiter tuning parameters.
type Config struct {
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

// Limiter tracks failed login attempts. Safe for concurrent use.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(client redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: client, config: cfg}
}

// Check reports whether the identifier+IP pair is still within budget.
func (l *Limiter) Check(ctx context.Context, identifier, ip string) error {
	if err := l.check(ctx, identifierKey(identifier)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.check(ctx, ipKey(ip))
	}
	return nil
}

// RecordFailure counts one failed attempt and starts the cooldown window
// on the first failure.
func (l *Limiter) RecordFailure(ctx context.Context, identifier, ip string) error {
	if err := l.increment(ctx, identifierKey(identifier)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.increment(ctx, ipKey(ip))
	}
	return nil
}

// Reset clears the counters after a successful login.
func (l *Limiter) Reset(ctx context.Context, identifier, ip string) error {
	keys := []string{identifierKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, ipKey(ip))
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *Limiter) check(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
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

func (l *Limiter) increment(ctx context.Context, key string) error {
	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.config.Cooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if incr.Val() > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func identifierKey(identifier string) string {
	return "authcore:login:id:" + identifier
}

func ipKey(ip string) string {
	return "authcore:login:ip:" + ip
}
