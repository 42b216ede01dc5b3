// Package ratelimit throttles OTP issuance per user and purpose: a cooldown
// between consecutive requests, a cap per sliding window, and a block once
// the cap is exceeded.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store is the subset of Redis operations the limiter needs
type Store interface {
	TTL(ctx context.Context, key string) (time.Duration, error)
	IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// SetNX writes key only when it is absent and reports whether it did
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

// LimitError tells the caller how long to wait
type LimitError struct {
	RetryAfter time.Duration
	Blocked    bool
}

func (e *LimitError) Error() string {
	secs := int(e.RetryAfter.Round(time.Second).Seconds())
	if e.Blocked {
		return fmt.Sprintf("too many OTP requests; please try again after %d seconds", secs)
	}
	return fmt.Sprintf("please wait %d seconds before requesting another OTP", secs)
}

type Config struct {
	Cooldown    time.Duration
	Window      time.Duration
	MaxInWindow int
	// BlockFor defaults to three windows
	BlockFor time.Duration
}

type Limiter struct {
	store  Store
	config Config
}

func NewLimiter(store Store, config Config) *Limiter {
	if config.BlockFor <= 0 {
		config.BlockFor = config.Window * 3
	}
	return &Limiter{store: store, config: config}
}

func keys(subject, purpose string) (block, last, count string) {
	return fmt.Sprintf("otp:block:%s:%s", subject, purpose),
		fmt.Sprintf("otp:last:%s:%s", subject, purpose),
		fmt.Sprintf("otp:count:%s:%s", subject, purpose)
}

// Allow records a request and returns *LimitError when it must be refused
func (l *Limiter) Allow(ctx context.Context, subject, purpose string) error {
	blockKey, lastKey, countKey := keys(subject, purpose)

	if ttl, err := l.store.TTL(ctx, blockKey); err != nil {
		return fmt.Errorf("read block ttl: %w", err)
	} else if ttl > 0 {
		return &LimitError{RetryAfter: ttl, Blocked: true}
	}

	// a lost claim means another request holds the cooldown
	if l.config.Cooldown > 0 {
		claimed, err := l.store.SetNX(ctx, lastKey, "1", l.config.Cooldown)
		if err != nil {
			return fmt.Errorf("claim cooldown: %w", err)
		}
		if !claimed {
			ttl, err := l.store.TTL(ctx, lastKey)
			if err != nil {
				return fmt.Errorf("read cooldown ttl: %w", err)
			}
			if ttl <= 0 {
				ttl = l.config.Cooldown
			}
			return &LimitError{RetryAfter: ttl}
		}
	}

	if l.config.MaxInWindow > 0 {
		cnt, err := l.store.IncrWithExpire(ctx, countKey, l.config.Window)
		if err != nil {
			return fmt.Errorf("increment request count: %w", err)
		}

		if int(cnt) > l.config.MaxInWindow {
			if err := l.store.Set(ctx, blockKey, "1", l.config.BlockFor); err != nil {
				return fmt.Errorf("set block: %w", err)
			}
			return &LimitError{RetryAfter: l.config.BlockFor, Blocked: true}
		}
	}

	return nil
}
