package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutConfig holds configuration for the automatic account lockout guard.
type LockoutConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration // rolling window for counting failures
	Duration    time.Duration // how long an account stays locked
}

// ErrLockoutUnavailable indicates the lockout backend is unreachable.
var ErrLockoutUnavailable = errors.New("lockout backend unavailable")

// LoginGuard tracks failed login attempts per username and locks the
// account once the configured threshold is reached inside the rolling
// window. Locks clear themselves through key expiry, so there is no
// unlock bookkeeping to get wrong.
type LoginGuard struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLoginGuard creates a lockout guard backed by Redis.
func NewLoginGuard(redisClient redis.UniversalClient, cfg LockoutConfig) *LoginGuard {
	return &LoginGuard{redis: redisClient, config: cfg}
}

func (g *LoginGuard) countKey(username string) string {
	return "alo:n:" + username
}

func (g *LoginGuard) lockKey(username string) string {
	return "alo:l:" + username
}

// RecordFailure increments the failure counter for a username. When the
// counter reaches the threshold the account is locked for the configured
// duration and true is returned.
func (g *LoginGuard) RecordFailure(ctx context.Context, username string) (bool, error) {
	if !g.config.Enabled || username == "" {
		return false, nil
	}

	count, err := g.redis.Incr(ctx, g.countKey(username)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	if count == 1 && g.config.Window > 0 {
		// TTL on first failure makes the counter a rolling window.
		if err := g.redis.Expire(ctx, g.countKey(username), g.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
	}

	if count < int64(g.config.MaxAttempts) {
		return false, nil
	}

	lockFor := g.config.Duration
	if lockFor <= 0 {
		lockFor = g.config.Window
	}
	if err := g.redis.Set(ctx, g.lockKey(username), time.Now().Add(lockFor).Unix(), lockFor).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return true, nil
}

// IsLocked reports whether the username is currently locked out, and if
// so, when the lock expires.
func (g *LoginGuard) IsLocked(ctx context.Context, username string) (bool, time.Time, error) {
	if !g.config.Enabled || username == "" {
		return false, time.Time{}, nil
	}

	until, err := g.redis.Get(ctx, g.lockKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return true, time.Unix(until, 0), nil
}

// Clear removes both the failure counter and any active lock, after a
// successful login or a manual unlock.
func (g *LoginGuard) Clear(ctx context.Context, username string) error {
	if !g.config.Enabled || username == "" {
		return nil
	}

	if err := g.redis.Del(ctx, g.countKey(username), g.lockKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// FailureCount returns the current failure count for a username.
func (g *LoginGuard) FailureCount(ctx context.Context, username string) (int, error) {
	if !g.config.Enabled || username == "" {
		return 0, nil
	}

	count, err := g.redis.Get(ctx, g.countKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return int(count), nil
}
