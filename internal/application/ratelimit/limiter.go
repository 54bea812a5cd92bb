package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-api-assets/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	// OpLogin is the operation name login failures are counted under.
	OpLogin = "login"

	DefaultMaxAttempts   = 3
	DefaultAttemptWindow = 15 * time.Minute
	DefaultBlockDuration = 60 * time.Minute
)

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Limiter counts failures per (identifier, operation) in a fixed window and
// blocks the pair once the count reaches the maximum.
type Limiter struct {
	cache         cacheStore
	maxAttempts   int
	attemptWindow time.Duration
	blockDuration time.Duration
}

type Options struct {
	MaxAttempts   int
	AttemptWindow time.Duration
	BlockDuration time.Duration
}

func New(cache cacheStore, opts Options) *Limiter {
	l := &Limiter{
		cache:         cache,
		maxAttempts:   opts.MaxAttempts,
		attemptWindow: opts.AttemptWindow,
		blockDuration: opts.BlockDuration,
	}
	if l.maxAttempts <= 0 {
		l.maxAttempts = DefaultMaxAttempts
	}
	if l.attemptWindow <= 0 {
		l.attemptWindow = DefaultAttemptWindow
	}
	if l.blockDuration <= 0 {
		l.blockDuration = DefaultBlockDuration
	}
	return l
}

func (l *Limiter) IsBlocked(ctx context.Context, identifier, op string) (bool, error) {
	_, err := l.cache.Get(ctx, blockKey(identifier, op))
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read block flag: %w", err)
	}
	return true, nil
}

// IncrementFailure bumps the failure counter. The window starts at the first
// failure and later increments keep its remaining lifetime.
func (l *Limiter) IncrementFailure(ctx context.Context, identifier, op string) (domain.AttemptResult, error) {
	key := attemptsKey(identifier, op)

	attempts := 0
	v, err := l.cache.Get(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return domain.AttemptResult{}, fmt.Errorf("read attempts: %w", err)
	default:
		if attempts, err = strconv.Atoi(v); err != nil {
			log.Warn().Str("key", key).Str("value", v).Msg("corrupt attempt counter, restarting window")
			attempts = 0
		}
	}

	ttl := l.attemptWindow
	if attempts > 0 {
		remaining, err := l.cache.TTL(ctx, key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// Window lapsed between the two reads.
			attempts = 0
		case err != nil:
			return domain.AttemptResult{}, fmt.Errorf("read attempts ttl: %w", err)
		case remaining > 0:
			ttl = remaining
		}
	}

	attempts++
	if err := l.cache.Set(ctx, key, attempts, ttl); err != nil {
		return domain.AttemptResult{}, fmt.Errorf("write attempts: %w", err)
	}

	res := domain.AttemptResult{Attempts: attempts}
	if attempts >= l.maxAttempts {
		if err := l.cache.Set(ctx, blockKey(identifier, op), 1, l.blockDuration); err != nil {
			return domain.AttemptResult{}, fmt.Errorf("write block flag: %w", err)
		}
		res.IsBlocked = true
	}
	return res, nil
}

// ResetAttempts clears the counter. An active block is left to expire.
func (l *Limiter) ResetAttempts(ctx context.Context, identifier, op string) error {
	_, err := l.cache.Del(ctx, attemptsKey(identifier, op))
	return err
}

func attemptsKey(identifier, op string) string {
	return "rate-limit:attempts:" + op + ":" + identifier
}

func blockKey(identifier, op string) string {
	return "rate-limit:block:" + op + ":" + identifier
}
