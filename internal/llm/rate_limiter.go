package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default provider quotas. These match the common paid-tier limits for
// the fast models and can be overridden per deployment.
const (
	DefaultRPM = 1000      // requests per minute
	DefaultTPM = 1_000_000 // tokens per minute, input and output combined
	DefaultRPD = 10_000    // requests per day
)

// Limits overrides the default provider quotas. Zero fields keep the default.
type Limits struct {
	RPM int64
	TPM int64
	RPD int64
}

// ThrottleError reports that a quota threshold was reached
type ThrottleError struct {
	Limit      string // "RPM", "TPM", or "RPD"
	Current    int64
	Max        int64
	RetryAfter time.Duration
	Daily      bool // daily quotas only reset at midnight, do not retry
}

func (e *ThrottleError) Error() string {
	if e.Daily {
		return fmt.Sprintf("daily quota exceeded: %d/%d requests (resets in %s)", e.Current, e.Max, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("approaching %s limit (%d/%d), retry in %s", e.Limit, e.Current, e.Max, e.RetryAfter.Round(time.Second))
}

// RateLimiter provides proactive rate limiting for LLM providers using
// Redis. Counters are shared across processes so concurrent index jobs
// on one machine stay under the provider quota together.
type RateLimiter struct {
	redis    *redis.Client
	scope    string // key namespace, usually the provider name
	rpmLimit int64
	tpmLimit int64
	rpdLimit int64
	logger   *slog.Logger
}

// NewRateLimiter connects to Redis and returns a limiter scoped to one
// provider. Returns an error if Redis is unreachable.
func NewRateLimiter(redisAddr, scope string, limits Limits) (*RateLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", redisAddr, err)
	}

	if scope == "" {
		scope = "llm"
	}
	if limits.RPM <= 0 {
		limits.RPM = DefaultRPM
	}
	if limits.TPM <= 0 {
		limits.TPM = DefaultTPM
	}
	if limits.RPD <= 0 {
		limits.RPD = DefaultRPD
	}

	return &RateLimiter{
		redis:    client,
		scope:    scope,
		rpmLimit: limits.RPM,
		tpmLimit: limits.TPM,
		rpdLimit: limits.RPD,
		logger:   slog.Default().With("component", "ratelimit", "scope", scope),
	}, nil
}

// checkScript increments all three counters atomically and reports the
// first threshold crossed. Minute keys get a 70 second TTL to absorb
// clock skew, daily keys expire after 24 hours. The request thresholds
// trip at 90% so callers throttle before the provider rejects them.
var checkScript = redis.NewScript(`
	local rpm_key = KEYS[1]
	local tpm_key = KEYS[2]
	local rpd_key = KEYS[3]
	local rpm_limit = tonumber(ARGV[1])
	local tpm_limit = tonumber(ARGV[2])
	local rpd_limit = tonumber(ARGV[3])
	local tokens = tonumber(ARGV[4])

	local rpm = redis.call('INCR', rpm_key)
	local tpm = redis.call('INCRBY', tpm_key, tokens)
	local rpd = redis.call('INCR', rpd_key)

	if rpm == 1 then redis.call('EXPIRE', rpm_key, 70) end
	if tpm == tokens then redis.call('EXPIRE', tpm_key, 70) end
	if rpd == 1 then redis.call('EXPIRE', rpd_key, 86400) end

	if rpm >= rpm_limit * 0.9 then
		return {-1, 'RPM', rpm, rpm_limit}
	end
	if tpm >= tpm_limit * 0.9 then
		return {-2, 'TPM', tpm, tpm_limit}
	end
	if rpd >= rpd_limit then
		return {-3, 'RPD', rpd, rpd_limit}
	end

	return {0, 'OK', rpm, tpm, rpd}
`)

func (r *RateLimiter) keys(now time.Time) (string, string, string) {
	minute := now.Format("2006-01-02T15:04")
	day := now.Format("2006-01-02")
	return fmt.Sprintf("codectx:%s:rpm:%s", r.scope, minute),
		fmt.Sprintf("codectx:%s:tpm:%s", r.scope, minute),
		fmt.Sprintf("codectx:%s:rpd:%s", r.scope, day)
}

// Allow increments the shared counters and returns a *ThrottleError if
// a quota threshold is reached. Other errors mean Redis itself failed.
func (r *RateLimiter) Allow(ctx context.Context, estimatedTokens int64) error {
	now := time.Now()
	rpmKey, tpmKey, rpdKey := r.keys(now)

	result, err := checkScript.Run(ctx, r.redis,
		[]string{rpmKey, tpmKey, rpdKey},
		r.rpmLimit, r.tpmLimit, r.rpdLimit, estimatedTokens).Result()
	if err != nil {
		return fmt.Errorf("rate limiter Redis operation failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 2 {
		return fmt.Errorf("invalid rate limiter response format")
	}

	code := resultSlice[0].(int64)
	if code >= 0 {
		return nil
	}

	limitType := resultSlice[1].(string)
	current := resultSlice[2].(int64)
	limit := resultSlice[3].(int64)

	if code == -3 {
		// Daily quota resets at local midnight
		tomorrow := now.Add(24 * time.Hour)
		midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
		return &ThrottleError{Limit: limitType, Current: current, Max: limit, RetryAfter: midnight.Sub(now), Daily: true}
	}

	// Minute windows reset at the top of the next minute
	wait := time.Duration(60-now.Second()) * time.Second
	if wait <= 0 {
		wait = time.Second
	}
	return &ThrottleError{Limit: limitType, Current: current, Max: limit, RetryAfter: wait}
}

// Wait blocks until the request fits under the quota, the daily quota
// is exhausted, or the context ends.
func (r *RateLimiter) Wait(ctx context.Context, estimatedTokens int64) error {
	for {
		err := r.Allow(ctx, estimatedTokens)
		if err == nil {
			return nil
		}

		var throttle *ThrottleError
		if !errors.As(err, &throttle) || throttle.Daily {
			return err
		}

		r.logger.Warn("throttling request", "limit", throttle.Limit, "current", throttle.Current, "max", throttle.Max, "wait", throttle.RetryAfter)
		select {
		case <-time.After(throttle.RetryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Usage returns the current window counters for monitoring
func (r *RateLimiter) Usage(ctx context.Context) (rpm, tpm, rpd int64, err error) {
	rpmKey, tpmKey, rpdKey := r.keys(time.Now())

	pipe := r.redis.Pipeline()
	rpmCmd := pipe.Get(ctx, rpmKey)
	tpmCmd := pipe.Get(ctx, tpmKey)
	rpdCmd := pipe.Get(ctx, rpdKey)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, 0, fmt.Errorf("failed to get usage stats: %w", err)
	}

	// Missing keys mean an untouched window
	rpm, _ = rpmCmd.Int64()
	tpm, _ = tpmCmd.Int64()
	rpd, _ = rpdCmd.Int64()
	return rpm, tpm, rpd, nil
}

// Close closes the Redis connection
func (r *RateLimiter) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}
