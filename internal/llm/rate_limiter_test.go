package llm

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisAddr() string {
	if addr := os.Getenv("CODECTX_TEST_REDIS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// newTestLimiter connects to the test Redis or skips. Each test uses
// its own scope so counters never bleed between tests.
func newTestLimiter(t *testing.T, scope string, limits Limits) *RateLimiter {
	t.Helper()

	rl, err := NewRateLimiter(testRedisAddr(), scope, limits)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr(), err)
	}

	ctx := context.Background()
	cleanup := func() {
		keys, err := rl.redis.Keys(ctx, "codectx:"+scope+":*").Result()
		if err == nil && len(keys) > 0 {
			rl.redis.Del(ctx, keys...)
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		rl.Close()
	})
	return rl
}

func TestRateLimiterInvalidConnection(t *testing.T) {
	rl, err := NewRateLimiter("localhost:1", "test", Limits{})
	assert.Error(t, err, "Should fail to connect to invalid Redis address")
	assert.Nil(t, rl)
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := newTestLimiter(t, "test-defaults", Limits{})
	assert.Equal(t, int64(DefaultRPM), rl.rpmLimit)
	assert.Equal(t, int64(DefaultTPM), rl.tpmLimit)
	assert.Equal(t, int64(DefaultRPD), rl.rpdLimit)
}

func TestRateLimiterAllowUnderLimit(t *testing.T) {
	rl := newTestLimiter(t, "test-under", Limits{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := rl.Allow(ctx, 100)
		assert.NoError(t, err, "Should allow requests well under limit")
	}

	rpm, tpm, rpd, err := rl.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), rpm)
	assert.Equal(t, int64(1000), tpm)
	assert.Equal(t, int64(10), rpd)
}

func TestRateLimiterThrottlesRPM(t *testing.T) {
	rl := newTestLimiter(t, "test-rpm", Limits{RPM: 10})
	ctx := context.Background()

	// 90% of 10 is 9, so the ninth request trips the threshold
	for i := 0; i < 8; i++ {
		require.NoError(t, rl.Allow(ctx, 1))
	}

	err := rl.Allow(ctx, 1)
	require.Error(t, err, "Should throttle at 90%% of RPM limit")

	var throttle *ThrottleError
	require.True(t, errors.As(err, &throttle))
	assert.Equal(t, "RPM", throttle.Limit)
	assert.False(t, throttle.Daily)
	assert.Greater(t, throttle.RetryAfter, time.Duration(0))
}

func TestRateLimiterThrottlesTPM(t *testing.T) {
	rl := newTestLimiter(t, "test-tpm", Limits{TPM: 1000})
	ctx := context.Background()

	err := rl.Allow(ctx, 950)
	require.Error(t, err, "Should throttle when approaching TPM limit")

	var throttle *ThrottleError
	require.True(t, errors.As(err, &throttle))
	assert.Equal(t, "TPM", throttle.Limit)
}

func TestRateLimiterDailyQuota(t *testing.T) {
	rl := newTestLimiter(t, "test-daily", Limits{RPD: 5})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, rl.Allow(ctx, 1))
	}

	err := rl.Allow(ctx, 1)
	require.Error(t, err, "Should reject at 100%% of daily quota")

	var throttle *ThrottleError
	require.True(t, errors.As(err, &throttle))
	assert.Equal(t, "RPD", throttle.Limit)
	assert.True(t, throttle.Daily)

	// Wait must not retry daily exhaustion
	err = rl.Wait(ctx, 1)
	require.Error(t, err)
	require.True(t, errors.As(err, &throttle))
	assert.True(t, throttle.Daily)
}

func TestThrottleErrorMessages(t *testing.T) {
	minute := &ThrottleError{Limit: "RPM", Current: 900, Max: 1000, RetryAfter: 30 * time.Second}
	assert.True(t, strings.Contains(minute.Error(), "RPM"))
	assert.True(t, strings.Contains(minute.Error(), "retry in"))

	daily := &ThrottleError{Limit: "RPD", Current: 10000, Max: 10000, RetryAfter: time.Hour, Daily: true}
	assert.True(t, strings.Contains(daily.Error(), "daily quota exceeded"))
}
