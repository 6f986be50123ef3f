package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubportal/hub/internal/config"
)

func TestMemoryLimiterQuota(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(3, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Check(ctx, "u-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i)
	}

	d, err := l.Check(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, (20 * time.Second).Seconds(), d.RetryAfter.Seconds(), 0.5)

	other, err := l.Check(ctx, "u-2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(21 * time.Second)
	d, err = l.Check(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMemoryLimiterSweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(1, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := l.Check(ctx, "old")
	require.NoError(t, err)
	now = now.Add(4 * time.Minute)
	_, err = l.Check(ctx, "fresh")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, l.Sweep())
	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "fresh")
}

func TestNewPicksBackend(t *testing.T) {
	l, err := New(config.RateLimitConfig{Backend: "memory", Requests: 5, Window: time.Minute}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryLimiter{}, l)

	_, err = New(config.RateLimitConfig{Backend: "redis", Requests: 5, Window: time.Minute}, nil, nil)
	assert.Error(t, err)

	_, err = New(config.RateLimitConfig{Backend: "etcd", Requests: 5, Window: time.Minute}, nil, nil)
	assert.Error(t, err)
}
