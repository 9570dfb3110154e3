package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Interval(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, New("dextools", 40).Interval())
	assert.Equal(t, 200*time.Millisecond, New("dexscreener", 300).Interval())
	assert.Equal(t, 2*time.Second, New("coingecko", 30).Interval())
	assert.Zero(t, Unlimited("cryptoapi").Interval())
}

func TestLimiter_WaitSpacesRequests(t *testing.T) {
	l := New("test", 600) // one every 100ms
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))

	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)
}

func TestLimiter_Unlimited(t *testing.T) {
	l := Unlimited("cryptoapi")
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
		assert.True(t, l.Allow())
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_Nil(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Wait(context.Background()))
	assert.True(t, l.Allow())
	assert.Equal(t, "", l.Name())
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := New("slow", 1) // one per minute
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "slow rate limiter")
}

func TestLimiter_Allow(t *testing.T) {
	l := New("test", 1)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
