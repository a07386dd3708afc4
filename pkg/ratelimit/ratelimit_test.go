package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllow(t *testing.T) {
	tb := NewTokenBucket(3, 1)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
	assert.Equal(t, 0, tb.GetRemaining())
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := NewBackoff(2*time.Second, 10*time.Second)

	// 抖动幅度为 ±20%，按区间断言
	first := b.Next()
	assert.GreaterOrEqual(t, first, 1600*time.Millisecond)
	assert.LessOrEqual(t, first, 2400*time.Millisecond)

	second := b.Next()
	assert.GreaterOrEqual(t, second, 3200*time.Millisecond)
	assert.LessOrEqual(t, second, 4800*time.Millisecond)

	// 反复翻倍后封顶在 Max 附近
	for i := 0; i < 10; i++ {
		b.Next()
	}
	capped := b.Next()
	assert.LessOrEqual(t, capped, 12*time.Second)
	assert.GreaterOrEqual(t, capped, 8*time.Second)
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)
	b.Next()
	b.Next()
	b.Reset()

	d := b.Next()
	assert.GreaterOrEqual(t, d, 800*time.Millisecond)
	assert.LessOrEqual(t, d, 1200*time.Millisecond)
}
