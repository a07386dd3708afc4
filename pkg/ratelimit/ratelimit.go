package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// TokenBucket 令牌桶速率限制器，用于约束对外部 API（Telegram、RPC 节点）的请求频率
type TokenBucket struct {
	capacity   int       // 桶容量
	tokens     int       // 当前令牌数
	refillRate int       // 每秒补充的令牌数
	lastRefill time.Time // 上次补充时间
	mu         sync.Mutex
}

// NewTokenBucket 创建新的令牌桶
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// refill 补充令牌
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	tokensToAdd := int(elapsed.Seconds()) * tb.refillRate
	if tokensToAdd > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+tokensToAdd)
		tb.lastRefill = now
	}
}

// Allow 检查是否允许请求
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait 等待直到允许请求
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		waitTime := time.Second
		if tb.refillRate > 0 {
			waitTime = time.Second / time.Duration(tb.refillRate)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// GetRemaining 获取剩余令牌数
func (tb *TokenBucket) GetRemaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// Backoff 指数退避计算器（带抖动），用于轮询出错后的重试间隔
// 非并发安全，调用方单 goroutine 使用
type Backoff struct {
	Base    time.Duration // 初始间隔
	Max     time.Duration // 间隔上限
	current time.Duration
}

// NewBackoff 创建退避计算器
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{Base: base, Max: max}
}

// Next 返回下一次等待时长：上次的 2 倍加 ±20% 抖动，封顶 Max
func (b *Backoff) Next() time.Duration {
	if b.current <= 0 {
		b.current = b.Base
	} else {
		b.current *= 2
		if b.current > b.Max {
			b.current = b.Max
		}
	}
	// 抖动避免多个实例同步重试
	jitter := time.Duration(rand.Int63n(int64(b.current)/5+1)) - b.current/10
	d := b.current + jitter
	if d < 0 {
		d = b.Base
	}
	return d
}

// Reset 成功后重置退避状态
func (b *Backoff) Reset() {
	b.current = 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
