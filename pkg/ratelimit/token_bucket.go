package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Limiter 令牌桶限流器，按QPM恒速补充令牌
type Limiter struct {
	mu         sync.Mutex
	ratePerSec float64   // 每秒补充的令牌数
	burst      float64   // 桶容量(允许的突发量)
	tokens     float64   // 当前可用令牌
	lastRefill time.Time // 上次补充时间

	retryWait  time.Duration
	maxRetries int
}

// NewLimiter 按每分钟请求数创建限流器；burst<=0时取QPM的一半
func NewLimiter(qpm int, burst int) *Limiter {
	if qpm <= 0 {
		qpm = 60
	}
	if burst <= 0 {
		burst = qpm / 2
		if burst <= 0 {
			burst = 1
		}
	}

	return &Limiter{
		ratePerSec: float64(qpm) / 60.0,
		burst:      float64(burst),
		tokens:     float64(burst),
		lastRefill: time.Now(),
		retryWait:  1 * time.Second,
		maxRetries: 3,
	}
}

// WithRetryPolicy 调整Do的重试等待时间与最大重试次数
func (l *Limiter) WithRetryPolicy(wait time.Duration, maxRetries int) *Limiter {
	if wait > 0 {
		l.retryWait = wait
	}
	if maxRetries >= 0 {
		l.maxRetries = maxRetries
	}
	return l
}

// refillLocked 按经过的时间补充令牌，调用方须持有锁
func (l *Limiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now

	l.tokens += elapsed * l.ratePerSec
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
}

// Allow 非阻塞地尝试消耗一个令牌
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()
	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}

// Wait 阻塞直到取得一个令牌或上下文取消
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refillLocked()

		if l.tokens >= 1.0 {
			l.tokens -= 1.0
			l.mu.Unlock()
			return nil
		}

		need := (1.0 - l.tokens) / l.ratePerSec
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(need * float64(time.Second))):
		}
	}
}

// Do 在限流保护下执行fn；对可重试错误做指数退避重试
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	var err error

	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if err = l.Wait(ctx); err != nil {
			return err
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !isRetryable(err) || attempt >= l.maxRetries {
			return err
		}

		backoff := l.retryWait * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return err
}

// isRetryable 根据错误消息判断是否值得重试
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, marker := range []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"EOF",
		"no such host",
		"429",
		"rate limit",
		"Throttling",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
