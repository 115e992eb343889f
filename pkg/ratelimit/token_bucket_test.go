package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLimiterAllowConsumesBurst 初始突发额度用完后Allow应拒绝
func TestLimiterAllowConsumesBurst(t *testing.T) {
	l := NewLimiter(60, 3) // 每秒1个令牌，突发3个

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "突发额度耗尽后应立即拒绝")
}

// TestLimiterWaitRespectsContext 上下文取消时Wait必须返回
func TestLimiterWaitRespectsContext(t *testing.T) {
	l := NewLimiter(1, 1) // 每分钟1个，几乎不补充
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestDoRetriesRetryableError 可重试错误应重试到成功
func TestDoRetriesRetryableError(t *testing.T) {
	l := NewLimiter(6000, 10).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	err := l.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

// TestDoStopsOnPermanentError 不可重试的错误应立即返回
func TestDoStopsOnPermanentError(t *testing.T) {
	l := NewLimiter(6000, 10).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	err := l.Do(context.Background(), func() error {
		calls++
		return errors.New("invalid api key")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "鉴权类错误不应被重试")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(errors.New("context deadline exceeded")))
	assert.True(t, isRetryable(errors.New("HTTP 429 too many requests")))
	assert.False(t, isRetryable(nil))
	assert.False(t, isRetryable(errors.New("record not found")))
}
