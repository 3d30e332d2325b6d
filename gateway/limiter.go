package gateway

import (
	"context"
	"sync"
	"time"
)

// RateLimiter 控制对上游行情源的请求速率，避免触发封锁。
type RateLimiter interface {
	Wait(ctx context.Context, source string) error
}

// SourceLimiter 每个行情源一个独立令牌桶，单一源吃不光别人的配额。
// Wait 等待补充令牌时可被 ctx 取消，取消后直接回传 ctx 的错误。
type SourceLimiter struct {
	rate  float64
	burst float64

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func NewSourceLimiter(ratePerSec float64, burst int) *SourceLimiter {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &SourceLimiter{
		rate:    ratePerSec,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
	}
}

// take consumes one token for source, or returns how long to wait
// before trying again.
func (l *SourceLimiter) take(source string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[source]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[source] = b
	}
	b.tokens += now.Sub(b.last).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	return time.Duration((1-b.tokens)/l.rate*float64(time.Second)) + time.Millisecond
}

func (l *SourceLimiter) Wait(ctx context.Context, source string) error {
	for {
		d := l.take(source)
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
