package llm

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"natal-book-ai/internal/config"
	"natal-book-ai/pkg/logger"
)

// WindowChecker 跨进程的滑动窗口检查，由 Redis 实现
type WindowChecker interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RequestLimiter 在每次 provider 调用前等待配额。
// 进程内使用令牌桶；配置了 WindowChecker 时还需通过共享窗口。
type RequestLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	pauseTo time.Time

	window      WindowChecker
	windowKey   string
	windowLimit int
	pollEvery   time.Duration
}

// NewRequestLimiter requestsPerMinute <= 0 时不限速
func NewRequestLimiter(requestsPerMinute, burst int) *RequestLimiter {
	l := &RequestLimiter{pollEvery: time.Second}
	if requestsPerMinute > 0 {
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
	return l
}

func NewRequestLimiterFromConfig(cfg *config.PacingConfig) *RequestLimiter {
	return NewRequestLimiter(cfg.RequestsPerMinute, cfg.Burst)
}

// WithWindow 启用共享窗口，key 一般为 provider 维度
func (l *RequestLimiter) WithWindow(w WindowChecker, key string) *RequestLimiter {
	l.window = w
	l.windowKey = key
	if l.limiter != nil {
		l.windowLimit = int(float64(l.limiter.Limit())*60 + 0.5)
	}
	return l
}

// Pause 收到 429 后暂停所有调用
func (l *RequestLimiter) Pause(d time.Duration) {
	if d <= 0 {
		d = 30 * time.Second
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if until := time.Now().Add(d); until.After(l.pauseTo) {
		l.pauseTo = until
	}
}

// Wait 实现 port.RequestLimiter
func (l *RequestLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	pauseTo := l.pauseTo
	l.mu.Unlock()

	if wait := time.Until(pauseTo); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if l.window == nil || l.windowLimit <= 0 {
		return nil
	}
	for {
		ok, err := l.window.Allow(ctx, l.windowKey, l.windowLimit, time.Minute)
		if err != nil {
			// Redis 不可用时退化为进程内限流
			logger.Warn(ctx, "shared rate window unavailable", "key", l.windowKey, "error", err.Error())
			return nil
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(l.pollEvery)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
