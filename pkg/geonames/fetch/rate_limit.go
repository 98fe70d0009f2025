package fetch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostRateLimiter keeps one token bucket per host. A nil limiter lets every
// request through.
type HostRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewHostRateLimiter returns nil when rps is not positive, which disables
// limiting.
func NewHostRateLimiter(rps float64, burst int) *HostRateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (l *HostRateLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || host == "" {
		return nil
	}
	return l.getLimiter(host).Wait(ctx)
}

func (l *HostRateLimiter) getLimiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[host] = limiter
	}
	return limiter
}
