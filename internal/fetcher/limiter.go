package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter enforces per-host politeness: a token bucket and an optional
// minimum delay between requests to the same host.
// A nil *HostLimiter never blocks.
type HostLimiter struct {
	perSecond float64
	delay     time.Duration

	mu       sync.Mutex
	last     map[string]time.Time
	limiters map[string]*rate.Limiter
}

// NewHostLimiter returns a limiter allowing perSecond requests per host
// (burst 1) and at least delay between consecutive requests to a host.
// It returns nil when both are zero.
func NewHostLimiter(perSecond float64, delay time.Duration) *HostLimiter {
	if perSecond <= 0 && delay <= 0 {
		return nil
	}
	return &HostLimiter{
		perSecond: perSecond,
		delay:     delay,
		last:      make(map[string]time.Time),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || host == "" {
		return nil
	}
	host = strings.ToLower(host)

	var (
		sleep   time.Duration
		limiter *rate.Limiter
	)

	l.mu.Lock()
	if l.delay > 0 {
		if last, ok := l.last[host]; ok {
			if rest := time.Until(last.Add(l.delay)); rest > 0 {
				sleep = rest
			}
		}
		// Reserve the slot now so concurrent workers space themselves out.
		l.last[host] = time.Now().Add(sleep)
	}
	if l.perSecond > 0 {
		limiter = l.limiters[host]
		if limiter == nil {
			limiter = rate.NewLimiter(rate.Limit(l.perSecond), 1)
			l.limiters[host] = limiter
		}
	}
	l.mu.Unlock()

	if sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if limiter != nil {
		return limiter.Wait(ctx)
	}
	return nil
}
