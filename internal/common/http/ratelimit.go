package http

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AlibekovAA/panel-auth/internal/common/constants"
	"github.com/AlibekovAA/panel-auth/internal/observability/metrics"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key. Buckets idle for longer
// than RateLimitCleanupPeriod are dropped.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     limit,
		burst:    burst,
		stop:     make(chan struct{}),
	}

	go rl.cleanupLimiters(constants.RateLimitCleanupPeriod)

	return rl
}

func (rl *RateLimiter) cleanupLimiters(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, entry := range rl.limiters {
				if now.Sub(entry.lastSeen) > period {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// StrictRateLimiter applies tighter buckets to the credential endpoints and a
// window-based budget to everything else.
type StrictRateLimiter struct {
	loginLimiter   *RateLimiter
	refreshLimiter *RateLimiter
	generalLimiter *RateLimiter
	loginPath      string
	refreshPath    string
	clientIPs      *ClientIPResolver
}

func NewStrictRateLimiter(loginPath, refreshPath string, window time.Duration, max int, clientIPs *ClientIPResolver) *StrictRateLimiter {
	general := rate.Limit(float64(max) / window.Seconds())
	return &StrictRateLimiter{
		loginLimiter:   NewRateLimiter(rate.Limit(constants.RateLimitLoginPerSecond), constants.RateLimitLoginBurst),
		refreshLimiter: NewRateLimiter(rate.Limit(constants.RateLimitRefreshPerSecond), constants.RateLimitRefreshBurst),
		generalLimiter: NewRateLimiter(general, max),
		loginPath:      loginPath,
		refreshPath:    refreshPath,
		clientIPs:      clientIPs,
	}
}

func (srl *StrictRateLimiter) Stop() {
	srl.loginLimiter.Stop()
	srl.refreshLimiter.Stop()
	srl.generalLimiter.Stop()
}

func (srl *StrictRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter, limiterType := srl.generalLimiter, "general"
		switch r.URL.Path {
		case srl.loginPath:
			limiter, limiterType = srl.loginLimiter, "login"
		case srl.refreshPath:
			limiter, limiterType = srl.refreshLimiter, "refresh"
		}

		if !limiter.Allow(srl.clientIPs.ClientIP(r)) {
			metrics.RateLimitBlocked.WithLabelValues(r.URL.Path, limiterType).Inc()
			WriteErrorEnvelope(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", nil, TraceIDFromContext(r.Context()))
			return
		}

		next.ServeHTTP(w, r)
	})
}
