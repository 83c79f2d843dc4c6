package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL  = time.Hour
	limiterSweepGap = 10 * time.Minute
)

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	rps   rate.Limit
	burst int

	mu        sync.Mutex
	limiters  map[string]*ipEntry
	lastSweep time.Time
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = max(int(rps*2), 1)
	}
	return &ipRateLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		limiters:  make(map[string]*ipEntry),
		lastSweep: time.Now(),
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	now := time.Now()
	l.mu.Lock()
	e, ok := l.limiters[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = e
	}
	e.lastSeen = now
	if now.Sub(l.lastSweep) > limiterSweepGap {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}
	l.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			renderStatus(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limit")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
