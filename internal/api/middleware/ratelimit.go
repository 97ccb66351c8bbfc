package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ourway/auth/internal/api/helpers"
)

// IPRateLimiter keeps one token bucket per client IP. The map is wiped on a
// timer rather than tracking last-seen timestamps; an occasional burst
// allowance reset is acceptable, unbounded growth is not.
type IPRateLimiter struct {
	ips    sync.Map
	config LimiterConfig
}

type LimiterConfig struct {
	RPS   rate.Limit
	Burst int
}

// NewIPRateLimiter creates the limiter and starts its cleanup loop.
func NewIPRateLimiter(rps rate.Limit, burst int) *IPRateLimiter {
	l := &IPRateLimiter{config: LimiterConfig{RPS: rps, Burst: burst}}
	go l.cleanupLoop()
	return l
}

// GetLimiter returns the bucket for the given IP, creating it on first use.
func (l *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	if limiter, ok := l.ips.Load(ip); ok {
		return limiter.(*rate.Limiter)
	}
	limiter, _ := l.ips.LoadOrStore(ip, rate.NewLimiter(l.config.RPS, l.config.Burst))
	return limiter.(*rate.Limiter)
}

func (l *IPRateLimiter) cleanupLoop() {
	for {
		time.Sleep(10 * time.Minute)
		l.ips.Range(func(key, value any) bool {
			l.ips.Delete(key)
			return true
		})
	}
}

// Middleware rejects requests over the per-IP budget with a 429 envelope.
// Runs after chi's RealIP, so RemoteAddr already reflects proxy headers.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if !l.GetLimiter(ip).Allow() {
			slog.Warn("rate_limit_exceeded", "ip", ip, "path", r.URL.Path)
			helpers.RespondError(w, http.StatusTooManyRequests, "Too Many Requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
