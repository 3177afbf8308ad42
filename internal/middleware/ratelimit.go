package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/puzpuzpuz/xsync"
	"golang.org/x/time/rate"
)

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	limiters *xsync.MapOf[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter allows burst requests per IP, refilled at n every per.
func NewIPRateLimiter(n int, per time.Duration, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: xsync.NewMapOf[*rate.Limiter](),
		limit:    rate.Every(per / time.Duration(n)),
		burst:    burst,
	}
}

// Allow consumes one token for ip.
func (l *IPRateLimiter) Allow(ip string) bool {
	lim, ok := l.limiters.Load(ip)
	if !ok {
		lim, _ = l.limiters.LoadOrStore(ip, rate.NewLimiter(l.limit, l.burst))
	}
	return lim.Allow()
}

// Limit rejects requests over the per-IP budget with 429.
func (l *IPRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests, please try again later"})
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
