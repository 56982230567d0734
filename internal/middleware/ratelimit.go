package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"sprintium/internal/auth"
	"sprintium/internal/metrics"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RateLimit rejects requests with 429 once the caller's bucket for this path is empty.
// Requests are keyed by client IP and path, with forwarding headers honored only
// from proxies. Limiter failures let the request through.
func RateLimit(limiter Limiter, proxies TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.URL.Path + ":" + proxies.ClientIP(r)
			allowed, wait, err := limiter.Allow(r.Context(), key)
			if err != nil {
				slog.WarnContext(r.Context(), "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RateLimitedTotal.WithLabelValues(r.URL.Path).Inc()
				secs := int(math.Ceil(wait.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				auth.WriteJSONError(w, http.StatusTooManyRequests, "too many requests", auth.TypeRateLimit)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
