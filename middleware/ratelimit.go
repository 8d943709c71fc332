package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit ограничивает входящие вызовы одним token bucket на процесс.
// rps <= 0 отключает лимит.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rps > 0 && !limiter.Allow() {
				retryAfter := time.Duration(float64(time.Second) / rps)
				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(retryAfter.Seconds()))))
				slog.Warn("rate limit exceeded", slog.String("path", r.URL.Path), slog.String("remote_addr", r.RemoteAddr))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
