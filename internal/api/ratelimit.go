package api

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
)

// NewAILimiter returns a limiter allowing perMinute completion calls per
// minute with an equal burst. Zero or negative disables limiting.
func NewAILimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// RateLimit rejects requests with 429 once l is exhausted. A nil limiter
// lets everything through.
func RateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "60")
				writeError(w, apperr.New(apperr.CodeRateLimited, "too many requests to the AI service, try again shortly"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
