package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	authcore "github.com/MrTornister/Work-Flow-app"
)

// RateLimit charges every request against the client's window. Rejected
// requests get 429 with Retry-After; admitted ones carry X-RateLimit-Limit
// and X-RateLimit-Remaining. Downstream handlers see the client address and
// a marker so that [authcore.Engine.Login] does not charge the request twice.
// The client is keyed by [ClientIP], so mount [RealIP] in front of it when
// the server sits behind a reverse proxy.
func RateLimit(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, authcore.ErrEngineNotReady)
				return
			}

			ip := ClientIP(r)
			ctx := authcore.WithClientIP(r.Context(), ip)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(engine.RateLimit()))

			if err := engine.CheckRate(ctx, ip); err != nil {
				if errors.Is(err, authcore.ErrRateLimitExceeded) {
					secs := int(math.Ceil(engine.RetryAfter().Seconds()))
					w.Header().Set("Retry-After", strconv.Itoa(secs))
					w.Header().Set("X-RateLimit-Remaining", "0")
				}
				WriteError(w, err)
				return
			}

			if remaining, err := engine.RateRemaining(ctx, ip); err == nil {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}

			next.ServeHTTP(w, r.WithContext(authcore.WithRateChecked(ctx)))
		})
	}
}
