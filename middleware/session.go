package middleware

import (
	"context"
	"errors"
	"net/http"

	authcore "github.com/MrTornister/Work-Flow-app"
	"github.com/MrTornister/Work-Flow-app/session"
)

const (
	SessionCookie = "session_id"
	SessionHeader = "X-Session-ID"
)

type sessionContextKey struct{}

// SessionFromContext returns the record refreshed by [Session].
func SessionFromContext(ctx context.Context) (*session.Record, bool) {
	rec, ok := ctx.Value(sessionContextKey{}).(*session.Record)
	return rec, ok
}

func sessionIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Session refreshes the last activity of the session named by the request.
// Requests without one pass through untouched. An idle or unknown session
// clears the cookie and continues anonymously; guards further down decide
// whether that is acceptable.
func Session(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sessionIDFromRequest(r)
			if id == "" || engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			rec, err := engine.TouchSession(r.Context(), id)
			switch {
			case err == nil:
				ctx := context.WithValue(r.Context(), sessionContextKey{}, rec)
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, authcore.ErrSessionExpired):
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    "",
					Path:     "/",
					MaxAge:   -1,
					HttpOnly: true,
					SameSite: http.SameSiteStrictMode,
				})
				next.ServeHTTP(w, r)
			default:
				WriteError(w, err)
			}
		})
	}
}

// SetSessionCookie hands sessionID to a browser client.
func SetSessionCookie(w http.ResponseWriter, sessionID string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
