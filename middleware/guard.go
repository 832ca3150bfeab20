package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	authcore "github.com/MrTornister/Work-Flow-app"
	"github.com/MrTornister/Work-Flow-app/permission"
)

type authResultContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*authcore.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authcore.AuthResult)
	return res, ok
}

// Guard admits requests whose bearer token grants perm. An empty perm only
// authenticates.
func Guard(engine *authcore.Engine, perm permission.Permission) func(http.Handler) http.Handler {
	return guard(engine, func(r *http.Request, token string) (*authcore.AuthResult, error) {
		return engine.Authorize(r.Context(), token, perm)
	})
}

// RequireSession is [Guard] plus the session idle check. The session comes
// from the token's sid claim unless the request names one explicitly.
func RequireSession(engine *authcore.Engine, perm permission.Permission) func(http.Handler) http.Handler {
	return guard(engine, func(r *http.Request, token string) (*authcore.AuthResult, error) {
		return engine.AuthorizeSession(r.Context(), token, sessionIDFromRequest(r), perm)
	})
}

func guard(engine *authcore.Engine, check func(*http.Request, string) (*authcore.AuthResult, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, authcore.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, authcore.ErrTokenInvalid)
				return
			}

			res, err := check(r.WithContext(withClientIP(r)), token)
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

type errorBody struct {
	Detail string `json:"detail"`
}

// WriteError writes err as a JSON body with the status from
// [authcore.StatusCode] and the text from [authcore.PublicMessage].
func WriteError(w http.ResponseWriter, err error) {
	status := authcore.StatusCode(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Detail: authcore.PublicMessage(err)})
}
