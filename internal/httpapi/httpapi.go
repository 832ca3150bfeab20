// Package httpapi is the demo HTTP surface served by authctl: login,
// logout, password reset, two guarded resources and the operational
// endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	authcore "github.com/MrTornister/Work-Flow-app"
	"github.com/MrTornister/Work-Flow-app/internal/ids"
	"github.com/MrTornister/Work-Flow-app/middleware"
	"github.com/MrTornister/Work-Flow-app/permission"
	"go.uber.org/zap"
)

type Options struct {
	Logger *zap.Logger
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// CSRF enables the double-submit check on unsafe methods and the
	// GET /csrf-token endpoint.
	CSRF bool
	// SecureCookies marks cookies Secure. Leave false only for plain-HTTP
	// local development.
	SecureCookies bool
	NodeID        int64
	// MaxBodyBytes bounds JSON request bodies. Zero means 64 KiB.
	MaxBodyBytes int64
	// TrustedProxies may set the client address through forwarding
	// headers. Nil keys every request by its socket peer.
	TrustedProxies *middleware.ProxyTrust
}

type api struct {
	engine *authcore.Engine
	opts   Options
	log    *zap.Logger
}

// New returns the full handler chain around engine.
func New(engine *authcore.Engine, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 10
	}
	a := &api{engine: engine, opts: opts, log: opts.Logger.Named("httpapi")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.health)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	if opts.CSRF {
		mux.HandleFunc("GET /csrf-token", a.csrfToken)
	}

	mux.HandleFunc("POST /login", a.login)
	mux.HandleFunc("POST /password-reset/request", a.resetRequest)
	mux.HandleFunc("POST /password-reset/confirm", a.resetConfirm)

	mux.Handle("POST /logout", middleware.RequireSession(engine, "")(http.HandlerFunc(a.logout)))
	mux.Handle("POST /password/change", middleware.RequireSession(engine, "")(http.HandlerFunc(a.changePassword)))
	mux.Handle("GET /protected", middleware.Guard(engine, "")(http.HandlerFunc(a.protected)))
	mux.Handle("GET /orders", middleware.RequireSession(engine, permission.ViewOrders)(http.HandlerFunc(a.orders)))
	mux.Handle("GET /users", middleware.RequireSession(engine, permission.ManageUsers)(http.HandlerFunc(a.users)))

	var h http.Handler = mux
	if opts.CSRF {
		h = middleware.CSRF(h)
	}
	h = middleware.Session(engine)(h)
	h = middleware.RateLimit(engine)(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.AccessLog(opts.Logger.Named("access"))(h)
	h = middleware.RealIP(opts.TrustedProxies)(h)
	h = middleware.RequestID(ids.NewRequestIDs(opts.NodeID))(h)
	return h
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (a *api) csrfToken(w http.ResponseWriter, _ *http.Request) {
	token, err := middleware.NewCSRFToken()
	if err != nil {
		a.log.Error("csrf token generation failed", zap.Error(err))
		middleware.WriteError(w, err)
		return
	}
	middleware.SetCSRFCookie(w, token, a.opts.SecureCookies)
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decode(w, r, &req) {
		return
	}

	res, err := a.engine.Login(r.Context(), req.Username, req.Password, "")
	if err != nil {
		a.fail(w, err)
		return
	}

	middleware.SetSessionCookie(w, res.SessionID, a.opts.SecureCookies)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresAt:   res.ExpiresAt,
		SessionID:   res.SessionID,
		Role:        string(res.Role),
	})
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())
	if err := a.engine.Logout(r.Context(), res.SessionID); err != nil {
		a.fail(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: middleware.SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirm struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

const resetAccepted = "If the address is registered, a reset link has been sent"

func (a *api) resetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !a.decode(w, r, &req) {
		return
	}

	issued, err := a.engine.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		a.fail(w, err)
		return
	}

	body := map[string]any{"message": resetAccepted}
	if issued != nil {
		body["reset_token"] = issued.Token
		body["expires_at"] = issued.ExpiresAt
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *api) resetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirm
	if !a.decode(w, r, &req) {
		return
	}
	if req.ConfirmPassword == "" {
		req.ConfirmPassword = req.NewPassword
	}

	if err := a.engine.CompletePasswordResetConfirm(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

type changePassword struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (a *api) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePassword
	if !a.decode(w, r, &req) {
		return
	}
	res, _ := middleware.AuthResultFromContext(r.Context())

	err := a.engine.ChangePassword(r.Context(), res.Username, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed, please log in again"})
}

func (a *api) protected(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "authenticated",
		"username": res.Username,
		"role":     string(res.Role),
	})
}

type order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (a *api) orders(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":  res.Username,
		"orders": []order{{ID: "ord-1001", Status: "pending"}, {ID: "ord-1002", Status: "shipped"}},
	})
}

func (a *api) users(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"requested_by": res.Username,
		"roles":        permission.Roles(),
	})
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, a.opts.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Malformed request body"})
		return false
	}
	return true
}

// fail logs internal faults and writes the public form of err.
func (a *api) fail(w http.ResponseWriter, err error) {
	if authcore.StatusCode(err) >= http.StatusInternalServerError {
		a.log.Error("request failed", zap.Error(err))
	} else if errors.Is(err, authcore.ErrAccountLocked) {
		a.log.Warn("request rejected", zap.Error(err))
	}
	middleware.WriteError(w, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
