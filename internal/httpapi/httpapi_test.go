package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	authcore "github.com/MrTornister/Work-Flow-app"
	"github.com/MrTornister/Work-Flow-app/password"
	"github.com/MrTornister/Work-Flow-app/permission"
	"github.com/MrTornister/Work-Flow-app/stores/memstore"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Hasher = password.Config{Algorithm: password.AlgorithmBcrypt, BcryptCost: 4}
	cfg.Audit.Enabled = false
	cfg.PasswordReset.ReturnToken = true

	store := memstore.New()
	engine, err := authcore.New().WithConfig(cfg).WithStore(store).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	for _, u := range []struct {
		name string
		role permission.Role
	}{{"alice", permission.RoleUser}, {"boss", permission.RoleAdmin}} {
		hash, err := engine.HashPassword("Secret123")
		require.NoError(t, err)
		_, err = store.Add(authcore.Identity{Username: u.name, Email: u.name + "@example.com", PasswordHash: hash, Role: u.role, Active: true})
		require.NoError(t, err)
	}

	srv := httptest.NewServer(New(engine, Options{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) }),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func login(t *testing.T, srv *httptest.Server, user, pw string) string {
	t.Helper()
	resp, body := do(t, srv, http.MethodPost, "/login", "", loginRequest{Username: user, Password: pw})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.Equal(t, "bearer", body["token_type"])
	return body["access_token"].(string)
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	resp, body := do(t, srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestProtectedRoutes(t *testing.T) {
	srv := newServer(t)

	resp, _ := do(t, srv, http.MethodGet, "/protected", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	alice := login(t, srv, "alice", "Secret123")
	resp, body := do(t, srv, http.MethodGet, "/orders", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "alice", body["owner"])

	resp, _ = do(t, srv, http.MethodGet, "/users", alice, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	boss := login(t, srv, "boss", "Secret123")
	resp, _ = do(t, srv, http.MethodGet, "/users", boss, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/logout", alice, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodGet, "/orders", alice, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	srv := newServer(t)
	resp, body := do(t, srv, http.MethodPost, "/login", "", loginRequest{Username: "alice", Password: "Wrong1234"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Invalid username or password", body["detail"])

	resp, _ = do(t, srv, http.MethodPost, "/login", "", map[string]string{"user": "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	srv := newServer(t)

	resp, body := do(t, srv, http.MethodPost, "/password-reset/request", "", resetRequest{Email: "nobody@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, resetAccepted, body["message"])
	require.NotContains(t, body, "reset_token")

	_, body = do(t, srv, http.MethodPost, "/password-reset/request", "", resetRequest{Email: "alice@example.com"})
	token, ok := body["reset_token"].(string)
	require.True(t, ok)

	resp, _ = do(t, srv, http.MethodPost, "/password-reset/confirm", "", resetConfirm{Token: token, NewPassword: "Weak1", ConfirmPassword: "Weak1"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/password-reset/confirm", "", resetConfirm{Token: token, NewPassword: "Strong123", ConfirmPassword: "Strong123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	login(t, srv, "alice", "Strong123")
}

func TestChangePasswordOverHTTP(t *testing.T) {
	srv := newServer(t)
	alice := login(t, srv, "alice", "Secret123")

	resp, _ := do(t, srv, http.MethodPost, "/password/change", alice, changePassword{
		CurrentPassword: "Secret123", NewPassword: "Fresh1234", ConfirmPassword: "Fresh1234",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login(t, srv, "alice", "Fresh1234")
}

func TestMetricsMounted(t *testing.T) {
	srv := newServer(t)
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
