package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func TestHashAndVerify(t *testing.T) {
	digest, err := run(t, "hash", "--algorithm", "bcrypt", "Secret123")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(digest, "$2"))

	out, err := run(t, "verify", digest, "Secret123")
	require.NoError(t, err)
	require.Equal(t, "match", out)

	_, err = run(t, "verify", digest, "Secret124")
	require.ErrorIs(t, err, errNoMatch)
}

func TestHashEnforcesPolicy(t *testing.T) {
	_, err := run(t, "hash", "weak")
	require.Error(t, err)

	_, err = run(t, "hash", "--algorithm", "bcrypt", "--skip-policy", "weak")
	require.NoError(t, err)
}

func TestHashPromptsWithoutArgument(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) { return []byte("Secret123"), nil }

	digest, err := run(t, "hash", "--algorithm", "bcrypt")
	require.NoError(t, err)

	out, err := run(t, "verify", digest)
	require.NoError(t, err)
	require.Equal(t, "match", out)

	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }
	_, err = run(t, "hash")
	require.Error(t, err)
}

func TestTokenIssueAndVerify(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	token, err := run(t, "token", "issue", "--role", "ADMIN", "--subject", "ops")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	out, err := run(t, "token", "verify", token)
	require.NoError(t, err)
	require.Contains(t, out, `"subject": "ops"`)
	require.Contains(t, out, `"role": "admin"`)
	require.Contains(t, out, "manage_users")

	_, err = run(t, "token", "verify", token+"x")
	require.Error(t, err)

	_, err = run(t, "token", "issue", "--role", "root")
	require.Error(t, err)
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := run(t, "token", "issue")
	require.Error(t, err)
}

func TestLoadtestSmallRun(t *testing.T) {
	out, err := run(t, "loadtest", "--users", "5", "--ops", "40", "--concurrency", "4", "--clients", "20")
	require.NoError(t, err)
	require.Contains(t, out, "using miniredis")
	require.Contains(t, out, "login+authorize: ops=40 failures=0")
	require.Contains(t, out, "rate_limited=")
}
