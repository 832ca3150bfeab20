package authcore

import (
	"context"
	"time"

	"github.com/MrTornister/Work-Flow-app/jwt"
	"github.com/MrTornister/Work-Flow-app/permission"
	"github.com/MrTornister/Work-Flow-app/session"
)

// Identity is a user record as the credential store holds it. The engine
// never writes it directly; every mutation goes through [CredentialStore].
type Identity struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         permission.Role
	Active       bool
	// ResetToken is the hex SHA-256 digest of the outstanding reset token,
	// never the token itself.
	ResetToken       string
	ResetTokenExpiry time.Time
}

// CredentialStore is the persistence boundary for user records.
//
// Finders return (nil, nil) when no record matches; returning
// [ErrUserNotFound] is accepted too. Any other error is reported to callers
// as [ErrStoreUnavailable]. Implementations must be safe for concurrent use.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByResetToken(ctx context.Context, digest string) (*Identity, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetResetToken(ctx context.Context, id, digest string, expiry time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	// ClaimResetToken clears the reset token of id only while it still
	// equals digest and reports whether this call cleared it. Of several
	// concurrent claims for one digest at most one sees true.
	ClaimResetToken(ctx context.Context, id, digest string) (bool, error)
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	SessionID   string
	UserID      string
	Username    string
	Role        permission.Role
}

// ResetToken is a freshly issued password reset token.
type ResetToken struct {
	Token     string
	ExpiresAt time.Time
}

// ResetDelivery hands a reset token to an out-of-band channel such as email.
type ResetDelivery func(ctx context.Context, email string, token ResetToken) error

// AuthResult is returned by [Engine.Authorize] and [Engine.AuthorizeSession].
// Session is nil for token-only authorization.
type AuthResult struct {
	UserID    string
	Username  string
	Role      permission.Role
	SessionID string
	ExpiresAt time.Time
	Claims    *jwt.Claims
	Session   *session.Record
}
