package authcore

import (
	"context"

	"github.com/MrTornister/Work-Flow-app/internal/flows"
)

// RequestPasswordReset mints a reset token for the account owning email and
// hands it to Config.PasswordReset.Deliver. The client address comes from
// [WithClientIP].
//
// Unknown and inactive addresses return (nil, nil), indistinguishable from
// a real request. The token itself is returned only when
// Config.PasswordReset.ReturnToken is set.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (*ResetToken, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	issued, err := flows.RunRequestPasswordReset(ctx, email, clientIPFromContext(ctx), e.flows.PasswordReset)
	if err != nil || issued == nil {
		return nil, err
	}
	if !e.config.PasswordReset.ReturnToken {
		return nil, nil
	}
	return &ResetToken{Token: issued.Token, ExpiresAt: issued.ExpiresAt}, nil
}

// CompletePasswordReset sets newPassword through a reset token. The token is
// single-use; a password rejected by the policy leaves it usable. Success
// clears the lockout history and ends every session of the account.
func (e *Engine) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	return e.CompletePasswordResetConfirm(ctx, token, newPassword, newPassword)
}

// CompletePasswordResetConfirm is [Engine.CompletePasswordReset] with a
// confirmation field. Differing values return [ErrPasswordMismatch].
func (e *Engine) CompletePasswordResetConfirm(ctx context.Context, token, newPassword, confirm string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunCompletePasswordReset(ctx, token, newPassword, confirm, clientIPFromContext(ctx), e.flows.PasswordReset)
}

// ChangePassword replaces the password of username after re-checking the
// current one. A wrong current password counts toward lockout. Success
// clears the lockout history and ends every session of the account.
func (e *Engine) ChangePassword(ctx context.Context, username, current, next, confirm string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunChangePassword(ctx, username, current, next, confirm, e.flows.ChangePassword)
}
