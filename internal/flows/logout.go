package flows

import (
	"context"
	"fmt"

	"github.com/MrTornister/Work-Flow-app/session"
)

type LogoutDeps struct {
	GetSession    func(context.Context, string) (*session.Record, error)
	DeleteSession func(context.Context, string) error

	MetricInc func(int)
	EmitAudit AuditFunc

	LogoutMetric     int
	LogoutEvent      string
	StoreUnavailable error
}

// RunLogout deletes sessionID. Logging out an unknown or already expired
// session succeeds.
func RunLogout(ctx context.Context, sessionID string, deps LogoutDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if sessionID == "" || deps.DeleteSession == nil {
		return nil
	}

	var userID, username string
	if deps.GetSession != nil {
		if rec, err := deps.GetSession(ctx, sessionID); err == nil {
			userID, username = rec.UserID, rec.Username
		}
	}

	if err := deps.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", deps.StoreUnavailable, err)
	}
	deps.MetricInc(deps.LogoutMetric)
	deps.EmitAudit(ctx, deps.LogoutEvent, true, userID, username, sessionID, nil, nil)
	return nil
}
