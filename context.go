package authcore

import "context"

type clientIPContextKey struct{}
type rateCheckedContextKey struct{}

// WithClientIP attaches the caller's address to ctx. The engine records it
// on security events and uses it as the client identity when none is given.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithRateChecked marks ctx as already charged against the per-client
// request window, so Login does not charge it twice. The rate limiting
// middleware sets it.
func WithRateChecked(ctx context.Context) context.Context {
	return context.WithValue(ctx, rateCheckedContextKey{}, true)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func rateCheckedFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	ok, _ := ctx.Value(rateCheckedContextKey{}).(bool)
	return ok
}
