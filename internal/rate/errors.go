package rate

import "errors"

var (
	// ErrRateLimited is returned when a client has used its per-window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrOverloaded is returned when the process-wide token bucket is empty.
	ErrOverloaded = errors.New("rate limiter overloaded")
	// ErrUnavailable wraps failures of the window backend.
	ErrUnavailable = errors.New("rate limiter unavailable")
)
