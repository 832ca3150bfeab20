// Package rate implements the per-client admission gate applied ahead of every
// authenticated or anonymous request.
//
// # Window semantics
//
// Sliding window over [window.Store]: a request is admitted, and its timestamp
// recorded, only when fewer than RequestsPerMinute timestamps of the same client
// fall inside the trailing Window. Rejected requests are not recorded, so a
// client that keeps hammering is released exactly one window after its oldest
// admitted request. Key prefixes:
//   - arl:: per-client request window
//   - arll:: per-client login window
//
// An optional process-wide token bucket (golang.org/x/time/rate) sheds load
// before any per-client bookkeeping happens.
//
// # What this package must NOT do
//
//   - Know about identities; per-identity lockout lives in internal/limiters.
//   - Be imported outside this module.
package rate
