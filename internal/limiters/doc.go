// Package limiters provides the domain counters built on internal/window.
//
// # Limiters
//
//   - [AttemptTracker]: failed logins per identity; locked at MaxAttempts
//     failures inside the trailing window.
//   - [PasswordResetLimiter]: reset requests per email and per client, and
//     confirmations per client.
//
// # Architecture boundaries
//
// Each limiter owns its key prefix inside the shared window store. Thresholds
// come from the config structs passed at construction.
//
// # What this package must NOT do
//
//   - Import the root package or any sibling internal package except internal/window.
//   - Decide consequences beyond counting; flows map results to errors.
package limiters
