// Package authcore is the authentication and authorization core of the
// Work-Flow application: password hashing, bearer tokens, role permissions,
// brute-force protection and session tracking behind one [Engine].
//
// Engine methods are safe to call from multiple goroutines once the engine
// has been built through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the [CredentialStore] adapter interface and the error taxonomy. Flow
// orchestration, the sliding-window stores, rate limiting and audit dispatch
// live under internal/ and are never exported. User records belong to the
// application; the engine reads and mutates them only through
// [CredentialStore].
//
// # What this package must NOT do
//
//   - Reveal which of username or password was wrong, or whether an email
//     address has an account.
//   - Store or log a password, a bearer token or a reset token in plain text.
//   - Retry a failed [CredentialStore] call.
//   - Import any sub-package that re-imports authcore.
//
// # Backends
//
// Without [Builder.WithRedis] every tracker keeps its state in process
// memory, which is correct for a single instance only. With Redis the
// attempt tracker, rate limiter and session tracker are shared by every
// process using the same key prefixes.
package authcore
