// Package middleware adapts an [authcore.Engine] to net/http.
//
// # Guards
//
//   - [Guard] verifies the bearer token and checks one permission.
//   - [RequireSession] additionally requires a live session and refreshes
//     its last activity.
//
// Both store the [authcore.AuthResult] in the request context, where
// [AuthResultFromContext] finds it.
//
// # Request plumbing
//
//   - [RealIP] resolves the client address, believing forwarding headers
//     only from peers listed in a [ProxyTrust].
//   - [RateLimit] charges the per-client window and reports budget headers.
//   - [Session] refreshes the session named by the session_id cookie or the
//     X-Session-ID header.
//   - [CSRF] enforces a double-submit token on unsafe methods.
//   - [SecurityHeaders], [RequestID] and [AccessLog] are stateless.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls and engine errors
// into status codes via [authcore.StatusCode]. Authentication decisions stay
// in the Engine.
//
// # What this package must NOT do
//
//   - Parse or sign tokens directly.
//   - Talk to Redis or the credential store.
//   - Leak internal error text to clients; responses use
//     [authcore.PublicMessage].
package middleware
