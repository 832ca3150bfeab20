// Package internal holds helpers private to this module, currently random
// token generation and reset-token digests.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators behind every Engine operation
//   - ids: ULID event ids and snowflake request ids
//   - limiters: login lockout and password-reset throttles
//   - logging: zap logger construction
//   - rate: per-client request gate
//   - window: sliding-window timestamp stores (memory, Redis)
//
// # What this package must NOT do
//
//   - Export types that appear in the public API.
//   - Be imported by any package outside this module.
package internal
