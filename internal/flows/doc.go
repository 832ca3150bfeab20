// Package flows contains the orchestration behind every Engine operation.
//
// Each Run function takes a typed dependency struct of plain functions and
// sentinel errors, so the ordering of rate gate, lockout, credential lookup,
// password verification, token issuance and session bookkeeping can be tested
// without a store, a Redis or a clock.
//
// # Architecture boundaries
//
// Flows sequence calls to the credential store, hasher, token manager,
// trackers, audit and metrics. They do NOT own any of them; ownership stays
// with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through the dependency functions.
//   - Log or audit a password, a bearer token or a reset token.
package flows
