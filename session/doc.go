// Package session tracks server-observed activity for logged-in users.
//
// A session is created once at login with a snapshot of the user's id,
// username and role. Every authenticated request calls [Tracker.Touch],
// which either refreshes LastActivity or, when the session has been idle
// longer than the timeout, deletes it and returns [ErrExpired]. This happens
// regardless of the bearer token's own expiry.
//
// The role snapshot is never re-read from storage: a role change takes
// effect only after the user logs in again.
//
// Expiry is checked lazily on access. [MemoryStore] never reaps abandoned
// records; [RedisStore] relies on key TTLs.
//
// # What this package must NOT do
//
//   - Import the root package, jwt, or permission.
//   - Make authorization decisions.
package session
