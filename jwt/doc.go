// Package jwt issues and verifies stateless HS256 bearer tokens.
//
// A token is valid iff its signature verifies under the Manager's current key
// and the current time is before its exp claim. There is no revocation list:
// a short AccessTTL is the only bound on a leaked token, and [Manager.Rotate]
// invalidates every outstanding token at once.
package jwt
