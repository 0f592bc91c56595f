// Package jwt mints and verifies the short-lived access tokens of the
// auth core. Tokens are self-contained: verification is a signature and
// expiry check with no store round-trip, which keeps the request hot path
// free of I/O.
//
// The refresh token is NOT a JWT; it is an opaque single-use secret owned
// by the session layer.
package jwt
