// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

var (
	// ErrBadRequest indicates missing or malformed input the caller can fix.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates a missing, invalid, expired, or reused
	// credential; recoverable by re-authenticating.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (username or email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrSessionMismatch indicates the presented refresh token does not match
	// the stored one: either a rotated-out token was replayed or two refreshes
	// raced. Reported to callers as unauthorized.
	ErrSessionMismatch = errors.New("session mismatch")
)
