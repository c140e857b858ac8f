// Package user owns the identity record: persistence, profile operations,
// and the stored refresh token that anchors the session lifecycle.
package user

import (
	"context"
	"time"
)

// Store is the persistence contract for identity records. Any backend
// satisfying it is substitutable; Postgres implements it here.
type Store interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)
	UpdateProfile(ctx context.Context, id, fullName, email, username string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateAvatar(ctx context.Context, id, url string) error
	UpdateCoverImage(ctx context.Context, id, url string) error
	ChannelProfile(ctx context.Context, username, viewerID string) (*ChannelProfile, error)

	// Session field operations. SetRefreshToken overwrites unconditionally
	// (login); RotateRefreshToken is an atomic compare-and-swap that fails
	// with errs.ErrSessionMismatch when the stored token is not the presented
	// one; ClearRefreshToken empties the field (logout).
	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, presented, next string) error
	ClearRefreshToken(ctx context.Context, id string) error

	// Login lockout bookkeeping, keyed by the presented identifier so the
	// counter survives restarts and is shared across instances.
	LoginLockedUntil(ctx context.Context, identifier string) (*time.Time, error)
	RegisterFailedLogin(ctx context.Context, identifier string, maxAttempts int, lockUntil, now time.Time) (*time.Time, error)
	ResetLoginAttempts(ctx context.Context, identifier string) error
}
