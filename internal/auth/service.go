// Package auth implements the session/credential lifecycle: password
// verification, token pair issuance and rotation, and the request gate.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"viewsphere/internal/errs"
	"viewsphere/internal/user"
)

const (
	defaultMaxLoginAttempts = 5
	defaultLoginLockWindow  = 15 * time.Minute
)

// IdentityStore is the slice of the user store the session flows need.
type IdentityStore interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*user.User, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	RotateRefreshToken(ctx context.Context, id, presented, next string) error
	ClearRefreshToken(ctx context.Context, id string) error

	LoginLockedUntil(ctx context.Context, identifier string) (*time.Time, error)
	RegisterFailedLogin(ctx context.Context, identifier string, maxAttempts int, lockUntil, now time.Time) (*time.Time, error)
	ResetLoginAttempts(ctx context.Context, identifier string) error
}

// ErrLoginLocked signals that the identifier accumulated too many failed
// attempts and logins are refused until Until.
type ErrLoginLocked struct {
	Until time.Time
}

func (e ErrLoginLocked) Error() string {
	return "login temporarily locked"
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Service struct {
	store       IdentityStore
	issuer      *TokenIssuer
	hasher      *PasswordHasher
	maxAttempts int
	lockWindow  time.Duration
}

func NewService(store IdentityStore, issuer *TokenIssuer, hasher *PasswordHasher) *Service {
	return &Service{
		store:       store,
		issuer:      issuer,
		hasher:      hasher,
		maxAttempts: defaultMaxLoginAttempts,
		lockWindow:  defaultLoginLockWindow,
	}
}

// WithLockoutPolicy overrides the failed-login lockout thresholds.
func (s *Service) WithLockoutPolicy(maxAttempts int, lockWindow time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockWindow > 0 {
		s.lockWindow = lockWindow
	}
}

func (s *Service) Issuer() *TokenIssuer { return s.issuer }

// Login verifies the credential and starts a fresh session. Persisting the
// new refresh token unconditionally replaces any prior one, so a login here
// invalidates a session issued elsewhere. Failed attempts are counted in the
// store per identifier: crossing the threshold locks the identifier for the
// lock window, and the counter survives restarts.
func (s *Service) Login(ctx context.Context, username, email, password string) (TokenPair, *user.User, error) {
	if username == "" && email == "" {
		return TokenPair{}, nil, fmt.Errorf("username or email is required: %w", errs.ErrBadRequest)
	}

	identifier := strings.ToLower(username)
	if identifier == "" {
		identifier = strings.ToLower(email)
	}
	now := time.Now().UTC()

	lockedUntil, err := s.store.LoginLockedUntil(ctx, identifier)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if lockedUntil != nil && now.Before(*lockedUntil) {
		return TokenPair{}, nil, ErrLoginLocked{Until: *lockedUntil}
	}

	u, err := s.store.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			if lockErr := s.registerFailedLogin(ctx, identifier, now); lockErr != nil {
				return TokenPair{}, nil, lockErr
			}
		}
		return TokenPair{}, nil, err
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		if lockErr := s.registerFailedLogin(ctx, identifier, now); lockErr != nil {
			return TokenPair{}, nil, lockErr
		}
		return TokenPair{}, nil, fmt.Errorf("wrong password: %w", errs.ErrUnauthorized)
	}

	if err := s.store.ResetLoginAttempts(ctx, identifier); err != nil {
		return TokenPair{}, nil, err
	}

	pair, err := s.issuePair(u.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if err := s.store.SetRefreshToken(ctx, u.ID, pair.RefreshToken); err != nil {
		return TokenPair{}, nil, err
	}

	return pair, u, nil
}

// registerFailedLogin records the failure and returns ErrLoginLocked when this
// attempt tripped (or ran into) an active lock; nil otherwise.
func (s *Service) registerFailedLogin(ctx context.Context, identifier string, now time.Time) error {
	lockedUntil, err := s.store.RegisterFailedLogin(ctx, identifier, s.maxAttempts, now.Add(s.lockWindow), now)
	if err != nil {
		return err
	}
	if lockedUntil != nil && now.Before(*lockedUntil) {
		return ErrLoginLocked{Until: *lockedUntil}
	}
	return nil
}

// Refresh rotates the session: the presented refresh token must verify as
// refresh-kind AND equal the stored one. The equality check and the
// overwrite happen in one conditional store update, so the presented token
// is unusable the instant this succeeds. No tokens are delivered when
// persistence fails.
func (s *Service) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	if presented == "" {
		return TokenPair{}, fmt.Errorf("missing refresh token: %w", errs.ErrUnauthorized)
	}

	userID, err := s.issuer.Verify(presented, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return TokenPair{}, fmt.Errorf("refresh subject vanished: %w", errs.ErrUnauthorized)
		}
		return TokenPair{}, err
	}

	pair, err := s.issuePair(u.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RotateRefreshToken(ctx, u.ID, presented, pair.RefreshToken); err != nil {
		return TokenPair{}, err
	}

	return pair, nil
}

// Logout clears the stored refresh token. A vanished identity surfaces as
// errs.ErrNotFound; the transport clears cookies regardless.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.store.ClearRefreshToken(ctx, userID)
}

func (s *Service) issuePair(userID string) (TokenPair, error) {
	access, err := s.issuer.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.issuer.IssueRefresh(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
