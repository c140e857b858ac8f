package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"viewsphere/internal/db"
	"viewsphere/internal/errs"
)

const userColumns = `id, username, email, full_name, avatar, cover_image, password_hash, refresh_token, created_at, updated_at`

// Postgres implements Store on a pgx pool.
type Postgres struct {
	pool db.Pool
}

func NewPostgres(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Create(ctx context.Context, u *User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, full_name, avatar, cover_image, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, u.ID, u.Username, u.Email, u.FullName, u.Avatar, u.CoverImage, u.PasswordHash, u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("insert user: %w", errs.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Postgres) GetByID(ctx context.Context, id string) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByUsernameOrEmail resolves an identity by either handle; username
// matching is case-insensitive.
func (s *Postgres) GetByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ($1 <> '' AND LOWER(username) = LOWER($1))
		   OR ($2 <> '' AND LOWER(email) = LOWER($2))
	`, username, email)
	return scanUser(row)
}

func (s *Postgres) UpdateProfile(ctx context.Context, id, fullName, email, username string) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET full_name = $2, email = $3, username = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+userColumns, id, fullName, email, username, time.Now().UTC())
	u, err := scanUser(row)
	if db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("update profile: %w", errs.ErrAlreadyExists)
	}
	return u, err
}

func (s *Postgres) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.updateColumn(ctx, id, "password_hash", hash)
}

func (s *Postgres) UpdateAvatar(ctx context.Context, id, url string) error {
	return s.updateColumn(ctx, id, "avatar", url)
}

func (s *Postgres) UpdateCoverImage(ctx context.Context, id, url string) error {
	return s.updateColumn(ctx, id, "cover_image", url)
}

func (s *Postgres) updateColumn(ctx context.Context, id, column, value string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET `+column+` = $2, updated_at = $3 WHERE id = $1`,
		id, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Postgres) ChannelProfile(ctx context.Context, username, viewerID string) (*ChannelProfile, error) {
	var p ChannelProfile
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.username, u.email, u.full_name, u.avatar, u.cover_image, u.created_at,
		       (SELECT COUNT(*) FROM subscriptions WHERE channel = u.id)    AS subscriber_count,
		       (SELECT COUNT(*) FROM subscriptions WHERE subscriber = u.id) AS subscribed_to_count,
		       ($2 <> '' AND EXISTS (
		           SELECT 1 FROM subscriptions WHERE channel = u.id AND subscriber = $2::uuid
		       )) AS is_subscribed
		FROM users u
		WHERE LOWER(u.username) = LOWER($1)
	`, username, viewerID).Scan(
		&p.ID, &p.Username, &p.Email, &p.FullName, &p.Avatar, &p.CoverImage, &p.CreatedAt,
		&p.SubscriberCount, &p.SubscribedToCount, &p.IsSubscribed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("channel profile: %w", errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("channel profile: %w", err)
	}
	return &p, nil
}

func (s *Postgres) SetRefreshToken(ctx context.Context, id, token string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET refresh_token = $2, updated_at = $3 WHERE id = $1`,
		id, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// RotateRefreshToken replaces the stored token only when it still equals the
// presented one. The compare and the overwrite are a single conditional
// UPDATE, so two concurrent refreshes with the same token cannot both win.
func (s *Postgres) RotateRefreshToken(ctx context.Context, id, presented, next string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET refresh_token = $3, updated_at = $4
		WHERE id = $1 AND refresh_token = $2 AND refresh_token <> ''
	`, id, presented, next, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrSessionMismatch
	}
	return nil
}

// LoginLockedUntil returns the lockout expiry for the identifier, or nil when
// no lockout row exists or the lock was never set.
func (s *Postgres) LoginLockedUntil(ctx context.Context, identifier string) (*time.Time, error) {
	var lockedUntil *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT locked_until FROM login_attempts WHERE identifier = $1`,
		identifier).Scan(&lockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query login attempts: %w", err)
	}
	return lockedUntil, nil
}

// RegisterFailedLogin bumps the failure counter for the identifier in a single
// upsert. Reaching maxAttempts sets locked_until to lockUntil and resets the
// counter; an already active lock is left untouched. Returns the lock expiry
// now in effect, nil when the identifier is not locked.
func (s *Postgres) RegisterFailedLogin(ctx context.Context, identifier string, maxAttempts int, lockUntil, now time.Time) (*time.Time, error) {
	var lockedUntil *time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO login_attempts (identifier, failed_attempts, locked_until, updated_at)
		VALUES ($1,
		        CASE WHEN $2 <= 1 THEN 0 ELSE 1 END,
		        CASE WHEN $2 <= 1 THEN $3::timestamptz END,
		        $4)
		ON CONFLICT (identifier) DO UPDATE SET
			failed_attempts = CASE
				WHEN login_attempts.locked_until > $4 THEN login_attempts.failed_attempts
				WHEN login_attempts.failed_attempts + 1 >= $2 THEN 0
				ELSE login_attempts.failed_attempts + 1
			END,
			locked_until = CASE
				WHEN login_attempts.locked_until > $4 THEN login_attempts.locked_until
				WHEN login_attempts.failed_attempts + 1 >= $2 THEN $3::timestamptz
			END,
			updated_at = $4
		RETURNING locked_until
	`, identifier, maxAttempts, lockUntil, now).Scan(&lockedUntil)
	if err != nil {
		return nil, fmt.Errorf("register failed login: %w", err)
	}
	return lockedUntil, nil
}

// ResetLoginAttempts drops the failure row after a successful login.
func (s *Postgres) ResetLoginAttempts(ctx context.Context, identifier string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM login_attempts WHERE identifier = $1`, identifier)
	if err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

func (s *Postgres) ClearRefreshToken(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET refresh_token = '', updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Avatar, &u.CoverImage,
		&u.PasswordHash, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("query user: %w", errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
