package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"viewsphere/internal/errs"
)

// PasswordHasher is satisfied by auth.PasswordHasher.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hashed string) bool
}

type Service struct {
	store  Store
	hasher PasswordHasher
}

func NewService(store Store, hasher PasswordHasher) *Service {
	return &Service{store: store, hasher: hasher}
}

type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	FullName   string
	Avatar     string
	CoverImage string
}

// Register creates a new identity. Uniqueness violations on username or
// email surface as errs.ErrAlreadyExists.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	u := &User{
		ID:           id.String(),
		Username:     strings.ToLower(strings.TrimSpace(input.Username)),
		Email:        strings.TrimSpace(input.Email),
		FullName:     strings.TrimSpace(input.FullName),
		Avatar:       input.Avatar,
		CoverImage:   input.CoverImage,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

// ChangePassword verifies the old password before re-hashing the new one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(oldPassword, u.PasswordHash) {
		return fmt.Errorf("wrong password: %w", errs.ErrUnauthorized)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	return s.store.UpdatePasswordHash(ctx, userID, hash)
}

func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	return s.store.GetByID(ctx, userID)
}

func (s *Service) UpdateAccount(ctx context.Context, userID, fullName, email, username string) (*User, error) {
	return s.store.UpdateProfile(ctx, userID, strings.TrimSpace(fullName),
		strings.TrimSpace(email), strings.ToLower(strings.TrimSpace(username)))
}

func (s *Service) Channel(ctx context.Context, username, viewerID string) (*ChannelProfile, error) {
	return s.store.ChannelProfile(ctx, username, viewerID)
}
