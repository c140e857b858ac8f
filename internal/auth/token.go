package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"viewsphere/internal/errs"
)

// TokenKind distinguishes the two token flavors. A token signed as one kind
// is rejected when verified as the other, even before the signature check
// fails: the kinds use independent secrets and carry a typ claim.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// TokenConfig carries the signing secrets and lifetimes for both token
// kinds. Built once at bootstrap and treated as immutable.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type tokenClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
}

// TokenIssuer mints and verifies HS256 token pairs.
type TokenIssuer struct {
	config TokenConfig
	now    func() time.Time
}

func NewTokenIssuer(config TokenConfig) *TokenIssuer {
	return &TokenIssuer{config: config, now: time.Now}
}

func (i *TokenIssuer) IssueAccess(userID string) (string, error) {
	return i.issue(userID, KindAccess)
}

func (i *TokenIssuer) IssueRefresh(userID string) (string, error) {
	return i.issue(userID, KindRefresh)
}

func (i *TokenIssuer) AccessTTL() time.Duration  { return i.config.AccessTTL }
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.config.RefreshTTL }

func (i *TokenIssuer) issue(userID string, kind TokenKind) (string, error) {
	secret, ttl := i.kindParams(kind)
	now := i.now().UTC()

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: string(kind),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, nil
}

// Verify checks signature, expiry, and kind, and returns the subject user id.
// Expired and otherwise-invalid tokens both map to ErrUnauthorized; the
// expired case stays distinguishable via errors.Is(err, jwt.ErrTokenExpired).
func (i *TokenIssuer) Verify(tokenString string, kind TokenKind) (string, error) {
	secret, _ := i.kindParams(kind)

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%s token expired: %w: %w", kind, err, errs.ErrUnauthorized)
		}
		return "", fmt.Errorf("parse %s token: %w", kind, errs.ErrUnauthorized)
	}
	if !token.Valid || claims.TokenType != string(kind) || claims.Subject == "" {
		return "", fmt.Errorf("%s token rejected: %w", kind, errs.ErrUnauthorized)
	}

	return claims.Subject, nil
}

func (i *TokenIssuer) kindParams(kind TokenKind) ([]byte, time.Duration) {
	if kind == KindRefresh {
		return i.config.RefreshSecret, i.config.RefreshTTL
	}
	return i.config.AccessSecret, i.config.AccessTTL
}
