package auth

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token fails signature or claim validation
var ErrInvalidToken = errors.New("invalid token")

// Claims is the signed claim set carried by both access and refresh tokens
type Claims struct {
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// SignerConfig holds token signing configuration. Secrets are injected at
// construction and never read from ambient state.
type SignerConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenSigner mints and verifies the gateway's JWT pairs. Access and refresh
// tokens are signed with distinct secrets.
type TokenSigner struct {
	cfg SignerConfig
}

// NewTokenSigner creates a new token signer
func NewTokenSigner(cfg SignerConfig) (*TokenSigner, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, fmt.Errorf("access secret is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, fmt.Errorf("refresh secret is required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenSigner{cfg: cfg}, nil
}

// SignPair mints an access/refresh token pair for the user
func (s *TokenSigner) SignPair(user *User, now time.Time) (*TokenPair, error) {
	access, err := s.sign(user, now, s.cfg.AccessTTL, s.cfg.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := s.sign(user, now, s.cfg.RefreshTTL, s.cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenSigner) sign(user *User, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	claims := Claims{
		Email:    user.Email,
		Role:     user.Role,
		TenantID: user.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyAccess validates an access token and returns its claims
func (s *TokenSigner) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, s.cfg.AccessSecret)
}

// VerifyRefresh validates a refresh token and returns its claims
func (s *TokenSigner) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, s.cfg.RefreshSecret)
}

func (s *TokenSigner) verify(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
