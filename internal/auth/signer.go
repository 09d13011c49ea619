package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vidhost/backend/internal/models"
)

// ErrInvalidToken indicates a token failed signature, algorithm, or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Config carries the secrets and lifetimes used to sign tokens.
type Config struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// AccessClaims identifies the user for a single request.
type AccessClaims struct {
	UserID   string `json:"id"`
	UserName string `json:"userName"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// RefreshClaims identifies the user when minting a new token pair.
type RefreshClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Signer signs and verifies access and refresh tokens with independent secrets.
type Signer struct {
	cfg     Config
	nowFunc func() time.Time
}

// NewSigner constructs a Signer from cfg.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("auth: access and refresh secrets must be provided")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	return &Signer{cfg: cfg, nowFunc: time.Now}, nil
}

// IssueAccessToken signs the user's public identity with the access secret.
func (s *Signer) IssueAccessToken(user models.User) (string, time.Time, error) {
	now := s.nowFunc()
	expiresAt := now.Add(s.cfg.AccessTTL)
	claims := AccessClaims{
		UserID:           user.ID,
		UserName:         user.UserName,
		FullName:         user.FullName,
		Email:            user.Email,
		RegisteredClaims: s.registered(user.ID, now, expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.AccessSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken signs the user's identifier with the refresh secret.
func (s *Signer) IssueRefreshToken(user models.User) (string, time.Time, error) {
	now := s.nowFunc()
	expiresAt := now.Add(s.cfg.RefreshTTL)
	claims := RefreshClaims{
		UserID:           user.ID,
		RegisteredClaims: s.registered(user.ID, now, expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyAccessToken parses an access token and returns its claims.
func (s *Signer) VerifyAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(token, claims, s.cfg.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefreshToken parses a refresh token and returns its claims.
func (s *Signer) VerifyRefreshToken(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(token, claims, s.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// registered fills the standard claims. The random ID keeps two tokens minted within
// the same second distinct, which rotation depends on.
func (s *Signer) registered(subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (s *Signer) parse(token string, claims jwt.Claims, secret string) error {
	if token == "" {
		return ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(s.nowFunc), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
