package auth

import (
	"context"
	"errors"

	"github.com/vidhost/backend/internal/apperr"
	"github.com/vidhost/backend/internal/models"
	"github.com/vidhost/backend/internal/repositories"
)

// UserStore is the slice of the credential store the manager needs.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SetRefreshToken(ctx context.Context, id, refreshToken string) error
	UnsetRefreshToken(ctx context.Context, id string) error
}

// Manager issues token pairs and keeps the user's single refresh token slot in step with them.
type Manager struct {
	signer *Signer
	users  UserStore
}

// NewManager constructs a Manager.
func NewManager(signer *Signer, users UserStore) *Manager {
	if signer == nil {
		panic("auth: signer must not be nil")
	}
	if users == nil {
		panic("auth: user store must not be nil")
	}
	return &Manager{signer: signer, users: users}
}

// IssuePair loads the user, signs both tokens, and overwrites the stored refresh token.
// Any previously issued refresh token stops working once this returns.
func (m *Manager) IssuePair(ctx context.Context, userID string) (models.SessionTokens, error) {
	if userID == "" {
		return models.SessionTokens{}, apperr.TokenIssuance("user id must be provided", nil)
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return models.SessionTokens{}, apperr.TokenIssuance("load user for token issuance", err)
	}

	accessToken, accessExpiry, err := m.signer.IssueAccessToken(user)
	if err != nil {
		return models.SessionTokens{}, apperr.TokenIssuance("issue access token", err)
	}
	refreshToken, refreshExpiry, err := m.signer.IssueRefreshToken(user)
	if err != nil {
		return models.SessionTokens{}, apperr.TokenIssuance("issue refresh token", err)
	}

	if err := m.users.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return models.SessionTokens{}, apperr.TokenIssuance("persist refresh token", err)
	}

	return models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Refresh exchanges the user's current refresh token for a new pair. Tokens that verify
// but no longer match the stored value are rejected.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, apperr.Authentication("unauthorized request", nil)
	}

	claims, err := m.signer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return models.SessionTokens{}, apperr.Authentication("invalid refresh token", err)
	}

	user, err := m.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return models.SessionTokens{}, tokenOwnerError("invalid refresh token", err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return models.SessionTokens{}, apperr.Authentication("refresh token is expired or used", nil)
	}

	return m.IssuePair(ctx, user.ID)
}

// Revoke clears the user's refresh token slot.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if err := m.users.UnsetRefreshToken(ctx, userID); err != nil {
		return apperr.Persistence("clear refresh token", err)
	}
	return nil
}

// Authenticate verifies an access token and loads the user it names.
func (m *Manager) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	if accessToken == "" {
		return models.User{}, apperr.Authentication("unauthorized request", nil)
	}
	claims, err := m.signer.VerifyAccessToken(accessToken)
	if err != nil {
		return models.User{}, apperr.Authentication("invalid access token", err)
	}
	user, err := m.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return models.User{}, tokenOwnerError("invalid access token", err)
	}
	return user, nil
}

// tokenOwnerError rejects a token whose user is gone. Any other lookup failure is the store's
// fault and must not be reported as a bad credential.
func tokenOwnerError(message string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return apperr.Authentication(message, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperr.Persistence("load token owner", err)
	}
}
