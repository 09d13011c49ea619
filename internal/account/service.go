// Package account implements registration, login, token refresh, and profile maintenance.
package account

import (
	"context"
	"errors"
	"strings"

	"github.com/vidhost/backend/internal/apperr"
	"github.com/vidhost/backend/internal/credentials"
	"github.com/vidhost/backend/internal/logging"
	"github.com/vidhost/backend/internal/media"
	"github.com/vidhost/backend/internal/models"
	"github.com/vidhost/backend/internal/repositories"
)

const (
	avatarFolder = "avatars"
	coverFolder  = "covers"
)

// Credentials captures the user store operations the service relies on.
type Credentials interface {
	FindByUsernameOrEmail(ctx context.Context, userName, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Create(ctx context.Context, in credentials.NewUser) (models.User, error)
	UpdateFields(ctx context.Context, id string, patch credentials.Patch) (models.User, error)
	VerifyPassword(user models.User, plaintext string) bool
}

// Sessions issues, rotates, and revokes token pairs.
type Sessions interface {
	IssuePair(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, userID string) error
}

// Uploader sends a staged file to the blob store.
type Uploader interface {
	Upload(ctx context.Context, folder string, file media.File) (string, error)
}

// Cleaner schedules deletion of blobs that are no longer referenced.
type Cleaner interface {
	Enqueue(ctx context.Context, location string) error
}

// Service orchestrates the credential store, token manager, and blob store.
type Service struct {
	creds    Credentials
	sessions Sessions
	uploader Uploader
	cleaner  Cleaner
}

// NewService constructs a Service.
func NewService(creds Credentials, sessions Sessions, uploader Uploader, cleaner Cleaner) *Service {
	if creds == nil || sessions == nil || uploader == nil || cleaner == nil {
		panic("account: all dependencies must be provided")
	}
	return &Service{creds: creds, sessions: sessions, uploader: uploader, cleaner: cleaner}
}

// RegisterInput carries a registration request. CoverImage is optional.
type RegisterInput struct {
	UserName   string
	Email      string
	FullName   string
	Password   string
	Avatar     *media.File
	CoverImage *media.File
}

// LoginInput identifies the user by user name or email.
type LoginInput struct {
	UserName string
	Email    string
	Password string
}

// LoginResult is the sanitized user together with a fresh token pair.
type LoginResult struct {
	User   models.PublicUser    `json:"user"`
	Tokens models.SessionTokens `json:"tokens"`
}

// Register creates a user after uploading their avatar and optional cover image.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ models.PublicUser, err error) {
	ctx, span := logging.StartSpan(ctx, "account.register")
	defer func() { span.Fail(err); span.End() }()

	if blank(in.FullName, in.Email, in.UserName, in.Password) {
		return models.PublicUser{}, apperr.Validation("all fields are required")
	}

	if _, err := s.creds.FindByUsernameOrEmail(ctx, in.UserName, in.Email); err == nil {
		return models.PublicUser{}, apperr.Conflict("user with email or username already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return models.PublicUser{}, apperr.Persistence("look up existing user", err)
	}

	if in.Avatar == nil {
		return models.PublicUser{}, apperr.Validation("avatar file is required")
	}

	avatarURL, err := s.uploader.Upload(ctx, avatarFolder, *in.Avatar)
	if err != nil {
		return models.PublicUser{}, apperr.Upload("avatar file is required", err)
	}

	var coverURL *string
	if in.CoverImage != nil {
		location, err := s.uploader.Upload(ctx, coverFolder, *in.CoverImage)
		if err != nil {
			s.discard(ctx, avatarURL)
			return models.PublicUser{}, apperr.Upload("error while uploading cover image", err)
		}
		coverURL = &location
	}

	created, err := s.creds.Create(ctx, credentials.NewUser{
		UserName:      in.UserName,
		Email:         in.Email,
		FullName:      in.FullName,
		Password:      in.Password,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	})
	if err != nil {
		s.discard(ctx, avatarURL)
		if coverURL != nil {
			s.discard(ctx, *coverURL)
		}
		if errors.Is(err, repositories.ErrConflict) {
			return models.PublicUser{}, apperr.Conflict("user with email or username already exists")
		}
		return models.PublicUser{}, apperr.Persistence("something went wrong while registering the user", err)
	}

	stored, err := s.creds.FindByID(ctx, created.ID)
	if err != nil {
		return models.PublicUser{}, apperr.Persistence("something went wrong while registering the user", err)
	}

	logging.FromContext(ctx).Info("user registered", "user_id", stored.ID)
	return stored.Public(), nil
}

// Login verifies the password and issues a token pair.
func (s *Service) Login(ctx context.Context, in LoginInput) (_ LoginResult, err error) {
	ctx, span := logging.StartSpan(ctx, "account.login")
	defer func() { span.Fail(err); span.End() }()

	if blank(in.UserName) && blank(in.Email) {
		return LoginResult{}, apperr.Validation("username or email is required")
	}

	user, err := s.creds.FindByUsernameOrEmail(ctx, in.UserName, in.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return LoginResult{}, apperr.NotFound("user does not exist")
		}
		return LoginResult{}, apperr.Persistence("look up user", err)
	}

	if !s.creds.VerifyPassword(user, in.Password) {
		return LoginResult{}, apperr.Authentication("invalid user credentials", nil)
	}

	tokens, err := s.sessions.IssuePair(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{User: user.Public(), Tokens: tokens}, nil
}

// Logout clears the user's stored refresh token.
func (s *Service) Logout(ctx context.Context, userID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "account.logout")
	defer func() { span.Fail(err); span.End() }()

	return s.sessions.Revoke(ctx, userID)
}

// RefreshAccessToken rotates the token pair for the holder of the current refresh token.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (_ models.SessionTokens, err error) {
	ctx, span := logging.StartSpan(ctx, "account.refresh")
	defer func() { span.Fail(err); span.End() }()

	return s.sessions.Refresh(ctx, strings.TrimSpace(refreshToken))
}

// ChangePassword replaces the password after checking the old one. Existing tokens stay valid.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	ctx, span := logging.StartSpan(ctx, "account.change_password")
	defer func() { span.Fail(err); span.End() }()

	if oldPassword == "" || newPassword == "" {
		return apperr.Validation("old and new password are required")
	}

	user, err := s.creds.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.Authentication("unauthorized request", err)
		}
		return storeError("load user", err)
	}

	if !s.creds.VerifyPassword(user, oldPassword) {
		return apperr.Validation("invalid old password")
	}

	if _, err := s.creds.UpdateFields(ctx, user.ID, credentials.Patch{Password: &newPassword}); err != nil {
		return storeError("update password", err)
	}
	return nil
}

// UpdateProfile replaces the full name and email.
func (s *Service) UpdateProfile(ctx context.Context, userID, fullName, email string) (_ models.PublicUser, err error) {
	ctx, span := logging.StartSpan(ctx, "account.update_profile")
	defer func() { span.Fail(err); span.End() }()

	if blank(fullName, email) {
		return models.PublicUser{}, apperr.Validation("all fields are required")
	}

	updated, err := s.creds.UpdateFields(ctx, userID, credentials.Patch{FullName: &fullName, Email: &email})
	if err != nil {
		return models.PublicUser{}, storeError("update account details", err)
	}
	return updated.Public(), nil
}

// UpdateAvatar uploads a new avatar, points the user at it, and schedules the old one for deletion.
func (s *Service) UpdateAvatar(ctx context.Context, userID string, file *media.File) (_ models.PublicUser, err error) {
	ctx, span := logging.StartSpan(ctx, "account.update_avatar")
	defer func() { span.Fail(err); span.End() }()

	if file == nil {
		return models.PublicUser{}, apperr.Validation("avatar file is missing")
	}

	return s.replaceImage(ctx, userID, avatarFolder, *file, "error while uploading avatar",
		func(user models.User) string { return user.AvatarURL },
		func(location *string) credentials.Patch { return credentials.Patch{AvatarURL: location} },
	)
}

// UpdateCoverImage uploads a new cover image, points the user at it, and schedules the old one for deletion.
func (s *Service) UpdateCoverImage(ctx context.Context, userID string, file *media.File) (_ models.PublicUser, err error) {
	ctx, span := logging.StartSpan(ctx, "account.update_cover_image")
	defer func() { span.Fail(err); span.End() }()

	if file == nil {
		return models.PublicUser{}, apperr.Validation("cover image file is missing")
	}

	return s.replaceImage(ctx, userID, coverFolder, *file, "error while uploading cover image",
		func(user models.User) string {
			if user.CoverImageURL == nil {
				return ""
			}
			return *user.CoverImageURL
		},
		func(location *string) credentials.Patch { return credentials.Patch{CoverImageURL: location} },
	)
}

// CurrentUser returns the sanitized record of the authenticated user.
func (s *Service) CurrentUser(ctx context.Context, userID string) (models.PublicUser, error) {
	user, err := s.creds.FindByID(ctx, userID)
	if err != nil {
		return models.PublicUser{}, storeError("load current user", err)
	}
	return user.Public(), nil
}

// replaceImage deletes the old blob only after both the upload and the store write succeed.
// If the write fails the new blob is discarded instead.
func (s *Service) replaceImage(
	ctx context.Context,
	userID, folder string,
	file media.File,
	uploadMsg string,
	current func(models.User) string,
	patch func(*string) credentials.Patch,
) (models.PublicUser, error) {
	user, err := s.creds.FindByID(ctx, userID)
	if err != nil {
		return models.PublicUser{}, storeError("load user", err)
	}
	previous := current(user)

	location, err := s.uploader.Upload(ctx, folder, file)
	if err != nil {
		return models.PublicUser{}, apperr.Upload(uploadMsg, err)
	}

	updated, err := s.creds.UpdateFields(ctx, userID, patch(&location))
	if err != nil {
		s.discard(ctx, location)
		return models.PublicUser{}, storeError("update image", err)
	}

	if previous != "" && previous != location {
		s.discard(ctx, previous)
	}
	return updated.Public(), nil
}

// discard hands location to the cleaner. It never blocks the request; a dropped job only leaves an orphan blob.
func (s *Service) discard(ctx context.Context, location string) {
	if err := s.cleaner.Enqueue(context.WithoutCancel(ctx), location); err != nil {
		logging.FromContext(ctx).Warn("schedule blob deletion", "location", location, "error", err)
	}
}

func storeError(op string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return apperr.NotFound("user does not exist")
	case errors.Is(err, repositories.ErrConflict):
		return apperr.Conflict("email is already in use")
	default:
		return apperr.Persistence(op, err)
	}
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
