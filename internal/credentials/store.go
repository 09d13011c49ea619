// Package credentials owns user records together with their hashed passwords and token slot.
package credentials

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidhost/backend/internal/models"
	"github.com/vidhost/backend/internal/repositories"
)

// MinCost is the lowest bcrypt work factor the store accepts.
const MinCost = 10

// NewUser carries the plaintext fields of a registration.
type NewUser struct {
	UserName      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL *string
}

// Patch lists the fields to change on an existing user. Password is plaintext and is
// hashed before it reaches the repository.
type Patch struct {
	FullName      *string
	Email         *string
	Password      *string
	AvatarURL     *string
	CoverImageURL *string
}

// Store wraps a UserRepository and hashes passwords on every write that sets one.
type Store struct {
	users   repositories.UserRepository
	cost    int
	nowFunc func() time.Time
}

// NewStore constructs a Store hashing with the provided bcrypt cost, raised to MinCost if lower.
func NewStore(users repositories.UserRepository, cost int) *Store {
	if users == nil {
		panic("credentials: user repository must not be nil")
	}
	if cost < MinCost {
		cost = MinCost
	}
	return &Store{users: users, cost: cost, nowFunc: func() time.Time { return time.Now().UTC() }}
}

// NormalizeUserName lowercases and trims a user name.
func NormalizeUserName(userName string) string {
	return strings.ToLower(strings.TrimSpace(userName))
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByUsernameOrEmail looks up a user by either normalized identifier.
func (s *Store) FindByUsernameOrEmail(ctx context.Context, userName, email string) (models.User, error) {
	return s.users.FindByUsernameOrEmail(ctx, NormalizeUserName(userName), NormalizeEmail(email))
}

// FindByID looks up a user by identifier.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	return s.users.FindByID(ctx, id)
}

// Create hashes the password and inserts the user.
func (s *Store) Create(ctx context.Context, in NewUser) (models.User, error) {
	hash, err := s.hash(in.Password)
	if err != nil {
		return models.User{}, err
	}

	now := s.nowFunc()
	user := models.User{
		ID:            uuid.NewString(),
		UserName:      NormalizeUserName(in.UserName),
		Email:         NormalizeEmail(in.Email),
		FullName:      strings.TrimSpace(in.FullName),
		PasswordHash:  hash,
		AvatarURL:     in.AvatarURL,
		CoverImageURL: in.CoverImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// UpdateFields applies patch. The password hash is recomputed only when patch.Password is set.
func (s *Store) UpdateFields(ctx context.Context, id string, patch Patch) (models.User, error) {
	repoPatch := repositories.UserPatch{
		FullName:      patch.FullName,
		AvatarURL:     patch.AvatarURL,
		CoverImageURL: patch.CoverImageURL,
	}
	if patch.FullName != nil {
		fullName := strings.TrimSpace(*patch.FullName)
		repoPatch.FullName = &fullName
	}
	if patch.Email != nil {
		email := NormalizeEmail(*patch.Email)
		repoPatch.Email = &email
	}
	if patch.Password != nil {
		hash, err := s.hash(*patch.Password)
		if err != nil {
			return models.User{}, err
		}
		repoPatch.PasswordHash = &hash
	}

	return s.users.Update(ctx, id, repoPatch)
}

// SetRefreshToken replaces the user's stored refresh token.
func (s *Store) SetRefreshToken(ctx context.Context, id, refreshToken string) error {
	return s.users.SetRefreshToken(ctx, id, refreshToken)
}

// UnsetRefreshToken removes the user's stored refresh token.
func (s *Store) UnsetRefreshToken(ctx context.Context, id string) error {
	return s.users.UnsetRefreshToken(ctx, id)
}

// VerifyPassword reports whether plaintext matches the user's stored hash.
func (s *Store) VerifyPassword(user models.User, plaintext string) bool {
	if user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plaintext)) == nil
}

func (s *Store) hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}
