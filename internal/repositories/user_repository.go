package repositories

import (
	"context"

	"github.com/vidhost/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUserName(ctx context.Context, userName string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, userName, email string) (models.User, error)
	Update(ctx context.Context, id string, patch UserPatch) (models.User, error)
	SetRefreshToken(ctx context.Context, id, refreshToken string) error
	UnsetRefreshToken(ctx context.Context, id string) error
}

// UserPatch lists the profile columns to change. Nil fields are left untouched.
type UserPatch struct {
	FullName      *string
	Email         *string
	PasswordHash  *string
	AvatarURL     *string
	CoverImageURL *string
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.FullName == nil && p.Email == nil && p.PasswordHash == nil && p.AvatarURL == nil && p.CoverImageURL == nil
}
