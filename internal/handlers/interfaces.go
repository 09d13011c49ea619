package handlers

import (
	"context"

	"github.com/vidhost/backend/internal/account"
	"github.com/vidhost/backend/internal/media"
	"github.com/vidhost/backend/internal/models"
)

// AccountService captures the account operations exposed over HTTP.
type AccountService interface {
	Register(ctx context.Context, in account.RegisterInput) (models.PublicUser, error)
	Login(ctx context.Context, in account.LoginInput) (account.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	RefreshAccessToken(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, userID, fullName, email string) (models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID string, file *media.File) (models.PublicUser, error)
	UpdateCoverImage(ctx context.Context, userID string, file *media.File) (models.PublicUser, error)
	CurrentUser(ctx context.Context, userID string) (models.PublicUser, error)
}

// ChannelService captures the channel and watch history operations exposed over HTTP.
type ChannelService interface {
	GetChannelProfile(ctx context.Context, viewerID, userName string) (models.ChannelProfile, error)
	GetWatchHistory(ctx context.Context, userID string) ([]models.WatchedVideo, error)
	Subscribe(ctx context.Context, subscriberID, channelUserName string) (models.ChannelProfile, error)
	Unsubscribe(ctx context.Context, subscriberID, channelUserName string) (models.ChannelProfile, error)
	RecordView(ctx context.Context, userID, videoID string) error
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
