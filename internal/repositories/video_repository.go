package repositories

import (
	"context"

	"github.com/vidhost/backend/internal/models"
)

// VideoRepository exposes data access for videos and per-user watch history.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	AppendWatchHistory(ctx context.Context, userID, videoID string) error
	WatchHistory(ctx context.Context, userID string) ([]models.WatchedVideo, error)
}

// SubscriptionRepository exposes subscriber-to-channel edges and the channel aggregate.
type SubscriptionRepository interface {
	Subscribe(ctx context.Context, subscriberID, channelID string) error
	Unsubscribe(ctx context.Context, subscriberID, channelID string) error
	ChannelProfile(ctx context.Context, userName, viewerID string) (models.ChannelProfile, error)
}
