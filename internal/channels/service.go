// Package channels answers the read-side channel and watch history queries and maintains subscriptions.
package channels

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/vidhost/backend/internal/apperr"
	"github.com/vidhost/backend/internal/logging"
	"github.com/vidhost/backend/internal/models"
	"github.com/vidhost/backend/internal/repositories"
)

// Service computes channel profiles and watch history and records subscriptions and views.
type Service struct {
	subscriptions repositories.SubscriptionRepository
	videos        repositories.VideoRepository
}

// NewService constructs a Service.
func NewService(subscriptions repositories.SubscriptionRepository, videos repositories.VideoRepository) *Service {
	if subscriptions == nil || videos == nil {
		panic("channels: repositories must be provided")
	}
	return &Service{subscriptions: subscriptions, videos: videos}
}

// GetChannelProfile returns the channel's public fields with its subscription counters.
// viewerID may be empty for anonymous callers, in which case IsSubbed is false.
func (s *Service) GetChannelProfile(ctx context.Context, viewerID, userName string) (_ models.ChannelProfile, err error) {
	ctx, span := logging.StartSpan(ctx, "channels.profile")
	defer func() { span.Fail(err); span.End() }()

	userName = normalize(userName)
	if userName == "" {
		return models.ChannelProfile{}, apperr.Validation("username is missing")
	}

	profile, err := s.subscriptions.ChannelProfile(ctx, userName, viewerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ChannelProfile{}, apperr.NotFound("channel does not exist")
		}
		return models.ChannelProfile{}, apperr.Persistence("load channel profile", err)
	}
	return profile, nil
}

// GetWatchHistory returns the user's watched videos in the order they were watched.
func (s *Service) GetWatchHistory(ctx context.Context, userID string) (_ []models.WatchedVideo, err error) {
	ctx, span := logging.StartSpan(ctx, "channels.watch_history")
	defer func() { span.Fail(err); span.End() }()

	history, err := s.videos.WatchHistory(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("user does not exist")
		}
		return nil, apperr.Persistence("load watch history", err)
	}
	if history == nil {
		history = []models.WatchedVideo{}
	}
	return history, nil
}

// Subscribe makes subscriberID a subscriber of the named channel. Repeating it is a no-op.
func (s *Service) Subscribe(ctx context.Context, subscriberID, channelUserName string) (_ models.ChannelProfile, err error) {
	ctx, span := logging.StartSpan(ctx, "channels.subscribe")
	defer func() { span.Fail(err); span.End() }()

	channel, err := s.GetChannelProfile(ctx, subscriberID, channelUserName)
	if err != nil {
		return models.ChannelProfile{}, err
	}
	if channel.ID == subscriberID {
		return models.ChannelProfile{}, apperr.Validation("cannot subscribe to your own channel")
	}

	if err := s.subscriptions.Subscribe(ctx, subscriberID, channel.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ChannelProfile{}, apperr.NotFound("channel does not exist")
		}
		return models.ChannelProfile{}, apperr.Persistence("subscribe", err)
	}

	return s.GetChannelProfile(ctx, subscriberID, channel.UserName)
}

// Unsubscribe removes the subscription if it exists.
func (s *Service) Unsubscribe(ctx context.Context, subscriberID, channelUserName string) (_ models.ChannelProfile, err error) {
	ctx, span := logging.StartSpan(ctx, "channels.unsubscribe")
	defer func() { span.Fail(err); span.End() }()

	channel, err := s.GetChannelProfile(ctx, subscriberID, channelUserName)
	if err != nil {
		return models.ChannelProfile{}, err
	}

	if err := s.subscriptions.Unsubscribe(ctx, subscriberID, channel.ID); err != nil {
		return models.ChannelProfile{}, apperr.Persistence("unsubscribe", err)
	}

	return s.GetChannelProfile(ctx, subscriberID, channel.UserName)
}

// RecordView appends the video to the user's watch history and counts the view.
func (s *Service) RecordView(ctx context.Context, userID, videoID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "channels.record_view")
	defer func() { span.Fail(err); span.End() }()

	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return apperr.Validation("video id is missing")
	}

	if _, err := uuid.Parse(videoID); err != nil {
		return apperr.NotFound("video does not exist")
	}

	if err := s.videos.AppendWatchHistory(ctx, userID, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("video does not exist")
		}
		return apperr.Persistence("record view", err)
	}
	return nil
}

func normalize(userName string) string {
	return strings.ToLower(strings.TrimSpace(userName))
}
