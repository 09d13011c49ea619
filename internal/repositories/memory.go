package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/vidhost/backend/internal/models"
)

// MemoryStore implements the user, subscription, and video repositories in memory.
// It is intended for tests and local development.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]models.User
	subscriptions map[subscriptionKey]models.Subscription
	videos        map[string]models.Video
	history       map[string][]string
	now           func() time.Time
}

type subscriptionKey struct {
	subscriber string
	channel    string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]models.User),
		subscriptions: make(map[subscriptionKey]models.Subscription),
		videos:        make(map[string]models.Video),
		history:       make(map[string][]string),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Create persists a new user record.
func (s *MemoryStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return ErrConflict
	}
	for _, existing := range s.users {
		if existing.UserName == user.UserName || existing.Email == user.Email {
			return ErrConflict
		}
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

// FindByID fetches a user by identifier.
func (s *MemoryStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

// FindByUserName fetches a user by user name.
func (s *MemoryStore) FindByUserName(_ context.Context, userName string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.UserName == userName {
			return cloneUser(user), nil
		}
	}
	return models.User{}, ErrNotFound
}

// FindByUsernameOrEmail fetches the user matching either identifier. Empty identifiers never match.
func (s *MemoryStore) FindByUsernameOrEmail(_ context.Context, userName, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if (userName != "" && user.UserName == userName) || (email != "" && user.Email == email) {
			return cloneUser(user), nil
		}
	}
	return models.User{}, ErrNotFound
}

// Update applies the non-nil fields of patch and returns the updated record.
func (s *MemoryStore) Update(_ context.Context, id string, patch UserPatch) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	if patch.Empty() {
		return cloneUser(user), nil
	}

	if patch.Email != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Email == *patch.Email {
				return models.User{}, ErrConflict
			}
		}
		user.Email = *patch.Email
	}
	if patch.FullName != nil {
		user.FullName = *patch.FullName
	}
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	if patch.AvatarURL != nil {
		user.AvatarURL = *patch.AvatarURL
	}
	if patch.CoverImageURL != nil {
		cover := *patch.CoverImageURL
		user.CoverImageURL = &cover
	}
	user.UpdatedAt = s.now()

	s.users[id] = user
	return cloneUser(user), nil
}

// SetRefreshToken stores the user's single active refresh token.
func (s *MemoryStore) SetRefreshToken(_ context.Context, id, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	token := refreshToken
	user.RefreshToken = &token
	user.UpdatedAt = s.now()
	s.users[id] = user
	return nil
}

// UnsetRefreshToken clears the user's refresh token slot.
func (s *MemoryStore) UnsetRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	user.RefreshToken = nil
	user.UpdatedAt = s.now()
	s.users[id] = user
	return nil
}

// Subscribe records the edge. Subscribing twice is a no-op.
func (s *MemoryStore) Subscribe(_ context.Context, subscriberID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[subscriberID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.users[channelID]; !ok {
		return ErrNotFound
	}
	key := subscriptionKey{subscriber: subscriberID, channel: channelID}
	if _, exists := s.subscriptions[key]; exists {
		return nil
	}
	s.subscriptions[key] = models.Subscription{SubscriberID: subscriberID, ChannelID: channelID, CreatedAt: s.now()}
	return nil
}

// Unsubscribe removes the edge if present.
func (s *MemoryStore) Unsubscribe(_ context.Context, subscriberID, channelID string) error {
	s.mu.Lock()
	delete(s.subscriptions, subscriptionKey{subscriber: subscriberID, channel: channelID})
	s.mu.Unlock()
	return nil
}

// ChannelProfile loads the channel's public fields with subscription counters.
func (s *MemoryStore) ChannelProfile(_ context.Context, userName, viewerID string) (models.ChannelProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		channel models.User
		found   bool
	)
	for _, user := range s.users {
		if user.UserName == userName {
			channel, found = user, true
			break
		}
	}
	if !found {
		return models.ChannelProfile{}, ErrNotFound
	}

	profile := models.ChannelProfile{
		ID:            channel.ID,
		UserName:      channel.UserName,
		FullName:      channel.FullName,
		Email:         channel.Email,
		AvatarURL:     channel.AvatarURL,
		CoverImageURL: channel.CoverImageURL,
	}
	for key := range s.subscriptions {
		if key.channel == channel.ID {
			profile.SubscriberCount++
			if viewerID != "" && key.subscriber == viewerID {
				profile.IsSubbed = true
			}
		}
		if key.subscriber == channel.ID {
			profile.SubbedToCount++
		}
	}
	return profile, nil
}

// CreateVideo stores a new video record.
func (s *MemoryStore) CreateVideo(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.videos[video.ID]; exists {
		return ErrConflict
	}
	if _, ok := s.users[video.OwnerID]; !ok {
		return ErrNotFound
	}
	s.videos[video.ID] = video
	return nil
}

// AppendWatchHistory adds the video to the end of the user's history and counts the view.
func (s *MemoryStore) AppendWatchHistory(_ context.Context, userID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.videos[videoID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	video.Views++
	s.videos[videoID] = video
	s.history[userID] = append(s.history[userID], videoID)
	return nil
}

// WatchHistory returns the user's watched videos in insertion order with owners joined in.
func (s *MemoryStore) WatchHistory(_ context.Context, userID string) ([]models.WatchedVideo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[userID]; !ok {
		return nil, ErrNotFound
	}

	history := make([]models.WatchedVideo, 0, len(s.history[userID]))
	for _, videoID := range s.history[userID] {
		video, ok := s.videos[videoID]
		if !ok {
			continue
		}
		entry := models.WatchedVideo{Video: video}
		if owner, ok := s.users[video.OwnerID]; ok {
			entry.Owner = &models.VideoOwner{
				ID:        owner.ID,
				FullName:  owner.FullName,
				UserName:  owner.UserName,
				AvatarURL: owner.AvatarURL,
			}
		}
		history = append(history, entry)
	}
	return history, nil
}

// Videos adapts the store to VideoRepository, whose Create collides with the user Create.
func (s *MemoryStore) Videos() VideoRepository {
	return memoryVideos{s}
}

type memoryVideos struct{ *MemoryStore }

func (v memoryVideos) Create(ctx context.Context, video models.Video) error {
	return v.CreateVideo(ctx, video)
}

func cloneUser(user models.User) models.User {
	if user.CoverImageURL != nil {
		cover := *user.CoverImageURL
		user.CoverImageURL = &cover
	}
	if user.RefreshToken != nil {
		token := *user.RefreshToken
		user.RefreshToken = &token
	}
	return user
}

var _ UserRepository = (*MemoryStore)(nil)
var _ SubscriptionRepository = (*MemoryStore)(nil)
var _ VideoRepository = memoryVideos{}
