package models

import "time"

// User represents an account on the video platform, including credential state.
type User struct {
	ID            string
	UserName      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL *string
	RefreshToken  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Public returns the sanitized projection of the user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		UserName:      u.UserName,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// PublicUser is a user record with the password hash and refresh token omitted.
type PublicUser struct {
	ID            string    `json:"id"`
	UserName      string    `json:"userName"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL *string   `json:"coverImage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Subscription is an edge from a subscriber to the channel they follow.
type Subscription struct {
	SubscriberID string
	ChannelID    string
	CreatedAt    time.Time
}

// Video is an uploaded video owned by a user.
type Video struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"-"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// VideoOwner is the public subset of a user embedded in watch history entries.
type VideoOwner struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	UserName  string `json:"userName"`
	AvatarURL string `json:"avatar"`
}

// WatchedVideo is a watch history entry: the video with its owner joined in.
type WatchedVideo struct {
	Video
	Owner *VideoOwner `json:"owner"`
}

// ChannelProfile is the public view of a channel with its subscription counters.
type ChannelProfile struct {
	ID              string  `json:"id"`
	UserName        string  `json:"userName"`
	FullName        string  `json:"fullName"`
	Email           string  `json:"email"`
	AvatarURL       string  `json:"avatar"`
	CoverImageURL   *string `json:"coverImage,omitempty"`
	SubscriberCount int64   `json:"subscriberCount"`
	SubbedToCount   int64   `json:"subbedToCount"`
	IsSubbed        bool    `json:"isSubbed"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
