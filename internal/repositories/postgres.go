package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidhost/backend/internal/db"
	"github.com/vidhost/backend/internal/models"
)

const userColumns = `id, user_name, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, user_name, email, full_name, password_hash, avatar_url, cover_image_url, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.UserName, user.Email, user.FullName, user.PasswordHash, user.AvatarURL, user.CoverImageURL, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "select user by id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUserName fetches a user by their (lowercase) user name.
func (r *PostgresUserRepository) FindByUserName(ctx context.Context, userName string) (models.User, error) {
	return r.findOne(ctx, "select user by user name", `SELECT `+userColumns+` FROM users WHERE user_name = $1`, userName)
}

// FindByUsernameOrEmail fetches the user matching either identifier. Empty identifiers never match.
func (r *PostgresUserRepository) FindByUsernameOrEmail(ctx context.Context, userName, email string) (models.User, error) {
	if userName == "" && email == "" {
		return models.User{}, ErrNotFound
	}
	return r.findOne(ctx, "select user by user name or email", `
        SELECT `+userColumns+`
        FROM users
        WHERE ($1 <> '' AND user_name = $1) OR ($2 <> '' AND email = $2)
        ORDER BY created_at
        LIMIT 1
    `, userName, email)
}

// Update applies the non-nil fields of patch and returns the updated record.
func (r *PostgresUserRepository) Update(ctx context.Context, id string, patch UserPatch) (models.User, error) {
	if patch.Empty() {
		return r.FindByID(ctx, id)
	}

	var (
		sets []string
		args = []any{id}
	)
	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("full_name", patch.FullName)
	add("email", patch.Email)
	add("password_hash", patch.PasswordHash)
	add("avatar_url", patch.AvatarURL)
	add("cover_image_url", patch.CoverImageURL)

	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+userColumns, args...)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		if pgCode(err) == pgUniqueViolation {
			return models.User{}, ErrConflict
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}

func (r *PostgresUserRepository) findOne(ctx context.Context, op, query string, args ...any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.UserName, &user.Email, &user.FullName, &user.PasswordHash,
		&user.AvatarURL, &user.CoverImageURL, &user.RefreshToken,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return models.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for channel subscriptions.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Subscribe records the edge. Subscribing twice is a no-op.
func (r *PostgresSubscriptionRepository) Subscribe(ctx context.Context, subscriberID, channelID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO subscriptions (subscriber_id, channel_id, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (subscriber_id, channel_id) DO NOTHING
    `, subscriberID, channelID, time.Now().UTC())
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("insert subscription: %w", err)
	}

	return nil
}

// Unsubscribe removes the edge if present.
func (r *PostgresSubscriptionRepository) Unsubscribe(ctx context.Context, subscriberID, channelID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM subscriptions
        WHERE subscriber_id = $1 AND channel_id = $2
    `, subscriberID, channelID); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	return nil
}

// ChannelProfile loads the channel's public fields with subscriber and subscription counts.
// viewerID may be empty for anonymous viewers, in which case IsSubbed is false.
func (r *PostgresSubscriptionRepository) ChannelProfile(ctx context.Context, userName, viewerID string) (models.ChannelProfile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var viewer any
	if viewerID != "" {
		viewer = viewerID
	}

	row := conn.QueryRow(ctx, `
        SELECT u.id, u.user_name, u.full_name, u.email, u.avatar_url, u.cover_image_url,
            (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
            (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
            EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = $2::UUID)
        FROM users u
        WHERE u.user_name = $1
    `, userName, viewer)

	var profile models.ChannelProfile
	if err := row.Scan(
		&profile.ID, &profile.UserName, &profile.FullName, &profile.Email, &profile.AvatarURL, &profile.CoverImageURL,
		&profile.SubscriberCount, &profile.SubbedToCount, &profile.IsSubbed,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, ErrNotFound
		}
		return models.ChannelProfile{}, fmt.Errorf("select channel profile: %w", err)
	}

	return profile, nil
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos and watch history.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, video_file, thumbnail, title, description, duration, views, is_published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, video.ID, video.OwnerID, video.VideoFile, video.Thumbnail, video.Title, video.Description, video.Duration, video.Views, video.IsPublished, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation:
			return ErrNotFound
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// AppendWatchHistory adds the video to the end of the user's history and counts the view.
// Concurrent appends for the same user race for the next position; the loser is retried.
func (r *PostgresVideoRepository) AppendWatchHistory(ctx context.Context, userID, videoID string) error {
	if _, err := uuid.Parse(videoID); err != nil {
		return ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	for attempt := 1; ; attempt++ {
		err := appendWatchHistory(ctx, conn, userID, videoID)
		if err == nil || attempt == watchHistoryAttempts || !isPositionRace(err) {
			return err
		}
	}
}

const watchHistoryAttempts = 3

func appendWatchHistory(ctx context.Context, conn *pgxpool.Conn, userID, videoID string) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin watch history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, videoID)
	if err != nil {
		return fmt.Errorf("increment video views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO watch_history (user_id, position, video_id)
        SELECT $1, COALESCE(MAX(position), 0) + 1, $2
        FROM watch_history
        WHERE user_id = $1
    `, userID, videoID); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("insert watch history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit watch history: %w", err)
	}
	return nil
}

// WatchHistory returns the user's watched videos in insertion order, each with its owner joined in.
func (r *PostgresVideoRepository) WatchHistory(ctx context.Context, userID string) ([]models.WatchedVideo, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user exists: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.owner_id, v.video_file, v.thumbnail, v.title, v.description, v.duration, v.views,
            v.is_published, v.created_at, v.updated_at,
            o.id, o.full_name, o.user_name, o.avatar_url
        FROM watch_history h
        JOIN videos v ON v.id = h.video_id
        LEFT JOIN users o ON o.id = v.owner_id
        WHERE h.user_id = $1
        ORDER BY h.position ASC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	history := make([]models.WatchedVideo, 0)
	for rows.Next() {
		var (
			entry                                       models.WatchedVideo
			ownerID, ownerName, ownerUser, ownerAvatar *string
		)
		if err := rows.Scan(
			&entry.ID, &entry.OwnerID, &entry.VideoFile, &entry.Thumbnail, &entry.Title, &entry.Description,
			&entry.Duration, &entry.Views, &entry.IsPublished, &entry.CreatedAt, &entry.UpdatedAt,
			&ownerID, &ownerName, &ownerUser, &ownerAvatar,
		); err != nil {
			return nil, fmt.Errorf("scan watch history: %w", err)
		}
		if ownerID != nil {
			entry.Owner = &models.VideoOwner{
				ID:        *ownerID,
				FullName:  deref(ownerName),
				UserName:  deref(ownerUser),
				AvatarURL: deref(ownerAvatar),
			}
		}
		history = append(history, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}

	return history, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
