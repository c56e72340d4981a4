package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/pkg/database"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

// ChannelRepository implements repository.ChannelRepository using PostgreSQL.
type ChannelRepository struct {
	db      database.DBTX
	timeout time.Duration
}

// NewChannelRepository creates a new PostgreSQL-backed channel repository.
func NewChannelRepository(db database.DBTX, timeout time.Duration) *ChannelRepository {
	return &ChannelRepository{db: db, timeout: timeout}
}

// GetChannelProfile returns the channel owned by userName with subscriber
// counts and whether viewerID subscribes to it.
func (r *ChannelRepository) GetChannelProfile(ctx context.Context, userName, viewerID string) (_ *domain.ChannelProfile, err error) {
	query := `
		SELECT u.id, u.full_name, u.user_name, u.email, u.avatar, u.cover_image, u.created_at,
			(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
			(SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
			EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = NULLIF($2, '')::uuid)
		FROM users u
		WHERE u.user_name = $1`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	ctx, end := database.TraceQuery(ctx, "channels.GetProfile", query)
	defer func() { end(err) }()

	var p domain.ChannelProfile
	err = r.db.QueryRow(ctx, query, userName, viewerID).Scan(
		&p.ID,
		&p.FullName,
		&p.UserName,
		&p.Email,
		&p.Avatar,
		&p.CoverImage,
		&p.CreatedAt,
		&p.SubscribersCount,
		&p.ChannelsSubscribedToCount,
		&p.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get channel profile: %w", err)
	}
	return &p, nil
}

// GetWatchHistory returns the user's watched videos ordered by watch position,
// each with its owner's public fields.
func (r *ChannelRepository) GetWatchHistory(ctx context.Context, userID string) (_ []domain.WatchedVideo, err error) {
	query := `
		SELECT v.id, v.title, v.description, v.video_file, v.thumbnail, v.duration, v.views, v.is_published, v.created_at,
			o.full_name, o.user_name, o.avatar
		FROM watch_history w
		JOIN videos v ON v.id = w.video_id
		JOIN users o ON o.id = v.owner_id
		WHERE w.user_id = $1
		ORDER BY w.position`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	ctx, end := database.TraceQuery(ctx, "channels.GetWatchHistory", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.WatchedVideo, 0)
	for rows.Next() {
		var v domain.WatchedVideo
		if err = rows.Scan(
			&v.ID,
			&v.Title,
			&v.Description,
			&v.VideoFile,
			&v.Thumbnail,
			&v.Duration,
			&v.Views,
			&v.IsPublished,
			&v.CreatedAt,
			&v.Owner.FullName,
			&v.Owner.UserName,
			&v.Owner.Avatar,
		); err != nil {
			return nil, fmt.Errorf("scan watch history: %w", err)
		}
		history = append(history, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}
	return history, nil
}

// AppendWatchHistory adds videoID to the end of the user's history. Unknown
// users or videos yield ErrNotFound.
func (r *ChannelRepository) AppendWatchHistory(ctx context.Context, userID, videoID string) (err error) {
	query := `INSERT INTO watch_history (user_id, video_id) VALUES ($1, $2)`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	ctx, end := database.TraceQuery(ctx, "channels.AppendWatchHistory", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, userID, videoID); err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("append watch history: %w", err)
	}
	return nil
}
