package repositories

import (
	"context"
	"fmt"

	"github.com/vidhub/backend/internal/models"
)

// ChannelProfile loads the public channel view for username. Subscriber and
// subscription counts come from the subscriptions table; isSubscribed is
// false for anonymous viewers.
func (r *PostgresUserRepository) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	username = normalizeLogin(username)
	if username == "" {
		return models.ChannelProfile{}, ErrNotFound
	}

	var viewer any
	if validID(viewerID) {
		viewer = viewerID
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT u.id, u.fullname, u.username, u.avatar, u.cover_image, u.email,
            (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id),
            (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
            EXISTS (
                SELECT 1 FROM subscriptions s
                WHERE s.channel_id = u.id AND s.subscriber_id = $2::UUID
            )
        FROM users u
        WHERE u.username = $1
    `, username, viewer)

	var p models.ChannelProfile
	if err := row.Scan(
		&p.ID, &p.FullName, &p.Username, &p.Avatar, &p.CoverImage, &p.Email,
		&p.SubscribersCount, &p.ChannelsSubscribedToCount, &p.IsSubscribed,
	); err != nil {
		return models.ChannelProfile{}, mapError(err, "select channel profile")
	}

	return p, nil
}

// WatchHistory resolves the user's watched videos, most recent first, with each
// owner reduced to a summary.
func (r *PostgresUserRepository) WatchHistory(ctx context.Context, userID string) ([]models.HistoryEntry, error) {
	if !validID(userID) {
		return nil, ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumnsAs("v")+`,
            o.id, o.fullname, o.username, o.avatar, h.watched_at
        FROM watch_history h
        JOIN videos v ON v.id = h.video_id
        JOIN users o ON o.id = v.owner_id
        WHERE h.user_id = $1
        ORDER BY h.watched_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	history := []models.HistoryEntry{}
	for rows.Next() {
		var entry models.HistoryEntry
		dest := append(videoScanDest(&entry.Video),
			&entry.Owner.ID, &entry.Owner.FullName, &entry.Owner.Username, &entry.Owner.Avatar, &entry.WatchedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan watch history: %w", err)
		}
		history = append(history, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}

	return history, nil
}

// RecordWatch adds videoID to the user's history or bumps its timestamp.
func (r *PostgresUserRepository) RecordWatch(ctx context.Context, userID, videoID string) error {
	if !validID(userID) || !validID(videoID) {
		return ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO watch_history (user_id, video_id, watched_at)
        VALUES ($1, $2, now())
        ON CONFLICT (user_id, video_id)
        DO UPDATE SET watched_at = EXCLUDED.watched_at
    `, userID, videoID)
	if err != nil {
		return mapError(err, "record watch")
	}

	return nil
}
