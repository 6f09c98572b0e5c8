package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/vidhub/backend/internal/db"
	"github.com/vidhub/backend/internal/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// sortColumns whitelists the orderings a listing may request.
var sortColumns = map[string]string{
	"":          "created_at",
	"createdAt": "created_at",
	"views":     "views",
	"duration":  "duration",
	"title":     "title",
}

var videoFields = []string{
	"id", "owner_id", "video_file", "thumbnail", "title", "description",
	"duration", "views", "is_published", "created_at", "updated_at",
}

func videoColumnsAs(alias string) string {
	cols := make([]string, len(videoFields))
	for i, f := range videoFields {
		if alias != "" {
			cols[i] = alias + "." + f
		} else {
			cols[i] = f
		}
	}
	return strings.Join(cols, ", ")
}

func videoScanDest(v *models.Video) []any {
	return []any{
		&v.ID, &v.OwnerID, &v.VideoFile, &v.Thumbnail, &v.Title, &v.Description,
		&v.Duration, &v.Views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt,
	}
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video. The owner must exist.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, video_file, thumbnail, title, description, duration, views, is_published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, video.ID, video.OwnerID, video.VideoFile, video.Thumbnail, video.Title, video.Description,
		video.Duration, video.Views, video.IsPublished, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		return mapError(err, "insert video")
	}

	return nil
}

// FindByID loads a single video.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	if !validID(id) {
		return models.Video{}, ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var video models.Video
	row := conn.QueryRow(ctx, `SELECT `+videoColumnsAs("")+` FROM videos WHERE id = $1`, id)
	if err := row.Scan(videoScanDest(&video)...); err != nil {
		return models.Video{}, mapError(err, "select video")
	}
	return video, nil
}

// List pages through videos visible to the viewer: published videos plus the
// viewer's own drafts.
func (r *PostgresVideoRepository) List(ctx context.Context, q models.VideoQuery) (models.VideoPage, error) {
	q = NormalizeVideoQuery(q)
	page := models.VideoPage{Videos: []models.Video{}, Page: q.Page, Limit: q.Limit}

	if q.OwnerID != "" && !validID(q.OwnerID) {
		return page, nil
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if validID(q.ViewerID) {
		where = append(where, "(is_published OR owner_id = "+arg(q.ViewerID)+")")
	} else {
		where = append(where, "is_published")
	}
	if q.OwnerID != "" {
		where = append(where, "owner_id = "+arg(q.OwnerID))
	}
	if q.Search != "" {
		p := arg("%" + escapeLike(q.Search) + "%")
		where = append(where, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	direction := "DESC"
	if !q.SortDesc {
		direction = "ASC"
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return page, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM videos`+clause, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count videos: %w", err)
	}

	query := `SELECT ` + videoColumnsAs("") + ` FROM videos` + clause +
		fmt.Sprintf(" ORDER BY %s %s, id %s", sortColumns[q.SortBy], direction, direction) +
		" LIMIT " + arg(q.Limit) + " OFFSET " + arg((q.Page-1)*q.Limit)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var video models.Video
		if err := rows.Scan(videoScanDest(&video)...); err != nil {
			return page, fmt.Errorf("scan video: %w", err)
		}
		page.Videos = append(page.Videos, video)
	}

	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("iterate videos: %w", err)
	}

	return page, nil
}

// Update applies the non-nil fields of update.
func (r *PostgresVideoRepository) Update(ctx context.Context, id string, update models.VideoUpdate) (models.Video, error) {
	if !validID(id) {
		return models.Video{}, ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var video models.Video
	row := conn.QueryRow(ctx, `
        UPDATE videos
        SET title = COALESCE($2, title),
            description = COALESCE($3, description),
            thumbnail = COALESCE($4, thumbnail),
            updated_at = now()
        WHERE id = $1
        RETURNING `+videoColumnsAs(""), id, update.Title, update.Description, update.Thumbnail)
	if err := row.Scan(videoScanDest(&video)...); err != nil {
		return models.Video{}, mapError(err, "update video")
	}
	return video, nil
}

// Delete removes a video and, by cascade, its watch history entries.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete video")
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// TogglePublish flips is_published and returns the updated video.
func (r *PostgresVideoRepository) TogglePublish(ctx context.Context, id string) (models.Video, error) {
	if !validID(id) {
		return models.Video{}, ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var video models.Video
	row := conn.QueryRow(ctx, `
        UPDATE videos
        SET is_published = NOT is_published, updated_at = now()
        WHERE id = $1
        RETURNING `+videoColumnsAs(""), id)
	if err := row.Scan(videoScanDest(&video)...); err != nil {
		return models.Video{}, mapError(err, "toggle publish")
	}
	return video, nil
}

// IncrementViews adds one view.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "increment views")
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// NormalizeVideoQuery applies listing defaults and bounds.
func NormalizeVideoQuery(q models.VideoQuery) models.VideoQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = ""
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
