package video

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"viewsphere/internal/db"
	"viewsphere/internal/errs"
)

const videoColumns = `id, owner_id, title, description, video_url, thumbnail, duration, views, is_published, created_at, updated_at`

type Repository struct {
	pool db.Pool
}

func NewRepository(pool db.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPublished returns published videos, newest first.
func (r *Repository) ListPublished(ctx context.Context, limit, offset int) ([]Video, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+videoColumns+`
		FROM videos
		WHERE is_published
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	videos := make([]Video, 0)
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoURL, &v.Thumbnail,
			&v.Duration, &v.Views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

func (r *Repository) Create(ctx context.Context, v *Video) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	v.ID = id.String()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err = r.pool.Exec(ctx, `
		INSERT INTO videos (id, owner_id, title, description, video_url, thumbnail, duration, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, v.ID, v.OwnerID, v.Title, v.Description, v.VideoURL, v.Thumbnail, v.Duration, v.IsPublished, now)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// Update mutates title/description/publication state; only the owner's row
// matches.
func (r *Repository) Update(ctx context.Context, id, ownerID string, input UpdateInput) (Video, error) {
	var v Video
	err := r.pool.QueryRow(ctx, `
		UPDATE videos
		SET title = COALESCE(NULLIF($3, ''), title),
		    description = COALESCE(NULLIF($4, ''), description),
		    is_published = COALESCE($5, is_published),
		    updated_at = $6
		WHERE id = $1 AND owner_id = $2
		RETURNING `+videoColumns,
		id, ownerID, input.Title, input.Description, input.IsPublished, time.Now().UTC()).
		Scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoURL, &v.Thumbnail,
			&v.Duration, &v.Views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Video{}, fmt.Errorf("update video: %w", errs.ErrNotFound)
	}
	if err != nil {
		return Video{}, fmt.Errorf("update video: %w", err)
	}

	return v, nil
}

func (r *Repository) Delete(ctx context.Context, id, ownerID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete video: %w", errs.ErrNotFound)
	}

	return nil
}
