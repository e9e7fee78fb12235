package storage

import (
	"context"
	"fmt"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const mediaColumns = `
	id, user_id, title, type, audio_url, image_url, video_url, prompt, genre,
	plays, likes, is_public, created_at`

func (s *Storage) GetMedia(ctx context.Context, mediaID string) (*model.Media, error) {
	var m model.Media
	if err := s.db.GetContext(ctx, &m, `SELECT`+mediaColumns+` FROM combined_media WHERE id = $1`, mediaID); err != nil {
		return nil, notFound(err, "media")
	}
	return &m, nil
}

func (s *Storage) GetMediaOwner(ctx context.Context, mediaID string) (*model.MediaOwner, error) {
	var o model.MediaOwner
	if err := s.db.GetContext(ctx, &o, `SELECT user_id, plays FROM combined_media WHERE id = $1`, mediaID); err != nil {
		return nil, notFound(err, "media")
	}
	return &o, nil
}

// IncrementPlayCount runs increment_play_count and returns the new count
func (s *Storage) IncrementPlayCount(ctx context.Context, mediaID string) (int, error) {
	var plays int
	if err := s.db.GetContext(ctx, &plays, `SELECT increment_play_count($1)`, mediaID); err != nil {
		return 0, fmt.Errorf("failed to increment play count: %w", err)
	}
	return plays, nil
}

// mediaTables holds every table a user's media id can live in. Songs and images keep their
// own ids and need not be mirrored in combined_media.
var mediaTables = []string{"songs", "images", "combined_media"}

// DeleteMedia removes a media item owned by userID from every table it lives in. An id that
// exists only under another owner yields ErrForbidden; an unknown id yields ErrNotFound.
func (s *Storage) DeleteMedia(ctx context.Context, userID, mediaID string) error {
	return postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var deleted int64
		for _, table := range mediaTables {
			query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND user_id = $2", table)
			res, err := tx.ExecContext(ctx, query, mediaID, userID)
			if err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			deleted += n
		}
		if deleted > 0 {
			return nil
		}

		var exists bool
		query := `
			SELECT EXISTS (
				SELECT 1 FROM songs WHERE id = $1
				UNION ALL SELECT 1 FROM images WHERE id = $1
				UNION ALL SELECT 1 FROM combined_media WHERE id = $1
			)
		`
		if err := tx.GetContext(ctx, &exists, query, mediaID); err != nil {
			return fmt.Errorf("failed to look up media: %w", err)
		}
		if exists {
			return fmt.Errorf("media %s: %w", mediaID, domain.ErrForbidden)
		}
		return fmt.Errorf("media: %w", domain.ErrNotFound)
	})
}

// ToggleLike flips the user's like on a media item and recounts likes from user_likes
func (s *Storage) ToggleLike(ctx context.Context, userID, mediaID string) (bool, int, error) {
	var liked bool
	var count int

	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM user_likes WHERE user_id = $1 AND release_id = $2`, userID, mediaID)
		if err != nil {
			return fmt.Errorf("failed to remove like: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_likes (user_id, release_id, created_at) VALUES ($1, $2, NOW())
			`, userID, mediaID); err != nil {
				return fmt.Errorf("failed to add like: %w", err)
			}
			liked = true
		}

		err = tx.GetContext(ctx, &count, `
			UPDATE combined_media
			SET likes = (SELECT COUNT(*) FROM user_likes WHERE release_id = $1)
			WHERE id = $1
			RETURNING likes
		`, mediaID)
		if err != nil {
			return notFound(err, "media")
		}
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

// MediaFilter selects a user's media, newest first
type MediaFilter struct {
	UserID string
	Type   string
	Page   Page
}

func (s *Storage) ListMedia(ctx context.Context, filter MediaFilter) ([]model.Media, error) {
	query := `SELECT` + mediaColumns + ` FROM combined_media WHERE user_id = $1`
	args := []any{filter.UserID}

	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", len(args)+1)
		args = append(args, filter.Type)
	}
	query, args = filter.Page.keyset(query, args, "created_at", "id")

	var media []model.Media
	if err := s.db.SelectContext(ctx, &media, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	return media, nil
}
