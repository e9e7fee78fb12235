package storage

import (
	"context"
	"fmt"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
)

func (s *Storage) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == followingID {
		return domain.Invalid("You cannot follow yourself")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_follows (follower_id, following_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (follower_id, following_id) DO NOTHING
	`, followerID, followingID)
	if err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}
	return nil
}

func (s *Storage) Unfollow(ctx context.Context, followerID, followingID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM user_follows WHERE follower_id = $1 AND following_id = $2
	`, followerID, followingID)
	if err != nil {
		return fmt.Errorf("failed to unfollow: %w", err)
	}
	return nil
}

func (s *Storage) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	query := `
		SELECT
			u.clerk_user_id, u.username, u.avatar_url,
			(SELECT COUNT(*) FROM user_follows WHERE following_id = u.clerk_user_id) AS follower_count,
			(SELECT COUNT(*) FROM user_follows WHERE follower_id = u.clerk_user_id) AS following_count
		FROM users u
		WHERE u.clerk_user_id = $1
	`
	if err := s.db.GetContext(ctx, &p, query, userID); err != nil {
		return nil, notFound(err, "profile")
	}
	return &p, nil
}
