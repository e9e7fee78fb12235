package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/auth"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const tokenColumns = `id, clerk_user_id, name, is_active, last_used_at, expires_at, created_at`

// CreatePluginToken stores a new token unless the user already holds the maximum active ones
func (s *Storage) CreatePluginToken(ctx context.Context, userID, name, token string, expiresAt *time.Time) (*model.PluginToken, error) {
	var created model.PluginToken

	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		// serialize concurrent creates for the same user
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
			return fmt.Errorf("failed to lock tokens: %w", err)
		}

		var active int
		if err := tx.GetContext(ctx, &active, `
			SELECT COUNT(*) FROM plugin_tokens WHERE clerk_user_id = $1 AND is_active = TRUE
		`, userID); err != nil {
			return fmt.Errorf("failed to count tokens: %w", err)
		}
		if active >= domain.MaxActivePluginTokens {
			return domain.ErrTokenLimit
		}

		err := tx.GetContext(ctx, &created, `
			INSERT INTO plugin_tokens (clerk_user_id, token, name, is_active, expires_at, created_at)
			VALUES ($1, $2, $3, TRUE, $4, NOW())
			RETURNING `+tokenColumns, userID, token, name, expiresAt)
		if err != nil {
			return fmt.Errorf("failed to create token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Storage) ListPluginTokens(ctx context.Context, userID string) ([]model.PluginToken, error) {
	var tokens []model.PluginToken
	query := `SELECT ` + tokenColumns + ` FROM plugin_tokens WHERE clerk_user_id = $1 ORDER BY created_at DESC`
	if err := s.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

// RevokePluginToken deactivates one of the user's tokens
func (s *Storage) RevokePluginToken(ctx context.Context, userID, tokenID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE plugin_tokens SET is_active = FALSE WHERE id = $1 AND clerk_user_id = $2
	`, tokenID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("token: %w", domain.ErrNotFound)
	}
	return nil
}

// ValidatePluginToken runs validate_plugin_token, which also enforces plugin rate limits and
// updates last_used_at
func (s *Storage) ValidatePluginToken(ctx context.Context, token string) (*auth.PluginValidation, error) {
	var v auth.PluginValidation
	query := `SELECT is_valid, user_id, token_id, access_tier, error_message FROM validate_plugin_token($1)`
	if err := s.db.GetContext(ctx, &v, query, token); err != nil {
		return nil, fmt.Errorf("failed to validate plugin token: %w", err)
	}
	return &v, nil
}
