package storage

import (
	"context"
	"fmt"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const chatColumns = `id, clerk_user_id, message_type, content, generation_type, generation_id, result, timestamp`

// ListChatMessages returns the user's chat history oldest first
func (s *Storage) ListChatMessages(ctx context.Context, userID string) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	query := `SELECT ` + chatColumns + ` FROM chat_messages WHERE clerk_user_id = $1 ORDER BY timestamp ASC`
	if err := s.db.SelectContext(ctx, &msgs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return msgs, nil
}

// AppendChatMessage inserts msg and fills in its id and timestamp
func (s *Storage) AppendChatMessage(ctx context.Context, msg *model.ChatMessage) error {
	return insertChat(ctx, s.db, msg)
}

type rowQueryer interface {
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

func insertChat(ctx context.Context, q rowQueryer, msg *model.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (
			clerk_user_id, message_type, content, generation_type, generation_id, result, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, COALESCE($7, NOW())
		)
		RETURNING id, timestamp
	`

	var ts any
	if !msg.Timestamp.IsZero() {
		ts = msg.Timestamp
	}
	var result any
	if len(msg.Result) > 0 {
		result = msg.Result
	}

	err := q.QueryRowxContext(ctx, query,
		msg.ClerkUserID,
		msg.MessageType,
		msg.Content,
		msg.GenerationType,
		msg.GenerationID,
		result,
		ts,
	).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

// ReplaceChatMessages swaps the whole history for msgs in one transaction
func (s *Storage) ReplaceChatMessages(ctx context.Context, userID string, msgs []model.ChatMessage) error {
	return postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE clerk_user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to clear chat messages: %w", err)
		}
		for i := range msgs {
			msgs[i].ClerkUserID = userID
			if err := insertChat(ctx, tx, &msgs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) ClearChatMessages(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE clerk_user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear chat messages: %w", err)
	}
	return nil
}
