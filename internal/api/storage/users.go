package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/jmoiron/sqlx"
)

const userColumns = `
	clerk_user_id, username, email, avatar_url, credits, wallet_balance,
	subscription_status, subscription_plan, subscription_id, subscription_end,
	razorpay_customer_id, created_at, updated_at`

func (s *Storage) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	query := `SELECT` + userColumns + ` FROM users WHERE clerk_user_id = $1`
	if err := s.db.GetContext(ctx, &u, query, userID); err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

// GetUsername returns the stored username, or "" when the user has none
func (s *Storage) GetUsername(ctx context.Context, userID string) (string, error) {
	var name *string
	err := s.db.GetContext(ctx, &name, `SELECT username FROM users WHERE clerk_user_id = $1`, userID)
	if err != nil {
		return "", notFound(err, "user")
	}
	if name == nil {
		return "", nil
	}
	return *name, nil
}

func (s *Storage) FindUserByRazorpayCustomer(ctx context.Context, customerID string) (*model.User, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer: %w", domain.ErrNotFound)
	}
	var u model.User
	query := `SELECT` + userColumns + ` FROM users WHERE razorpay_customer_id = $1 LIMIT 1`
	if err := s.db.GetContext(ctx, &u, query, customerID); err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

// UpsertUser creates or refreshes a user from the identity provider. Balances are never touched.
func (s *Storage) UpsertUser(ctx context.Context, u model.UserUpsert) error {
	query := `
		INSERT INTO users (
			clerk_user_id, username, email, first_name, last_name, avatar_url,
			created_at, updated_at
		) VALUES (
			$1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
			NOW(), NOW()
		)
		ON CONFLICT (clerk_user_id) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, users.username),
			email = COALESCE(EXCLUDED.email, users.email),
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			avatar_url = COALESCE(EXCLUDED.avatar_url, users.avatar_url),
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, u.ClerkUserID, u.Username, u.Email, u.FirstName, u.LastName, u.AvatarURL)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE clerk_user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	return nil
}

// subscriptionSets renders the SET list for the non-nil fields of upd, numbering from argIdx
func subscriptionSets(upd model.SubscriptionUpdate, argIdx int) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, v)
		argIdx++
	}

	if upd.Status != nil {
		add("subscription_status", *upd.Status)
	}
	if upd.Plan != nil {
		add("subscription_plan", *upd.Plan)
	}
	if upd.ID != nil {
		add("subscription_id", *upd.ID)
	}
	if upd.CustomerID != nil {
		add("razorpay_customer_id", *upd.CustomerID)
	}
	if upd.Start != nil {
		add("subscription_start", *upd.Start)
	}
	if upd.End != nil {
		add("subscription_end", *upd.End)
	}
	sets = append(sets, "updated_at = NOW()")
	return sets, args
}

func (s *Storage) UpdateUserSubscription(ctx context.Context, userID string, upd model.SubscriptionUpdate) error {
	return updateUserSubscription(ctx, s.db, userID, upd)
}

func updateUserSubscription(ctx context.Context, ex sqlx.ExecerContext, userID string, upd model.SubscriptionUpdate) error {
	sets, args := subscriptionSets(upd, 2)
	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE clerk_user_id = $1"

	res, err := ex.ExecContext(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	return nil
}

// UpdateSubscriptionByID updates every user holding subscriptionID and reports how many matched
func (s *Storage) UpdateSubscriptionByID(ctx context.Context, subscriptionID string, upd model.SubscriptionUpdate) (int64, error) {
	sets, args := subscriptionSets(upd, 2)
	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE subscription_id = $1"

	res, err := s.db.ExecContext(ctx, query, append([]any{subscriptionID}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("failed to update subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
