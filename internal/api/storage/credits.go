package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// DeductCredits runs the deduct_credits procedure. Success=false with a message means the
// balance was too low; the procedure owns the arithmetic.
func (s *Storage) DeductCredits(ctx context.Context, userID string, amount int) (*model.Deduction, error) {
	var d model.Deduction
	query := `SELECT success, new_credits, error_message FROM deduct_credits($1, $2)`
	if err := s.db.GetContext(ctx, &d, query, userID, amount); err != nil {
		return nil, fmt.Errorf("failed to deduct credits: %w", err)
	}
	return &d, nil
}

// ConvertWallet runs convert_wallet_to_credits. A nil amount converts the whole wallet.
func (s *Storage) ConvertWallet(ctx context.Context, userID string, amountUSD *float64) (*model.WalletConversion, error) {
	var w model.WalletConversion
	query := `
		SELECT success, credits_added, new_wallet_balance, new_credits, error_message
		FROM convert_wallet_to_credits($1, $2)
	`
	if err := s.db.GetContext(ctx, &w, query, userID, amountUSD); err != nil {
		return nil, fmt.Errorf("failed to convert wallet: %w", err)
	}
	return &w, nil
}

// AwardCredits adds entry.Amount to the user's balance, optionally updates the subscription
// and writes the ledger row, all in one transaction. Returns the new balance.
func (s *Storage) AwardCredits(ctx context.Context, entry model.LedgerEntry, sub *model.SubscriptionUpdate) (int, error) {
	var balance int
	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		balance, err = awardTx(ctx, tx, entry, sub)
		return err
	})
	return balance, err
}

func awardTx(ctx context.Context, tx *sqlx.Tx, entry model.LedgerEntry, sub *model.SubscriptionUpdate) (int, error) {
	var balance int
	query := `
		UPDATE users
		SET credits = credits + $2, updated_at = NOW()
		WHERE clerk_user_id = $1
		RETURNING credits
	`
	if err := tx.GetContext(ctx, &balance, query, entry.UserID, entry.Amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to add credits: %w", err)
	}

	if sub != nil {
		if err := updateUserSubscription(ctx, tx, entry.UserID, *sub); err != nil {
			return 0, err
		}
	}

	entry.BalanceAfter = &balance
	if err := insertLedger(ctx, tx, entry); err != nil {
		return 0, err
	}
	return balance, nil
}

// RedeemCode awards a promo code once per user. A second redemption returns ErrAlreadyRedeemed.
func (s *Storage) RedeemCode(ctx context.Context, userID, code string, credits int) (int, error) {
	var balance int
	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO code_redemptions (clerk_user_id, code, credits_awarded, redeemed_at)
			VALUES ($1, $2, $3, NOW())
		`, userID, code, credits)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyRedeemed
			}
			return fmt.Errorf("failed to record redemption: %w", err)
		}

		balance, err = awardTx(ctx, tx, model.LedgerEntry{
			UserID:      userID,
			Amount:      credits,
			Type:        domain.TxCreditAward,
			Status:      domain.TxStatusSuccess,
			Description: fmt.Sprintf("Redeemed code %s", code),
			Metadata:    map[string]any{"code": code},
		}, nil)
		return err
	})
	return balance, err
}

// LogCreditTransaction writes a ledger row without touching balances
func (s *Storage) LogCreditTransaction(ctx context.Context, entry model.LedgerEntry) error {
	return insertLedger(ctx, s.db, entry)
}

func insertLedger(ctx context.Context, ex sqlx.ExecerContext, entry model.LedgerEntry) error {
	meta := entry.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	query := `
		INSERT INTO credit_transactions (
			user_id, amount, balance_after, type, status, description, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW()
		)
	`
	_, err = ex.ExecContext(ctx, query,
		entry.UserID,
		entry.Amount,
		entry.BalanceAfter,
		entry.Type,
		entry.Status,
		entry.Description,
		metaJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to log credit transaction: %w", err)
	}
	return nil
}

func (s *Storage) ListCreditTransactions(ctx context.Context, userID string, page Page) ([]model.CreditTransaction, error) {
	query := `
		SELECT id, user_id, amount, balance_after, type, status, description, metadata, created_at
		FROM credit_transactions
		WHERE user_id = $1
	`
	query, args := page.keyset(query, []any{userID}, "created_at", "id")

	var txs []model.CreditTransaction
	if err := s.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	return txs, nil
}

// HasProcessedPayment reports whether a ledger row already carries this provider id and event
func (s *Storage) HasProcessedPayment(ctx context.Context, razorpayID, eventType string) (bool, error) {
	filter, err := json.Marshal(map[string]string{"razorpay_id": razorpayID, "event_type": eventType})
	if err != nil {
		return false, fmt.Errorf("failed to marshal idempotency filter: %w", err)
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM credit_transactions WHERE metadata @> $1::jsonb)`
	if err := s.db.GetContext(ctx, &exists, query, string(filter)); err != nil {
		return false, fmt.Errorf("failed to check processed payment: %w", err)
	}
	return exists, nil
}
