package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// Marketplace sort orders
const (
	EarnSortTrending       = "trending"
	EarnSortLatest         = "latest"
	EarnSortMostDownloaded = "most_downloaded"
)

const earnListLimit = 100

// EarnTrackFilter selects marketplace listings
type EarnTrackFilter struct {
	Sort   string
	Genre  string
	Search string
}

func (s *Storage) ListEarnTracks(ctx context.Context, filter EarnTrackFilter) ([]model.EarnTrack, error) {
	query := `
		SELECT m.id, m.title, m.audio_url, m.image_url, m.user_id, m.genre,
		       COALESCE(m.plays, 0) AS plays, COALESCE(m.likes, 0) AS likes,
		       COALESCE(m.downloads, 0) AS downloads,
		       COALESCE(m.earn_price, 4) AS earn_price,
		       COALESCE(m.artist_share, 2) AS artist_share,
		       COALESCE(m.admin_share, 2) AS admin_share,
		       COALESCE(u.username, 'Unknown') AS username, u.avatar_url, m.created_at
		FROM combined_media m
		LEFT JOIN users u ON u.clerk_user_id = m.user_id
		WHERE m.listed_on_earn = TRUE`
	var args []any

	if filter.Genre != "" {
		args = append(args, "%"+likeEscape(filter.Genre)+"%")
		query += fmt.Sprintf(" AND m.genre ILIKE $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+likeEscape(filter.Search)+"%")
		query += fmt.Sprintf(" AND m.title ILIKE $%d", len(args))
	}

	switch filter.Sort {
	case EarnSortMostDownloaded:
		query += " ORDER BY m.downloads DESC NULLS LAST"
	case EarnSortLatest:
		query += " ORDER BY m.created_at DESC"
	default:
		query += " ORDER BY m.plays DESC NULLS LAST"
	}
	query += fmt.Sprintf(" LIMIT %d", earnListLimit)

	var tracks []model.EarnTrack
	if err := s.db.SelectContext(ctx, &tracks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list earn tracks: %w", err)
	}
	return tracks, nil
}

func likeEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListEarnSales returns the marketplace sales of userID, newest first. Listing fees are not
// sales and are left out.
func (s *Storage) ListEarnSales(ctx context.Context, userID string) ([]model.EarnTransaction, error) {
	query := `
		SELECT t.id, t.buyer_id, t.seller_id, t.track_id, t.total_cost, t.artist_share,
		       t.split_stems, COALESCE(t.transaction_type, 'purchase') AS transaction_type,
		       COALESCE(u.username, 'Unknown') AS counterparty,
		       COALESCE(m.title, 'Unknown Track') AS track_title, t.created_at
		FROM earn_transactions t
		LEFT JOIN users u ON u.clerk_user_id = t.buyer_id
		LEFT JOIN combined_media m ON m.id = t.track_id
		WHERE t.seller_id = $1 AND COALESCE(t.transaction_type, 'purchase') <> 'listing'
		ORDER BY t.created_at DESC
		LIMIT $2
	`
	var txs []model.EarnTransaction
	if err := s.db.SelectContext(ctx, &txs, query, userID, earnListLimit); err != nil {
		return nil, fmt.Errorf("failed to list earn sales: %w", err)
	}
	return txs, nil
}

// ListEarnPurchases returns the marketplace purchases of userID, newest first
func (s *Storage) ListEarnPurchases(ctx context.Context, userID string) ([]model.EarnTransaction, error) {
	query := `
		SELECT t.id, t.buyer_id, t.seller_id, t.track_id, t.total_cost, t.artist_share,
		       t.split_stems, COALESCE(t.transaction_type, 'purchase') AS transaction_type,
		       COALESCE(u.username, 'Unknown') AS counterparty,
		       COALESCE(m.title, 'Unknown Track') AS track_title, t.created_at
		FROM earn_transactions t
		LEFT JOIN users u ON u.clerk_user_id = t.seller_id
		LEFT JOIN combined_media m ON m.id = t.track_id
		WHERE t.buyer_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2
	`
	var txs []model.EarnTransaction
	if err := s.db.SelectContext(ctx, &txs, query, userID, earnListLimit); err != nil {
		return nil, fmt.Errorf("failed to list earn purchases: %w", err)
	}
	return txs, nil
}

type earnParty struct {
	ClerkUserID        string  `db:"clerk_user_id"`
	Credits            int     `db:"credits"`
	SubscriptionStatus *string `db:"subscription_status"`
}

// PurchaseTrack moves the download price from buyer to artist, counts the download and records
// the sale, all in one transaction. Both user rows are locked in key order so crossed purchases
// cannot deadlock.
func (s *Storage) PurchaseTrack(ctx context.Context, buyerID, trackID string, splitStems bool) (*model.EarnPurchase, error) {
	var out *model.EarnPurchase
	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var track struct {
			UserID string  `db:"user_id"`
			Title  *string `db:"title"`
		}
		err := tx.GetContext(ctx, &track, `SELECT user_id, title FROM combined_media WHERE id = $1`, trackID)
		if err != nil {
			return notFound(err, "track")
		}

		var parties []earnParty
		err = tx.SelectContext(ctx, &parties, `
			SELECT clerk_user_id, credits, subscription_status
			FROM users
			WHERE clerk_user_id IN ($1, $2)
			ORDER BY clerk_user_id
			FOR UPDATE
		`, buyerID, track.UserID)
		if err != nil {
			return fmt.Errorf("failed to lock users: %w", err)
		}

		var buyer, artist *earnParty
		for i := range parties {
			if parties[i].ClerkUserID == buyerID {
				buyer = &parties[i]
			}
			if parties[i].ClerkUserID == track.UserID {
				artist = &parties[i]
			}
		}

		if buyer == nil {
			return fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		if buyer.SubscriptionStatus == nil || !domain.IsSubscribed(*buyer.SubscriptionStatus) {
			return domain.ErrSubscriptionRequired
		}
		if track.UserID == buyerID {
			return domain.Invalid("Cannot purchase your own track")
		}

		cost := domain.EarnDownloadCost
		if splitStems {
			cost += domain.EarnStemsCost
		}
		if buyer.Credits < cost {
			return domain.ErrInsufficientCredits
		}
		if artist == nil {
			return errors.New("artist account not found")
		}

		var buyerBalance, artistBalance int
		if err := tx.GetContext(ctx, &buyerBalance, `
			UPDATE users SET credits = credits - $2, updated_at = NOW()
			WHERE clerk_user_id = $1
			RETURNING credits
		`, buyerID, cost); err != nil {
			return fmt.Errorf("failed to deduct buyer credits: %w", err)
		}
		if err := tx.GetContext(ctx, &artistBalance, `
			UPDATE users SET credits = credits + $2, updated_at = NOW()
			WHERE clerk_user_id = $1
			RETURNING credits
		`, track.UserID, cost); err != nil {
			return fmt.Errorf("failed to credit artist: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE combined_media SET downloads = COALESCE(downloads, 0) + 1 WHERE id = $1
		`, trackID); err != nil {
			return fmt.Errorf("failed to count download: %w", err)
		}

		var txID string
		if err := tx.GetContext(ctx, &txID, `
			INSERT INTO earn_transactions (
				buyer_id, seller_id, track_id, total_cost, artist_share, admin_share,
				split_stems, transaction_type, created_at
			) VALUES ($1, $2, $3, $4, $4, 0, $5, 'purchase', NOW())
			RETURNING id
		`, buyerID, track.UserID, trackID, cost, splitStems); err != nil {
			return fmt.Errorf("failed to record earn transaction: %w", err)
		}

		title := "track"
		if track.Title != nil && *track.Title != "" {
			title = *track.Title
		}
		meta := map[string]any{"earn_transaction_id": txID, "track_id": trackID, "split_stems": splitStems}
		if err := insertLedger(ctx, tx, model.LedgerEntry{
			UserID:       buyerID,
			Amount:       -cost,
			BalanceAfter: &buyerBalance,
			Type:         domain.TxEarnPurchase,
			Status:       domain.TxStatusSuccess,
			Description:  fmt.Sprintf("Downloaded %s", title),
			Metadata:     meta,
		}); err != nil {
			return err
		}
		if err := insertLedger(ctx, tx, model.LedgerEntry{
			UserID:       track.UserID,
			Amount:       cost,
			BalanceAfter: &artistBalance,
			Type:         domain.TxEarnSale,
			Status:       domain.TxStatusSuccess,
			Description:  fmt.Sprintf("Sale of %s", title),
			Metadata:     meta,
		}); err != nil {
			return err
		}

		out = &model.EarnPurchase{
			TransactionID: txID,
			TotalCost:     cost,
			ArtistShare:   cost,
			NewCredits:    buyerBalance,
		}

		if splitStems {
			var jobID string
			if err := tx.GetContext(ctx, &jobID, `
				INSERT INTO earn_split_jobs (track_id, user_id, status, created_at)
				VALUES ($1, $2, 'queued', NOW())
				RETURNING id
			`, trackID, buyerID); err != nil {
				return fmt.Errorf("failed to queue stem split: %w", err)
			}
			out.SplitJobID = &jobID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
