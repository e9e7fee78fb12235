package storage

import (
	"context"
	"fmt"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const stationColumns = `
	id, clerk_user_id, username, title, cover_url, is_live, listener_count,
	current_track_id, current_track_title, current_track_image, started_at, updated_at`

func (s *Storage) GetStation(ctx context.Context, stationID string) (*model.Station, error) {
	return s.getStation(ctx, `WHERE id = $1`, stationID)
}

func (s *Storage) GetStationByUserID(ctx context.Context, userID string) (*model.Station, error) {
	return s.getStation(ctx, `WHERE clerk_user_id = $1`, userID)
}

// GetLiveStationByUsername only matches stations that are on air
func (s *Storage) GetLiveStationByUsername(ctx context.Context, username string) (*model.Station, error) {
	return s.getStation(ctx, `WHERE username = $1 AND is_live = TRUE`, username)
}

func (s *Storage) getStation(ctx context.Context, where string, arg any) (*model.Station, error) {
	var st model.Station
	if err := s.db.GetContext(ctx, &st, `SELECT`+stationColumns+` FROM live_stations `+where, arg); err != nil {
		return nil, notFound(err, "station")
	}
	return &st, nil
}

func (s *Storage) ListLiveStations(ctx context.Context) ([]model.Station, error) {
	var stations []model.Station
	query := `SELECT` + stationColumns + ` FROM live_stations WHERE is_live = TRUE ORDER BY started_at DESC`
	if err := s.db.SelectContext(ctx, &stations, query); err != nil {
		return nil, fmt.Errorf("failed to list live stations: %w", err)
	}
	return stations, nil
}

// UpsertStation records a go-live or go-offline. Going offline resets the listener count and
// clears the listener rows.
func (s *Storage) UpsertStation(ctx context.Context, in model.StationUpsert) (*model.Station, error) {
	var st model.Station

	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO live_stations (
				clerk_user_id, username, title, is_live, listener_count,
				current_track_id, current_track_title, current_track_image,
				started_at, updated_at
			) VALUES (
				$1, $2, $3, $4, 0,
				$5, $6, $7,
				CASE WHEN $4 THEN NOW() END, NOW()
			)
			ON CONFLICT (clerk_user_id) DO UPDATE SET
				username = EXCLUDED.username,
				title = COALESCE(EXCLUDED.title, live_stations.title),
				is_live = EXCLUDED.is_live,
				listener_count = CASE WHEN EXCLUDED.is_live THEN live_stations.listener_count ELSE 0 END,
				current_track_id = EXCLUDED.current_track_id,
				current_track_title = EXCLUDED.current_track_title,
				current_track_image = EXCLUDED.current_track_image,
				started_at = CASE
					WHEN NOT EXCLUDED.is_live THEN NULL
					WHEN live_stations.is_live THEN live_stations.started_at
					ELSE NOW()
				END,
				updated_at = NOW()
			RETURNING` + stationColumns

		err := tx.GetContext(ctx, &st, query,
			in.UserID,
			in.Username,
			in.Title,
			in.IsLive,
			in.CurrentTrackID,
			in.CurrentTrackTitle,
			in.CurrentTrackImage,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert station: %w", err)
		}

		if !in.IsLive {
			if _, err := tx.ExecContext(ctx, `DELETE FROM station_listeners WHERE station_id = $1`, st.ID); err != nil {
				return fmt.Errorf("failed to clear listeners: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}
