package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/whowillhear/server/internal/models"
)

const trackColumns = `id, name, artist, external_id, category, fun_fact, guesses_count`

func scanTrack(row pgx.Row) (*models.Track, error) {
	var t models.Track
	err := row.Scan(
		&t.ID, &t.Name, &t.Artist, &t.ExternalID,
		&t.Category, &t.FunFact, &t.GuessesCount,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTrack adds a catalog row and fills in the assigned id.
func InsertTrack(ctx context.Context, t *models.Track) error {
	q := `
	INSERT INTO tracks (name, artist, external_id, category, fun_fact, guesses_count)
	VALUES ($1, $2, $3, $4, $5, 0)
	RETURNING id
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, t.Name, t.Artist, t.ExternalID, t.Category, t.FunFact).Scan(&t.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// GetTrack fetches a catalog row by id.
func GetTrack(ctx context.Context, trackID int64) (*models.Track, error) {
	q := `SELECT ` + trackColumns + ` FROM tracks WHERE id=$1`
	return scanTrack(DB.QueryRow(ctx, q, trackID))
}

// RandomTracks draws n distinct catalog rows in random order. Room creation
// uses this to build each room's fixed playlist.
func RandomTracks(ctx context.Context, n int) ([]*models.Track, error) {
	q := `SELECT ` + trackColumns + ` FROM tracks ORDER BY random() LIMIT $1`
	rows, err := DB.Query(ctx, q, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// DistractorNames draws n random track names excluding one, for the decoy
// answers of a round.
func DistractorNames(ctx context.Context, n int, exclude string) ([]string, error) {
	q := `SELECT name FROM tracks WHERE name <> $1 ORDER BY random() LIMIT $2`
	rows, err := DB.Query(ctx, q, exclude, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// IncrementGuessCount bumps a track's popularity counter after a round.
func IncrementGuessCount(ctx context.Context, trackID int64) error {
	q := `UPDATE tracks SET guesses_count = guesses_count + 1 WHERE id=$1`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, trackID)
		return err
	})
}

// InsertTrackInRoom records a track's membership in a room along with the
// metadata snapshot captured at creation time.
func InsertTrackInRoom(ctx context.Context, tir *models.TrackInRoom) error {
	q := `
	INSERT INTO tracks_in_rooms (track_id, room_id, audio_preview, image_url, base_color, explicit)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			tir.TrackID, tir.RoomID, tir.AudioPreview,
			tir.ImageURL, tir.BaseColor, tir.Explicit,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert track %d into room %d: %w", tir.TrackID, tir.RoomID, err)
	}
	return nil
}

// GetRoomTracks returns a room's playlist in insertion order with the catalog
// rows joined in.
func GetRoomTracks(ctx context.Context, roomID int64) ([]*models.TrackInRoom, error) {
	q := `
	SELECT tir.track_id, tir.room_id, tir.audio_preview, tir.image_url, tir.base_color, tir.explicit,
	       t.id, t.name, t.artist, t.external_id, t.category, t.fun_fact, t.guesses_count
	FROM tracks_in_rooms tir
	JOIN tracks t ON t.id = tir.track_id
	WHERE tir.room_id = $1
	ORDER BY tir.track_id
	`
	rows, err := DB.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.TrackInRoom
	for rows.Next() {
		tir := models.TrackInRoom{Track: &models.Track{}}
		err := rows.Scan(
			&tir.TrackID, &tir.RoomID, &tir.AudioPreview,
			&tir.ImageURL, &tir.BaseColor, &tir.Explicit,
			&tir.Track.ID, &tir.Track.Name, &tir.Track.Artist, &tir.Track.ExternalID,
			&tir.Track.Category, &tir.Track.FunFact, &tir.Track.GuessesCount,
		)
		if err != nil {
			return nil, err
		}
		list = append(list, &tir)
	}
	return list, rows.Err()
}
