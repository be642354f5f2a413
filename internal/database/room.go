package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/whowillhear/server/internal/models"
)

// InsertRoom creates a new room row and fills in the assigned id and creation
// time. Status must already be set by the caller.
func InsertRoom(ctx context.Context, room *models.Room) error {
	q := `
	INSERT INTO rooms (host_id, "limit", song_duration, password, status)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q,
			room.HostID, room.Limit, room.SongDuration, room.Password, room.Status,
		).Scan(&room.ID, &room.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

// GetRoom fetches a room row by id, without relations.
func GetRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	var r models.Room
	q := `
	SELECT id, host_id, "limit", song_duration, password, status, created_at
	FROM rooms
	WHERE id = $1
	`
	err := DB.QueryRow(ctx, q, roomID).Scan(
		&r.ID, &r.HostID, &r.Limit, &r.SongDuration,
		&r.Password, &r.Status, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRoomWithRelations fetches a room along with its roster and track list,
// the full shape a joining client needs.
func GetRoomWithRelations(ctx context.Context, roomID int64) (*models.Room, error) {
	room, err := GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Participants, err = GetParticipants(ctx, roomID); err != nil {
		return nil, err
	}
	if room.Tracks, err = GetRoomTracks(ctx, roomID); err != nil {
		return nil, err
	}
	return room, nil
}

// UpdateRoomStatus advances a room's status with a compare-and-swap: the write
// only lands if the row still holds the status the caller transitioned from.
// A concurrent writer losing the race gets an error instead of silently
// rewinding the lifecycle.
func UpdateRoomStatus(ctx context.Context, roomID int64, from, to string) error {
	q := `UPDATE rooms SET status=$1 WHERE id=$2 AND status=$3`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, to, roomID, from)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("room %d status is no longer %q", roomID, from)
		}
		return nil
	})
}

// InsertParticipant adds a user to a room's roster. The id is generated here
// if the caller left it zero.
func InsertParticipant(ctx context.Context, p *models.Participant) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate participant id: %w", err)
		}
		p.ID = id
	}

	q := `
	INSERT INTO participants (id, room_id, user_id, score)
	VALUES ($1, $2, $3, 0)
	`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, p.ID, p.RoomID, p.UserID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

// GetParticipantByRoomAndUser returns a user's existing membership in a room,
// or pgx.ErrNoRows. Join flows use this so rejoining never duplicates a seat.
func GetParticipantByRoomAndUser(ctx context.Context, roomID, userID int64) (*models.Participant, error) {
	var p models.Participant
	q := `
	SELECT id, room_id, user_id, score
	FROM participants
	WHERE room_id=$1 AND user_id=$2
	`
	err := DB.QueryRow(ctx, q, roomID, userID).Scan(&p.ID, &p.RoomID, &p.UserID, &p.Score)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetParticipants returns a room's roster with user display snapshots.
func GetParticipants(ctx context.Context, roomID int64) ([]*models.Participant, error) {
	q := `
	SELECT p.id, p.room_id, p.user_id, p.score,
	       u.id, u.name, u.image, u.is_guest
	FROM participants p
	JOIN users u ON u.id = p.user_id
	WHERE p.room_id = $1
	ORDER BY p.score DESC, p.id
	`
	rows, err := DB.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p := models.Participant{User: &models.User{}}
		err := rows.Scan(
			&p.ID, &p.RoomID, &p.UserID, &p.Score,
			&p.User.ID, &p.User.Name, &p.User.Image, &p.User.IsGuest,
		)
		if err != nil {
			return nil, err
		}
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}

// AddParticipantScore accumulates points onto a participant's running score.
func AddParticipantScore(ctx context.Context, participantID uuid.UUID, points int) error {
	q := `UPDATE participants SET score = score + $1 WHERE id=$2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, points, participantID)
		return err
	})
}

// RemoveParticipant deletes a roster row, used when someone leaves the lobby
// before the game starts.
func RemoveParticipant(ctx context.Context, participantID uuid.UUID) error {
	q := `DELETE FROM participants WHERE id=$1`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, participantID)
		return err
	})
}
