package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/whowillhear/server/internal/models"
)

// InsertQuiz creates a quiz row. The track list is embedded as JSON so the
// quiz keeps playing even if catalog rows change underneath it.
func InsertQuiz(ctx context.Context, quiz *models.Quiz) error {
	if quiz.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate quiz id: %w", err)
		}
		quiz.ID = id
	}

	tracks, err := json.Marshal(quiz.Tracks)
	if err != nil {
		return fmt.Errorf("failed to marshal quiz tracks: %w", err)
	}

	q := `
	INSERT INTO quizzes (id, name, image, by_user_name, by_user_id, tracks, visits, completes, top_score)
	VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0)
	RETURNING created_at
	`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q,
			quiz.ID, quiz.Name, quiz.Image, quiz.ByUserName, quiz.ByUserID, tracks,
		).Scan(&quiz.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to insert quiz: %w", err)
	}
	return nil
}

// GetQuiz fetches a quiz by id.
func GetQuiz(ctx context.Context, quizID uuid.UUID) (*models.Quiz, error) {
	var quiz models.Quiz
	var tracks []byte
	q := `
	SELECT id, name, image, by_user_name, by_user_id, tracks, visits, completes, top_score, created_at
	FROM quizzes
	WHERE id = $1
	`
	err := DB.QueryRow(ctx, q, quizID).Scan(
		&quiz.ID, &quiz.Name, &quiz.Image, &quiz.ByUserName, &quiz.ByUserID,
		&tracks, &quiz.Visits, &quiz.Completes, &quiz.TopScore, &quiz.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tracks, &quiz.Tracks); err != nil {
		return nil, fmt.Errorf("failed to decode quiz tracks: %w", err)
	}
	return &quiz, nil
}

// IncrementQuizVisits bumps the visit counter when a quiz is opened.
func IncrementQuizVisits(ctx context.Context, quizID uuid.UUID) error {
	q := `UPDATE quizzes SET visits = visits + 1 WHERE id=$1`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, quizID)
		return err
	})
}

// CompleteQuiz records a finished playthrough: the completion counter always
// advances, and the top score only ever rises.
func CompleteQuiz(ctx context.Context, quizID uuid.UUID, score int) error {
	q := `
	UPDATE quizzes
	SET completes = completes + 1,
	    top_score = GREATEST(top_score, $1)
	WHERE id=$2
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, score, quizID)
		return err
	})
}
