package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/whowillhear/server/internal/auth"
	"github.com/whowillhear/server/internal/models"
)

// CreateUser inserts a full (credentialed) user row and fills in the assigned id.
func CreateUser(ctx context.Context, user *models.User) error {
	hash, err := auth.CreateHash(user.Password, auth.Params)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	q := `INSERT INTO users (name, email, password, image, is_guest, is_admin)
	      VALUES ($1, $2, $3, $4, false, $5)
	      RETURNING id`

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q,
			user.Name, user.Email, user.Password, user.Image, user.IsAdmin,
		).Scan(&user.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// CreateGuestUser inserts a credential-less guest row and fills in the id.
func CreateGuestUser(ctx context.Context, user *models.User) error {
	user.IsGuest = true
	q := `INSERT INTO users (name, email, password, image, is_guest, is_admin)
	      VALUES ($1, '', '', $2, true, false)
	      RETURNING id`

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, user.Name, user.Image).Scan(&user.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to insert guest user: %w", err)
	}
	return nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, name, email, password, image, is_guest, is_admin
	FROM users
	WHERE email=$1
	`
	err := DB.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Name, &u.Email, &u.Password, &u.Image,
		&u.IsGuest, &u.IsAdmin,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, name, email, password, image, is_guest, is_admin
	FROM users
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.Password, &u.Image,
		&u.IsGuest, &u.IsAdmin,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AuthenticateUser verifies credentials and mints a session token.
func AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	user, err := GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("user not found or db error: %w", err)
	}

	match, err := auth.ComparePasswordAndHash(password, user.Password)
	if err != nil || !match {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.CreateJWT(user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to create jwt: %w", err)
	}

	return token, nil
}

// ClaimGuestUser upgrades a guest row into a full account: credentials are
// attached in place so the user keeps their id and any scores earned as a
// guest. Fails if the row is not a guest.
func ClaimGuestUser(ctx context.Context, id int64, name, email, password string) (*models.User, error) {
	hash, err := auth.CreateHash(password, auth.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	q := `
	UPDATE users
	SET name=$1, email=$2, password=$3, is_guest=false
	WHERE id=$4 AND is_guest=true
	`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, execErr := tx.Exec(ctx, q, name, email, hash, id)
		if execErr != nil {
			return execErr
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("user %d is not a claimable guest", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetUserByID(ctx, id)
}
