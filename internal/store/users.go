package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virulabs/nexus/internal/models"
)

// CreateUser inserts a new operator account.
func (s *Store) CreateUser(ctx context.Context, username, hashedPassword string) (*models.User, error) {
	var user models.User

	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, hashed_password)
		 VALUES ($1, $2, $3)
		 RETURNING id, username, hashed_password, tier, created_at`,
		uuid.New(), username, hashedPassword,
	).Scan(&user.ID, &user.Username, &user.HashedPassword, &user.Tier, &user.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// GetUserByUsername looks a user up for login.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User

	err := s.pool.QueryRow(ctx, `
		SELECT id, username, hashed_password, tier, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.HashedPassword, &user.Tier, &user.CreatedAt)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// ListUsers returns all accounts, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, hashed_password, tier, created_at
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.HashedPassword, &user.Tier, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// SetUserTier updates a user's subscription tier.
func (s *Store) SetUserTier(ctx context.Context, userID, tier string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET tier = $2 WHERE id = $1`, userID, tier)
	if err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}
