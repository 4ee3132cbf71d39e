package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virulabs/nexus/internal/models"
)

// CreateProject inserts a project row. Path is relative to the workspace
// root; directory creation is the caller's concern.
func (s *Store) CreateProject(ctx context.Context, userID, name, path string) (*models.Project, error) {
	var project models.Project

	err := s.pool.QueryRow(ctx,
		`INSERT INTO projects (id, user_id, name, path)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, name, path, created_at, updated_at`,
		uuid.New(), userID, name, path,
	).Scan(&project.ID, &project.UserID, &project.Name, &project.Path, &project.CreatedAt, &project.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return &project, nil
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project

	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, path, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, id).Scan(&project.ID, &project.UserID, &project.Name, &project.Path, &project.CreatedAt, &project.UpdatedAt)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("project not found")
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// ListProjects returns a user's projects, most recently updated first.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, path, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(&project.ID, &project.UserID, &project.Name, &project.Path, &project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}
