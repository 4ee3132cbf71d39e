package store

import (
	"context"
	"fmt"

	"github.com/virulabs/nexus/internal/models"
)

// AppendMessage persists one chat turn or mission event. Append-only:
// messages are never edited or retracted.
func (s *Store) AppendMessage(ctx context.Context, userID string, projectID *string, role, agent, content string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (user_id, project_id, role, agent, content)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, projectID, role, agent, content,
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// History returns a user's most recent messages in chronological order.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, project_id, role, agent, content, created_at
		FROM (
			SELECT id, user_id, project_id, role, agent, content, created_at
			FROM messages
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MissionEventsSince returns mission log events for a project with id
// greater than afterID, in append order. Used by the stream endpoint to
// push new events to watchers.
func (s *Store) MissionEventsSince(ctx context.Context, projectID string, afterID int64) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, project_id, role, agent, content, created_at
		FROM messages
		WHERE project_id = $1 AND agent = $2 AND id > $3
		ORDER BY id ASC
	`, projectID, models.AgentAutopilot, afterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mission events: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

type messageRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanMessages(rows messageRows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.ProjectID, &m.Role, &m.Agent, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// MissionLog adapts the message table to the autopilot mission log sink.
type MissionLog struct {
	store *Store
}

// MissionLog returns the append-only mission event sink backed by the
// messages table.
func (s *Store) MissionLog() *MissionLog {
	return &MissionLog{store: s}
}

// Append records one mission event as an AI message tagged AUTOPILOT.
func (l *MissionLog) Append(ctx context.Context, projectID, userID, event string) error {
	return l.store.AppendMessage(ctx, userID, &projectID, models.RoleAI, models.AgentAutopilot, event)
}

// Stats summarizes the database for the admin console.
type Stats struct {
	Projects int64 `json:"projects"`
	Users    int64 `json:"users"`
	Messages int64 `json:"messages"`
}

// Stats returns row counts plus the most recently updated projects.
func (s *Store) Stats(ctx context.Context) (*Stats, []models.Project, error) {
	var stats Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM projects),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM messages)
	`).Scan(&stats.Projects, &stats.Users, &stats.Messages)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query stats: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, path, created_at, updated_at
		FROM projects
		ORDER BY updated_at DESC
		LIMIT 5
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query recent projects: %w", err)
	}
	defer rows.Close()

	var recent []models.Project
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(&project.ID, &project.UserID, &project.Name, &project.Path, &project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan project: %w", err)
		}
		recent = append(recent, project)
	}
	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return &stats, recent, nil
}
