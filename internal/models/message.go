package models

import (
	"time"
)

// Message roles.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// AgentAutopilot tags mission log messages so they can be filtered
// out of regular chat history and streamed to mission watchers.
const AgentAutopilot = "AUTOPILOT"

// Message represents one chat turn or mission log event. Mission events
// are ordinary messages with Agent == AgentAutopilot; the sequence id
// preserves append order.
type Message struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ProjectID *string   `json:"project_id,omitempty" db:"project_id"`
	Role      string    `json:"role" db:"role"`
	Agent     string    `json:"agent,omitempty" db:"agent"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
