// Package model defines the core memory data types.
package model

import "time"

// Memory represents one persisted unit of agent knowledge.
type Memory struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Project    string    `json:"project,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

// Session represents a bounded span of agent activity tied to a project.
type Session struct {
	ID        string     `json:"id"`
	Project   string     `json:"project"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	ToolCalls int        `json:"tool_calls"`
}

// Session status values. A session moves from active to completed once
// and never back.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
)

// ValidTypes are the allowed memory types.
var ValidTypes = map[string]bool{
	"observation": true,
	"bugfix":      true,
	"feature":     true,
	"decision":    true,
	"learning":    true,
}

// ProtectedTypes are never removed by eviction.
var ProtectedTypes = map[string]bool{
	"decision": true,
}
