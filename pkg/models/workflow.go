// Package models defines the core domain models shared by the zipwire sync hub.
package models

import "time"

// Workflow is the editor-side document the hub authenticates runtimes against.
// CRUD over workflows lives outside the hub; only lookup is consumed here.
type Workflow struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"      validate:"required,min=1"`
	Namespace string         `json:"namespace"`
	Owner     string         `json:"owner"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// WorkflowVersion is one persisted revision of a workflow graph, served by
// the collaborative document store and re-broadcast by the hub on change.
type WorkflowVersion struct {
	WorkflowID string         `json:"workflow_id" validate:"required"`
	Version    int64          `json:"version"`
	Graph      *Graph         `json:"graph"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
