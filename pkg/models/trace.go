package models

import "time"

// SessionStatus represents the lifecycle state of a trace session.
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// SessionNodeID is the sentinel node id for session-level trace events.
const SessionNodeID = "workflow"

// TraceSession is a time-bounded, replayable record of one workflow
// execution. At most one running session per workflow is assumed; the hub
// reuses the most recent running session instead of creating duplicates.
type TraceSession struct {
	ID           string         `json:"id"`
	WorkflowID   string         `json:"workflow_id"   validate:"required"`
	WorkflowName string         `json:"workflow_name"`
	Owner        string         `json:"owner"`
	Status       SessionStatus  `json:"status"        validate:"required"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      *time.Time     `json:"ended_at,omitempty"`
	Summary      SessionSummary `json:"summary"`
}

// SessionSummary is the running aggregate maintained while events append.
// DurationSamples counts the events carrying a node duration so the
// average can be folded incrementally.
type SessionSummary struct {
	EventCount        int     `json:"event_count"`
	TotalDataBytes    int64   `json:"total_data_bytes"`
	AvgNodeDurationMs float64 `json:"avg_node_duration_ms"`
	DurationSamples   int     `json:"duration_samples,omitempty"`
}

// TraceEventType classifies persisted events for replay consumers.
type TraceEventType string

const (
	TraceEventInput  TraceEventType = "input"
	TraceEventOutput TraceEventType = "output"
	TraceEventError  TraceEventType = "error"
	TraceEventLog    TraceEventType = "log"
)

// TraceEvent is one append-only entry in a trace session. Never updated
// after it is written; deleted only by session cascade.
type TraceEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id" validate:"required"`
	Timestamp time.Time      `json:"timestamp"`
	NodeID    string         `json:"node_id"`
	EventType TraceEventType `json:"event_type" validate:"required"`
	Data      TraceData      `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TraceData carries either the full payload or a truncated preview of it.
type TraceData struct {
	SizeBytes    int64  `json:"size_bytes"`
	DeclaredType string `json:"declared_type"`
	Payload      any    `json:"payload,omitempty"`
	Preview      string `json:"preview,omitempty"`
	Truncated    bool   `json:"truncated"`
}
