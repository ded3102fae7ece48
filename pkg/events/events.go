// Package events defines the canonical event taxonomy relayed by the zipwire hub.
package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zipwire/zipwire/pkg/models"
)

type EventType string

// Event bus topic for normalized hub events.
const Topic = "zipwire.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Node progress events reported by runtimes.
	NodeExecutingEvent EventType = "node.executing"
	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.failed"
	NodeWarningEvent   EventType = "node.warning"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"

	// Editor-facing state events.
	ConnectionStateEvent   EventType = "connection.state"
	WorkflowUpdatedEvent   EventType = "workflow.updated"
	VisualStateUpdateEvent EventType = "visual.state.update"
)

// Event is the closed union of hub event variants. Every variant embeds
// BaseEvent and overrides GetType.
type Event interface {
	GetType() EventType
	GetID() string
	GetWorkflowID() string
	GetTimestamp() time.Time
}

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	GraphID    string         `json:"graph_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (b BaseEvent) GetID() string           { return b.ID }
func (b BaseEvent) GetWorkflowID() string   { return b.WorkflowID }
func (b BaseEvent) GetTimestamp() time.Time { return b.Timestamp }

// NodeExecuting signals that a runtime began executing a node. Incoming
// connections are the wire ids feeding the node, used by the editor to
// animate data flow.
type NodeExecuting struct {
	BaseEvent

	NodeID              string   `json:"node_id"`
	IncomingConnections []string `json:"incoming_connections,omitempty"`
}

func (e NodeExecuting) GetType() EventType {
	return NodeExecutingEvent
}

type NodeCompleted struct {
	BaseEvent

	NodeID              string   `json:"node_id"`
	OutgoingConnections []string `json:"outgoing_connections,omitempty"`
	DurationMs          int64    `json:"duration_ms,omitempty"`
	OutputSizeBytes     int64    `json:"output_size_bytes,omitempty"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	NodeID              string   `json:"node_id"`
	OutgoingConnections []string `json:"outgoing_connections,omitempty"`
	Error               string   `json:"error"`
	DurationMs          int64    `json:"duration_ms,omitempty"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type NodeWarning struct {
	BaseEvent

	NodeID              string   `json:"node_id"`
	OutgoingConnections []string `json:"outgoing_connections,omitempty"`
	Warning             string   `json:"warning"`
	DurationMs          int64    `json:"duration_ms,omitempty"`
}

func (e NodeWarning) GetType() EventType {
	return NodeWarningEvent
}

type ExecutionStarted struct {
	BaseEvent

	SessionID    string `json:"session_id"`
	WorkflowName string `json:"workflow_name"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	SessionID     string         `json:"session_id"`
	DurationMs    int64          `json:"duration_ms"`
	NodesExecuted int            `json:"nodes_executed"`
	Summary       map[string]any `json:"summary,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	SessionID  string `json:"session_id"`
	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// ConnectionState reports the visual state of a single wire-level link.
type ConnectionState struct {
	BaseEvent

	ConnectionID string             `json:"connection_id"`
	State        models.VisualState `json:"state"`
}

func (e ConnectionState) GetType() EventType {
	return ConnectionStateEvent
}

// WorkflowUpdated carries a full graph snapshot for state sync.
type WorkflowUpdated struct {
	BaseEvent

	Version int64        `json:"version"`
	Graph   *models.Graph `json:"graph"`
}

func (e WorkflowUpdated) GetType() EventType {
	return WorkflowUpdatedEvent
}

// VisualStateUpdate is ephemeral UI feedback. It is broadcast but never
// persisted or counted as execution progress.
type VisualStateUpdate struct {
	BaseEvent

	Elements []models.VisualElementState `json:"elements"`
}

func (e VisualStateUpdate) GetType() EventType {
	return VisualStateUpdateEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		GraphID:    models.DefaultGraphID,
		Metadata:   make(map[string]any),
	}
}

// IsExecutionEvent reports whether events of the given type belong to a
// trace session. Visual feedback and wire-state events are transient and
// never persisted.
func IsExecutionEvent(t EventType) bool {
	switch t {
	case NodeExecutingEvent, NodeCompletedEvent, NodeFailedEvent, NodeWarningEvent,
		ExecutionStartedEvent, ExecutionCompletedEvent, ExecutionFailedEvent:
		return true
	case ConnectionStateEvent, WorkflowUpdatedEvent, VisualStateUpdateEvent:
		return false
	}

	return false
}

// TraceEventTypeFor derives the replay classification from the event name:
// names containing "error" map to error, "start" to input, "success" or
// "complete" to output, everything else to log.
func TraceEventTypeFor(t EventType) models.TraceEventType {
	name := string(t)

	switch {
	case strings.Contains(name, "error"):
		return models.TraceEventError
	case strings.Contains(name, "start"):
		return models.TraceEventInput
	case strings.Contains(name, "success"), strings.Contains(name, "complete"):
		return models.TraceEventOutput
	default:
		return models.TraceEventLog
	}
}
