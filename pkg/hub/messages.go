package hub

import (
	"encoding/json"
	"time"

	"github.com/zipwire/zipwire/pkg/models"
)

// MessageType names a protocol envelope on the wire.
type MessageType string

// Inbound message types.
const (
	MessageAuth         MessageType = "auth"
	MessageRuntimeEvent MessageType = "runtime.event"
	MessageVisualUpdate MessageType = "visual.state.update"
)

// Outbound message types.
const (
	MessageAuthSuccess       MessageType = "auth.success"
	MessageError             MessageType = "error"
	MessageZipEvent          MessageType = "zip.event"
	MessageWorkflowState     MessageType = "workflow.state"
	MessageEventAcknowledged MessageType = "event.acknowledged"
	MessageUpdateAcked       MessageType = "update.acknowledged"
)

// InboundMessage is the envelope every client message arrives in.
type InboundMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundMessage is the envelope every server message leaves in.
type OutboundMessage struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// AuthPayload is the payload of an auth message.
type AuthPayload struct {
	WorkflowID string         `json:"workflow_id" validate:"required"`
	Namespace  string         `json:"namespace,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// VisualUpdatePayload is the payload of an inbound visual.state.update.
type VisualUpdatePayload struct {
	Elements []models.VisualElementState `json:"elements" validate:"required,min=1,dive"`
}

// AuthSuccessPayload acknowledges a successful authentication.
type AuthSuccessPayload struct {
	WorkflowID string `json:"workflow_id"`
}

// ErrorPayload reports a protocol error to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// AckPayload acknowledges an accepted runtime event or visual update.
type AckPayload struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func mustMarshal(message OutboundMessage) []byte {
	data, err := json.Marshal(message)
	if err != nil {
		// Outbound payloads are our own types; marshal cannot fail on them.
		panic(err)
	}

	return data
}
