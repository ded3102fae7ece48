package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError describes a malformed inbound message. The hub reports it
// to the sender; it never fails the relay.
type ValidationError struct {
	EventType string
	Causes    []string
}

func (e *ValidationError) Error() string {
	if len(e.Causes) == 0 {
		return fmt.Sprintf("invalid %s event", e.EventType)
	}

	return fmt.Sprintf("invalid %s event: %s", e.EventType, strings.Join(e.Causes, "; "))
}

// IsValidationError checks if an error indicates a malformed inbound message.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// Normalize validates a raw runtime message against the schema for rawType
// and constructs the canonical Event. Pure: no I/O, no persistence, no
// broadcast. The returned event always carries a generated id, a timestamp,
// the caller's workflow id, and a graph id defaulted when omitted.
func Normalize(rawType, workflowID string, payload map[string]any) (Event, error) {
	eventType := EventType(rawType)

	schema, known := rawSchemas[eventType]
	if !known {
		return nil, &ValidationError{
			EventType: rawType,
			Causes:    []string{"unknown event type"},
		}
	}

	if payload == nil {
		payload = map[string]any{}
	}

	err := validatePayload(eventType, schema, payload)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &ValidationError{EventType: rawType, Causes: []string{err.Error()}}
	}

	base := normalizedBase(eventType, workflowID, payload)

	return decodeVariant(eventType, base, data)
}

// decodeVariant is the single exhaustive switch over the closed event union.
func decodeVariant(eventType EventType, base BaseEvent, data []byte) (Event, error) {
	switch eventType {
	case NodeExecutingEvent:
		var e NodeExecuting

		return fill(&e, &e.BaseEvent, base, data)
	case NodeCompletedEvent:
		var e NodeCompleted

		return fill(&e, &e.BaseEvent, base, data)
	case NodeFailedEvent:
		var e NodeFailed

		return fill(&e, &e.BaseEvent, base, data)
	case NodeWarningEvent:
		var e NodeWarning

		return fill(&e, &e.BaseEvent, base, data)
	case ExecutionStartedEvent:
		var e ExecutionStarted

		return fill(&e, &e.BaseEvent, base, data)
	case ExecutionCompletedEvent:
		var e ExecutionCompleted

		return fill(&e, &e.BaseEvent, base, data)
	case ExecutionFailedEvent:
		var e ExecutionFailed

		return fill(&e, &e.BaseEvent, base, data)
	case ConnectionStateEvent:
		var e ConnectionState

		return fill(&e, &e.BaseEvent, base, data)
	case WorkflowUpdatedEvent:
		var e WorkflowUpdated

		return fill(&e, &e.BaseEvent, base, data)
	case VisualStateUpdateEvent:
		var e VisualStateUpdate

		return fill(&e, &e.BaseEvent, base, data)
	}

	return nil, &ValidationError{EventType: string(eventType), Causes: []string{"unknown event type"}}
}

// fill decodes the payload into the variant, then stamps the normalized base
// over whatever base fields the raw payload happened to carry.
func fill(event Event, embedded *BaseEvent, base BaseEvent, data []byte) (Event, error) {
	err := json.Unmarshal(data, event)
	if err != nil {
		return nil, &ValidationError{EventType: string(base.Type), Causes: []string{err.Error()}}
	}

	*embedded = base

	return event, nil
}

func normalizedBase(eventType EventType, workflowID string, payload map[string]any) BaseEvent {
	base := NewBaseEvent(eventType, workflowID)

	if graphID, ok := payload["graph_id"].(string); ok && graphID != "" {
		base.GraphID = graphID
	}

	if raw, ok := payload["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			base.Timestamp = parsed.UTC()
		}
	}

	if metadata, ok := payload["metadata"].(map[string]any); ok {
		base.Metadata = metadata
	}

	return base
}

func validatePayload(eventType EventType, schema, payload map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return &ValidationError{EventType: string(eventType), Causes: []string{err.Error()}}
	}

	if !result.Valid() {
		causes := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			causes = append(causes, desc.String())
		}

		return &ValidationError{EventType: string(eventType), Causes: causes}
	}

	return nil
}
