package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zipwire/zipwire/pkg/models"
)

func TestNewBaseEvent_Defaults(t *testing.T) {
	base := NewBaseEvent(NodeExecutingEvent, "wf-123")

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, NodeExecutingEvent, base.Type)
	assert.False(t, base.Timestamp.IsZero())
	assert.Equal(t, "wf-123", base.WorkflowID)
	assert.Equal(t, models.DefaultGraphID, base.GraphID)
	assert.NotNil(t, base.Metadata)
}

func TestNewBaseEvent_UniqueIDs(t *testing.T) {
	first := NewBaseEvent(NodeExecutingEvent, "wf-123")
	second := NewBaseEvent(NodeExecutingEvent, "wf-123")

	assert.NotEqual(t, first.ID, second.ID)
}

func TestNodeCompleted_JSONSerialization(t *testing.T) {
	original := &NodeCompleted{
		BaseEvent:           NewBaseEvent(NodeCompletedEvent, "wf-123"),
		NodeID:              "http-node-1",
		OutgoingConnections: []string{"conn-1", "conn-2"},
		DurationMs:          420,
		OutputSizeBytes:     2048,
	}

	jsonData, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"type":"node.completed"`)
	assert.Contains(t, string(jsonData), `"node_id":"http-node-1"`)
	assert.Contains(t, string(jsonData), `"duration_ms":420`)

	var deserialized NodeCompleted

	err = json.Unmarshal(jsonData, &deserialized)
	require.NoError(t, err)

	assert.Equal(t, original.ID, deserialized.ID)
	assert.Equal(t, original.NodeID, deserialized.NodeID)
	assert.Equal(t, original.OutgoingConnections, deserialized.OutgoingConnections)
	assert.Equal(t, original.DurationMs, deserialized.DurationMs)
	assert.Equal(t, original.OutputSizeBytes, deserialized.OutputSizeBytes)
}

func TestGetType_AllVariants(t *testing.T) {
	tests := []struct {
		event    Event
		expected EventType
	}{
		{NodeExecuting{}, NodeExecutingEvent},
		{NodeCompleted{}, NodeCompletedEvent},
		{NodeFailed{}, NodeFailedEvent},
		{NodeWarning{}, NodeWarningEvent},
		{ExecutionStarted{}, ExecutionStartedEvent},
		{ExecutionCompleted{}, ExecutionCompletedEvent},
		{ExecutionFailed{}, ExecutionFailedEvent},
		{ConnectionState{}, ConnectionStateEvent},
		{WorkflowUpdated{}, WorkflowUpdatedEvent},
		{VisualStateUpdate{}, VisualStateUpdateEvent},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, tc.event.GetType())
	}
}

func TestIsExecutionEvent(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  bool
	}{
		{NodeExecutingEvent, true},
		{NodeCompletedEvent, true},
		{NodeFailedEvent, true},
		{NodeWarningEvent, true},
		{ExecutionStartedEvent, true},
		{ExecutionCompletedEvent, true},
		{ExecutionFailedEvent, true},
		{ConnectionStateEvent, false},
		{WorkflowUpdatedEvent, false},
		{VisualStateUpdateEvent, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.eventType), func(t *testing.T) {
			assert.Equal(t, tc.expected, IsExecutionEvent(tc.eventType))
		})
	}
}

func TestTraceEventTypeFor(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  models.TraceEventType
	}{
		{ExecutionStartedEvent, models.TraceEventInput},
		{NodeCompletedEvent, models.TraceEventOutput},
		{ExecutionCompletedEvent, models.TraceEventOutput},
		{NodeExecutingEvent, models.TraceEventLog},
		{NodeFailedEvent, models.TraceEventLog},
		{NodeWarningEvent, models.TraceEventLog},
		{EventType("runtime.error"), models.TraceEventError},
	}

	for _, tc := range tests {
		t.Run(string(tc.eventType), func(t *testing.T) {
			assert.Equal(t, tc.expected, TraceEventTypeFor(tc.eventType))
		})
	}
}
