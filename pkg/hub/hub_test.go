package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zipwire/zipwire/pkg/mocks"
	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
)

func newTestHub(t *testing.T) (*Hub, *mocks.MockWorkflowRepository, *mocks.MockEventBus) {
	t.Helper()

	workflows := &mocks.MockWorkflowRepository{}
	bus := &mocks.MockEventBus{}
	manager := NewManager(slog.Default(), workflows)

	return NewHub(slog.Default(), manager, workflows, bus), workflows, bus
}

func nextMessage(t *testing.T, conn *Connection) OutboundMessage {
	t.Helper()

	select {
	case raw := <-conn.Outbox():
		var msg OutboundMessage

		require.NoError(t, json.Unmarshal(raw, &msg))

		return msg
	default:
		t.Fatal("expected a queued outbound message")

		return OutboundMessage{}
	}
}

func payloadOf(t *testing.T, msg OutboundMessage) map[string]any {
	t.Helper()

	data, err := json.Marshal(msg.Payload)
	require.NoError(t, err)

	var payload map[string]any

	require.NoError(t, json.Unmarshal(data, &payload))

	return payload
}

func authenticate(t *testing.T, h *Hub, conn *Connection, workflowID string) {
	t.Helper()

	h.Manager().Admit(conn)
	h.HandleMessage(context.Background(), conn, []byte(`{"type":"auth","payload":{"workflow_id":"`+workflowID+`"}}`))

	msg := nextMessage(t, conn)
	require.Equal(t, MessageAuthSuccess, msg.Type)
}

func TestHub_AuthSuccessIncludesWorkflowState(t *testing.T) {
	h, workflows, _ := newTestHub(t)

	workflows.On("WorkflowByID", mock.Anything, "wf-1").
		Return(&models.Workflow{ID: "wf-1", Name: "Pipeline"}, nil)
	workflows.On("LatestVersion", mock.Anything, "wf-1").
		Return(&models.WorkflowVersion{
			WorkflowID: "wf-1",
			Version:    7,
			Graph:      &models.Graph{ID: models.DefaultGraphID},
		}, nil)

	conn := NewConnection("c1")
	h.Manager().Admit(conn)
	h.HandleMessage(context.Background(), conn, []byte(`{"type":"auth","payload":{"workflow_id":"wf-1"}}`))

	success := nextMessage(t, conn)
	assert.Equal(t, MessageAuthSuccess, success.Type)
	assert.Equal(t, "wf-1", payloadOf(t, success)["workflow_id"])

	state := nextMessage(t, conn)
	assert.Equal(t, MessageWorkflowState, state.Type)
	assert.Equal(t, float64(7), payloadOf(t, state)["version"])
}

func TestHub_AuthUnknownWorkflow(t *testing.T) {
	h, workflows, _ := newTestHub(t)

	workflows.On("WorkflowByID", mock.Anything, "ghost").
		Return(nil, persistence.ErrWorkflowNotFound)

	conn := NewConnection("c1")
	h.Manager().Admit(conn)
	h.HandleMessage(context.Background(), conn, []byte(`{"type":"auth","payload":{"workflow_id":"ghost"}}`))

	msg := nextMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.Equal(t, CodeAuthFailed, payloadOf(t, msg)["code"])
	assert.False(t, conn.Authenticated)
}

func TestHub_PreAuthMessagesRejected(t *testing.T) {
	h, _, bus := newTestHub(t)

	conn := NewConnection("c1")
	h.Manager().Admit(conn)

	for _, raw := range []string{
		`{"type":"runtime.event","payload":{"type":"node.executing","node_id":"n1"}}`,
		`{"type":"visual.state.update","payload":{"elements":[{"id":"n1","element_type":"node","state":"running"}]}}`,
	} {
		h.HandleMessage(context.Background(), conn, []byte(raw))

		msg := nextMessage(t, conn)
		assert.Equal(t, MessageError, msg.Type)
		assert.Equal(t, CodeNotAuthenticated, payloadOf(t, msg)["code"])
	}

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestHub_RuntimeEventFansOutToRoom(t *testing.T) {
	h, workflows, bus := newTestHub(t)

	workflows.On("WorkflowByID", mock.Anything, mock.Anything).
		Return(&models.Workflow{ID: "any"}, nil)
	workflows.On("LatestVersion", mock.Anything, mock.Anything).
		Return(nil, persistence.ErrVersionNotFound)
	bus.On("Publish", mock.Anything, "wf-1", mock.Anything).Return(nil)

	connA := NewConnection("a")
	connB := NewConnection("b")
	connC := NewConnection("c")

	authenticate(t, h, connA, "wf-1")
	authenticate(t, h, connB, "wf-1")
	authenticate(t, h, connC, "wf-2")

	h.HandleMessage(context.Background(), connA,
		[]byte(`{"type":"runtime.event","payload":{"type":"node.executing","node_id":"n1"}}`))

	// Sender gets the broadcast and then the ack.
	broadcast := nextMessage(t, connA)
	require.Equal(t, MessageZipEvent, broadcast.Type)

	ack := nextMessage(t, connA)
	assert.Equal(t, MessageEventAcknowledged, ack.Type)
	assert.Equal(t, "node.executing", payloadOf(t, ack)["type"])

	received := nextMessage(t, connB)
	require.Equal(t, MessageZipEvent, received.Type)

	payload := payloadOf(t, received)
	assert.Equal(t, "node.executing", payload["type"])
	assert.Equal(t, "n1", payload["node_id"])
	assert.Equal(t, "wf-1", payload["workflow_id"])
	assert.NotEmpty(t, payload["id"])
	assert.NotEmpty(t, payload["timestamp"])

	assert.Len(t, connC.Outbox(), 0)

	bus.AssertCalled(t, "Publish", mock.Anything, "wf-1", mock.Anything)
}

func TestHub_InvalidRuntimeEventKeepsConnectionOpen(t *testing.T) {
	h, workflows, bus := newTestHub(t)

	workflows.On("WorkflowByID", mock.Anything, "wf-1").
		Return(&models.Workflow{ID: "wf-1"}, nil)
	workflows.On("LatestVersion", mock.Anything, "wf-1").
		Return(nil, persistence.ErrVersionNotFound)

	conn := NewConnection("c1")
	authenticate(t, h, conn, "wf-1")

	h.HandleMessage(context.Background(), conn,
		[]byte(`{"type":"runtime.event","payload":{"type":"no.such.event"}}`))

	msg := nextMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.Equal(t, CodeValidationError, payloadOf(t, msg)["code"])

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)

	// Connection is still usable afterwards.
	bus.On("Publish", mock.Anything, "wf-1", mock.Anything).Return(nil)
	h.HandleMessage(context.Background(), conn,
		[]byte(`{"type":"runtime.event","payload":{"type":"node.executing","node_id":"n1"}}`))

	broadcast := nextMessage(t, conn)
	assert.Equal(t, MessageZipEvent, broadcast.Type)
}

func TestHub_VisualUpdateBroadcastAndAck(t *testing.T) {
	h, workflows, bus := newTestHub(t)

	workflows.On("WorkflowByID", mock.Anything, "wf-1").
		Return(&models.Workflow{ID: "wf-1"}, nil)
	workflows.On("LatestVersion", mock.Anything, "wf-1").
		Return(nil, persistence.ErrVersionNotFound)
	bus.On("Publish", mock.Anything, "wf-1", mock.Anything).Return(nil)

	connA := NewConnection("a")
	connB := NewConnection("b")

	authenticate(t, h, connA, "wf-1")
	authenticate(t, h, connB, "wf-1")

	h.HandleMessage(context.Background(), connA,
		[]byte(`{"type":"visual.state.update","payload":{"elements":[{"id":"n1","element_type":"node","state":"running"}]}}`))

	broadcast := nextMessage(t, connA)
	assert.Equal(t, MessageVisualUpdate, broadcast.Type)

	ack := nextMessage(t, connA)
	assert.Equal(t, MessageUpdateAcked, ack.Type)

	received := nextMessage(t, connB)
	assert.Equal(t, MessageVisualUpdate, received.Type)
}

func TestHub_UnknownMessageType(t *testing.T) {
	h, _, _ := newTestHub(t)

	conn := NewConnection("c1")
	h.Manager().Admit(conn)
	h.HandleMessage(context.Background(), conn, []byte(`{"type":"frobnicate"}`))

	msg := nextMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.Equal(t, CodeUnknownMessage, payloadOf(t, msg)["code"])
}

func TestHub_MalformedJSON(t *testing.T) {
	h, _, _ := newTestHub(t)

	conn := NewConnection("c1")
	h.Manager().Admit(conn)
	h.HandleMessage(context.Background(), conn, []byte(`{not json`))

	msg := nextMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.Equal(t, CodeValidationError, payloadOf(t, msg)["code"])
}
