package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zipwire/zipwire/pkg/eventbus"
	"github.com/zipwire/zipwire/pkg/events"
	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
)

// Hub wires inbound connection messages to the connection manager and the
// event pipeline. Per connection the state machine is
// Connected -> Authenticated -> Disconnected; protected messages before
// authentication are rejected and the connection stays open.
type Hub struct {
	logger    *slog.Logger
	manager   *Manager
	workflows persistence.WorkflowRepository
	bus       eventbus.EventPublisher
	validate  *validator.Validate
	tracer    trace.Tracer
}

// NewHub creates the relay orchestrator.
func NewHub(logger *slog.Logger, manager *Manager, workflows persistence.WorkflowRepository, bus eventbus.EventPublisher) *Hub {
	return &Hub{
		logger:    logger.With("module", "hub"),
		manager:   manager,
		workflows: workflows,
		bus:       bus,
		validate:  validator.New(),
		tracer:    otel.Tracer("zipwire/hub"),
	}
}

// Manager exposes the connection manager for transports and the reconciler.
func (h *Hub) Manager() *Manager {
	return h.manager
}

// HandleMessage processes one inbound message from a connection. Replies are
// queued on the connection's outbox; handling never blocks on storage or
// outbound network I/O.
func (h *Hub) HandleMessage(ctx context.Context, conn *Connection, raw []byte) {
	var msg InboundMessage

	err := json.Unmarshal(raw, &msg)
	if err != nil {
		h.sendError(conn, CodeValidationError, "malformed message", nil)

		return
	}

	switch msg.Type {
	case MessageAuth:
		h.handleAuth(ctx, conn, msg.Payload)
	case MessageRuntimeEvent:
		h.handleRuntimeEvent(ctx, conn, msg.Payload)
	case MessageVisualUpdate:
		h.handleVisualUpdate(ctx, conn, msg.Payload)
	default:
		h.sendError(conn, CodeUnknownMessage, "unknown message type: "+string(msg.Type), nil)
	}
}

// HandleDisconnect removes the connection. In-flight pipeline work already
// scheduled is allowed to complete; no new work is accepted.
func (h *Hub) HandleDisconnect(conn *Connection) {
	h.manager.Remove(conn.ID)
}

func (h *Hub) handleAuth(ctx context.Context, conn *Connection, raw json.RawMessage) {
	var payload AuthPayload

	err := json.Unmarshal(raw, &payload)
	if err == nil {
		err = h.validate.Struct(payload)
	}

	if err != nil {
		h.sendError(conn, CodeValidationError, "invalid auth payload", err.Error())

		return
	}

	_, err = h.manager.Authenticate(ctx, conn.ID, payload.WorkflowID, payload.Namespace, payload.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyAuthenticated):
			h.sendError(conn, CodeAlreadyAuthenticated, "connection is already authenticated", nil)
		case persistence.IsWorkflowNotFound(err):
			h.sendError(conn, CodeAuthFailed, "workflow not found: "+payload.WorkflowID, nil)
		default:
			h.logger.ErrorContext(ctx, "Authentication failed", "connection_id", conn.ID, "error", err)
			h.sendError(conn, CodeInternalError, "authentication failed", nil)
		}

		return
	}

	h.sendMessage(conn, OutboundMessage{
		Type:    MessageAuthSuccess,
		Payload: AuthSuccessPayload{WorkflowID: payload.WorkflowID},
	})

	h.sendWorkflowState(ctx, conn, payload.WorkflowID)
}

// sendWorkflowState delivers the current full workflow state to a freshly
// authenticated connection. A workflow without a persisted version has no
// state to send.
func (h *Hub) sendWorkflowState(ctx context.Context, conn *Connection, workflowID string) {
	version, err := h.workflows.LatestVersion(ctx, workflowID)
	if err != nil {
		if !persistence.IsVersionNotFound(err) {
			h.logger.ErrorContext(ctx, "Failed to load workflow state", "workflow_id", workflowID, "error", err)
		}

		return
	}

	event := events.WorkflowUpdated{
		BaseEvent: events.NewBaseEvent(events.WorkflowUpdatedEvent, workflowID),
		Version:   version.Version,
		Graph:     version.Graph,
	}

	h.sendMessage(conn, OutboundMessage{Type: MessageWorkflowState, Payload: event})
}

func (h *Hub) handleRuntimeEvent(ctx context.Context, conn *Connection, raw json.RawMessage) {
	if !conn.Authenticated {
		h.sendError(conn, CodeNotAuthenticated, "authenticate before sending events", nil)

		return
	}

	var payload map[string]any

	err := json.Unmarshal(raw, &payload)
	if err != nil {
		h.sendError(conn, CodeValidationError, "invalid event payload", nil)

		return
	}

	rawType, _ := payload["type"].(string)

	event, err := events.Normalize(rawType, conn.WorkflowID, payload)
	if err != nil {
		if events.IsValidationError(err) {
			h.sendError(conn, CodeValidationError, err.Error(), nil)
		} else {
			h.logger.ErrorContext(ctx, "Event normalization failed", "event_type", rawType, "error", err)
			h.sendError(conn, CodeInternalError, "failed to process event", nil)
		}

		return
	}

	h.Relay(ctx, conn.WorkflowID, event)

	h.sendMessage(conn, OutboundMessage{
		Type:    MessageEventAcknowledged,
		Payload: AckPayload{Type: rawType, Timestamp: time.Now().UTC()},
	})
}

func (h *Hub) handleVisualUpdate(ctx context.Context, conn *Connection, raw json.RawMessage) {
	if !conn.Authenticated {
		h.sendError(conn, CodeNotAuthenticated, "authenticate before sending updates", nil)

		return
	}

	var payload VisualUpdatePayload

	err := json.Unmarshal(raw, &payload)
	if err == nil {
		err = h.validate.Struct(payload)
	}

	if err != nil {
		h.sendError(conn, CodeValidationError, "invalid visual state payload", err.Error())

		return
	}

	event := events.VisualStateUpdate{
		BaseEvent: events.NewBaseEvent(events.VisualStateUpdateEvent, conn.WorkflowID),
		Elements:  payload.Elements,
	}

	h.Relay(ctx, conn.WorkflowID, event)

	h.sendMessage(conn, OutboundMessage{
		Type:    MessageUpdateAcked,
		Payload: AckPayload{Type: string(events.VisualStateUpdateEvent), Timestamp: time.Now().UTC()},
	})
}

// Relay broadcasts the event to the workflow room and publishes it to the
// event bus for the persistence and webhook consumers. Broadcast happens
// first so live viewers never wait on downstream I/O.
func (h *Hub) Relay(ctx context.Context, workflowID string, event events.Event) {
	ctx, span := h.tracer.Start(ctx, "hub.relay", trace.WithAttributes(
		attribute.String("workflow.id", workflowID),
		attribute.String("event.type", string(event.GetType())),
	))
	defer span.End()

	envelope := OutboundMessage{Type: envelopeFor(event.GetType()), Payload: event}
	delivered := h.manager.Broadcast(workflowID, mustMarshal(envelope))

	span.SetAttributes(attribute.Int("broadcast.delivered", delivered))

	err := h.bus.Publish(ctx, workflowID, event)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "Failed to publish event",
			"workflow_id", workflowID, "event_type", event.GetType(), "error", err)
	}
}

func envelopeFor(eventType events.EventType) MessageType {
	switch eventType {
	case events.WorkflowUpdatedEvent:
		return MessageWorkflowState
	case events.VisualStateUpdateEvent:
		return MessageVisualUpdate
	default:
		return MessageZipEvent
	}
}

func (h *Hub) sendMessage(conn *Connection, message OutboundMessage) {
	if !conn.Send(mustMarshal(message)) {
		h.logger.Warn("Dropped reply for slow connection", "connection_id", conn.ID, "message_type", message.Type)
	}
}

func (h *Hub) sendError(conn *Connection, code, message string, details any) {
	h.sendMessage(conn, OutboundMessage{
		Type:    MessageError,
		Payload: ErrorPayload{Code: code, Message: message, Details: details},
	})
}

// StateEvent builds the workflow.updated event for a version snapshot. Used
// by the reconciler's full-state sync.
func StateEvent(workflowID string, version *models.WorkflowVersion) events.WorkflowUpdated {
	return events.WorkflowUpdated{
		BaseEvent: events.NewBaseEvent(events.WorkflowUpdatedEvent, workflowID),
		Version:   version.Version,
		Graph:     version.Graph,
	}
}
