// Package sessions persists execution events into replayable trace sessions.
package sessions

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zipwire/zipwire/pkg/eventbus"
	"github.com/zipwire/zipwire/pkg/events"
	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
)

// Payloads above this size are stored as a truncated preview instead of the
// full body.
const (
	maxTracePayloadBytes = 8192
	previewBytes         = 1024
)

// Service is the session store consumer. It runs behind the event bus so the
// broadcast path never waits on persistence; every persistence failure is
// logged and swallowed.
type Service struct {
	logger    *slog.Logger
	sessions  persistence.SessionRepository
	workflows persistence.WorkflowRepository
}

// NewService creates the trace session service.
func NewService(logger *slog.Logger, sessions persistence.SessionRepository, workflows persistence.WorkflowRepository) *Service {
	return &Service{
		logger:    logger.With("module", "sessions"),
		sessions:  sessions,
		workflows: workflows,
	}
}

// Register subscribes the service to every execution-class event type.
func (s *Service) Register(bus eventbus.EventSubscriber) error {
	executionTypes := []events.EventType{
		events.NodeExecutingEvent,
		events.NodeCompletedEvent,
		events.NodeFailedEvent,
		events.NodeWarningEvent,
		events.ExecutionStartedEvent,
		events.ExecutionCompletedEvent,
		events.ExecutionFailedEvent,
	}

	for _, eventType := range executionTypes {
		err := bus.Handle(eventType, s.handleEvent)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) handleEvent(ctx context.Context, event interface{}) error {
	evt, ok := event.(events.Event)
	if !ok {
		return nil
	}

	s.Record(ctx, evt)

	return nil
}

// Record persists one execution event into its workflow's running trace
// session. Non-execution events are ignored. Errors never propagate; the
// trace record is secondary to the live relay.
func (s *Service) Record(ctx context.Context, event events.Event) {
	if !events.IsExecutionEvent(event.GetType()) {
		return
	}

	switch v := event.(type) {
	case *events.ExecutionStarted:
		s.recordStart(ctx, v)
	case *events.ExecutionCompleted:
		s.complete(ctx, v.WorkflowID, v.SessionID, models.SessionStatusCompleted, v.Timestamp)
	case *events.ExecutionFailed:
		s.complete(ctx, v.WorkflowID, v.SessionID, models.SessionStatusFailed, v.Timestamp)
	case *events.NodeExecuting:
		s.recordNode(ctx, event, v.NodeID, 0)
	case *events.NodeCompleted:
		s.recordNode(ctx, event, v.NodeID, v.DurationMs)
	case *events.NodeFailed:
		s.recordNode(ctx, event, v.NodeID, v.DurationMs)
	case *events.NodeWarning:
		s.recordNode(ctx, event, v.NodeID, v.DurationMs)
	}
}

func (s *Service) recordStart(ctx context.Context, event *events.ExecutionStarted) {
	sessionID, err := s.EnsureRunningSession(ctx, event.WorkflowID, event.WorkflowName, event.SessionID, event.Timestamp)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to ensure trace session",
			"workflow_id", event.WorkflowID, "error", err)

		return
	}

	s.append(ctx, sessionID, event, models.SessionNodeID, 0)
}

func (s *Service) recordNode(ctx context.Context, event events.Event, nodeID string, durationMs int64) {
	sessionID, err := s.EnsureRunningSession(ctx, event.GetWorkflowID(), "", "", event.GetTimestamp())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to ensure trace session",
			"workflow_id", event.GetWorkflowID(), "error", err)

		return
	}

	s.append(ctx, sessionID, event, nodeID, durationMs)
}

// EnsureRunningSession returns the most recent running session for the
// workflow, creating one when none exists. preferredID seeds the new
// session's id when the runtime supplied one.
func (s *Service) EnsureRunningSession(ctx context.Context, workflowID, workflowName, preferredID string, startedAt time.Time) (string, error) {
	session, err := s.sessions.RunningSessionByWorkflow(ctx, workflowID)
	if err == nil {
		return session.ID, nil
	}

	if !persistence.IsNoRunningSession(err) {
		return "", err
	}

	sessionID := preferredID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	owner := ""

	workflow, err := s.workflows.WorkflowByID(ctx, workflowID)
	if err == nil {
		owner = workflow.Owner

		if workflowName == "" {
			workflowName = workflow.Name
		}
	} else if !persistence.IsWorkflowNotFound(err) {
		s.logger.WarnContext(ctx, "Failed to resolve workflow owner",
			"workflow_id", workflowID, "error", err)
	}

	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	err = s.sessions.CreateSession(ctx, &models.TraceSession{
		ID:           sessionID,
		WorkflowID:   workflowID,
		WorkflowName: workflowName,
		Owner:        owner,
		Status:       models.SessionStatusRunning,
		StartedAt:    startedAt,
	})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "Created trace session",
		"session_id", sessionID, "workflow_id", workflowID)

	return sessionID, nil
}

func (s *Service) append(ctx context.Context, sessionID string, event events.Event, nodeID string, durationMs int64) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to serialize trace payload",
			"session_id", sessionID, "error", err)

		return
	}

	data := models.TraceData{
		SizeBytes:    int64(len(payload)),
		DeclaredType: string(event.GetType()),
	}

	if len(payload) > maxTracePayloadBytes {
		data.Preview = string(payload[:previewBytes])
		data.Truncated = true
	} else {
		data.Payload = json.RawMessage(payload)
	}

	metadata := map[string]any{
		"event_type":  string(event.GetType()),
		"workflow_id": event.GetWorkflowID(),
	}

	if durationMs > 0 {
		metadata["duration_ms"] = durationMs
	}

	err = s.sessions.AppendEvent(ctx, &models.TraceEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Timestamp: event.GetTimestamp(),
		NodeID:    nodeID,
		EventType: events.TraceEventTypeFor(event.GetType()),
		Data:      data,
		Metadata:  metadata,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to append trace event",
			"session_id", sessionID, "error", err)
	}
}

// complete transitions the session named by the event, falling back to the
// workflow's running session when the runtime's session id is unknown.
func (s *Service) complete(ctx context.Context, workflowID, sessionID string, status models.SessionStatus, endedAt time.Time) {
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}

	if sessionID != "" {
		err := s.sessions.CompleteSession(ctx, sessionID, status, endedAt)
		if err == nil {
			return
		}

		if !persistence.IsSessionNotFound(err) {
			s.logger.ErrorContext(ctx, "Failed to complete trace session",
				"session_id", sessionID, "error", err)

			return
		}
	}

	session, err := s.sessions.RunningSessionByWorkflow(ctx, workflowID)
	if err != nil {
		s.logger.ErrorContext(ctx, "No running trace session to complete",
			"workflow_id", workflowID, "error", err)

		return
	}

	err = s.sessions.CompleteSession(ctx, session.ID, status, endedAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to complete trace session",
			"session_id", session.ID, "error", err)
	}
}
