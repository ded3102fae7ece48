package sessions

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipwire/zipwire/pkg/events"
	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
	"github.com/zipwire/zipwire/pkg/persistence/file"
)

func listAll(workflowID string) persistence.ListSessionsOptions {
	return persistence.ListSessionsOptions{WorkflowID: workflowID}
}

func newTestService(t *testing.T) (*Service, *file.Persistence) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	service := NewService(slog.Default(), store.SessionRepository(), store.WorkflowRepository())

	return service, store
}

func TestService_ExecutionScenario(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	service.Record(ctx, &events.ExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.ExecutionStartedEvent, "wf-1"),
		SessionID:    "s1",
		WorkflowName: "Pipeline",
	})

	for _, nodeID := range []string{"n1", "n2", "n3"} {
		service.Record(ctx, &events.NodeCompleted{
			BaseEvent:  events.NewBaseEvent(events.NodeCompletedEvent, "wf-1"),
			NodeID:     nodeID,
			DurationMs: 100,
		})
	}

	service.Record(ctx, &events.ExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, "wf-1"),
		SessionID:     "s1",
		NodesExecuted: 3,
	})

	session, err := store.SessionRepository().SessionByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	require.NotNil(t, session.EndedAt)

	traced, err := store.SessionRepository().EventsBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, traced, 4)

	assert.Equal(t, models.TraceEventInput, traced[0].EventType)
	assert.Equal(t, models.SessionNodeID, traced[0].NodeID)

	for _, traceEvent := range traced[1:] {
		assert.Equal(t, models.TraceEventOutput, traceEvent.EventType)
	}

	assert.Equal(t, 4, session.Summary.EventCount)
	assert.InDelta(t, 100.0, session.Summary.AvgNodeDurationMs, 0.001)
}

func TestService_TransientEventsNotPersisted(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	service.Record(ctx, &events.VisualStateUpdate{
		BaseEvent: events.NewBaseEvent(events.VisualStateUpdateEvent, "wf-1"),
		Elements: []models.VisualElementState{
			{ID: "n1", ElementType: models.VisualElementNode, State: models.VisualStateRunning},
		},
	})
	service.Record(ctx, &events.ConnectionState{
		BaseEvent:    events.NewBaseEvent(events.ConnectionStateEvent, "wf-1"),
		ConnectionID: "n1:out",
		State:        models.VisualStateRunning,
	})

	sessions, err := store.SessionRepository().ListSessions(ctx, listAll("wf-1"))
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestService_NodeEventCreatesSession(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	workflowRepo, ok := store.WorkflowRepository().(*file.WorkflowRepository)
	require.True(t, ok)
	require.NoError(t, workflowRepo.SaveWorkflow(ctx, &models.Workflow{ID: "wf-1", Name: "Pipeline", Owner: "team-a"}))

	service.Record(ctx, &events.NodeCompleted{
		BaseEvent: events.NewBaseEvent(events.NodeCompletedEvent, "wf-1"),
		NodeID:    "n1",
	})

	sessions, err := store.SessionRepository().ListSessions(ctx, listAll("wf-1"))
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	assert.Equal(t, models.SessionStatusRunning, sessions[0].Status)
	assert.Equal(t, "team-a", sessions[0].Owner)
	assert.Equal(t, "Pipeline", sessions[0].WorkflowName)
	assert.Equal(t, 1, sessions[0].Summary.EventCount)
}

func TestService_ReusesRunningSession(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	first, err := service.EnsureRunningSession(ctx, "wf-1", "Pipeline", "s1", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "s1", first)

	second, err := service.EnsureRunningSession(ctx, "wf-1", "Pipeline", "s2", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "s1", second)
}

func TestService_CompleteFallsBackToRunningSession(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	_, err := service.EnsureRunningSession(ctx, "wf-1", "Pipeline", "s1", time.Now().UTC())
	require.NoError(t, err)

	// Runtime reports an unknown session id; the workflow's running session
	// is failed anyway.
	service.Record(ctx, &events.ExecutionFailed{
		BaseEvent: events.NewBaseEvent(events.ExecutionFailedEvent, "wf-1"),
		SessionID: "unknown",
		Error:     "runtime crashed",
	})

	session, err := store.SessionRepository().SessionByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusFailed, session.Status)
}

func TestService_LargePayloadTruncated(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	big := make([]string, 0, 2048)
	for range 2048 {
		big = append(big, "connection-id")
	}

	service.Record(ctx, &events.NodeCompleted{
		BaseEvent:           events.NewBaseEvent(events.NodeCompletedEvent, "wf-1"),
		NodeID:              "n1",
		OutgoingConnections: big,
	})

	sessions, err := store.SessionRepository().ListSessions(ctx, listAll("wf-1"))
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	traced, err := store.SessionRepository().EventsBySession(ctx, sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, traced, 1)

	assert.True(t, traced[0].Data.Truncated)
	assert.Nil(t, traced[0].Data.Payload)
	assert.NotEmpty(t, traced[0].Data.Preview)
	assert.Greater(t, traced[0].Data.SizeBytes, int64(maxTracePayloadBytes))
}
