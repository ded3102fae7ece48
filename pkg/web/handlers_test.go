package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence/file"
	"github.com/zipwire/zipwire/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	handlers := web.NewAPIHandlers(store, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Get("/health", handlers.HealthCheck)

	s := app.Group("/sessions")
	s.Get("/", handlers.ListSessions)
	s.Get("/:id", handlers.GetSession)
	s.Get("/:id/events", handlers.GetSessionEvents)

	app.Use(web.NotFoundHandler)

	return app, store
}

func seedSession(t *testing.T, store *file.Persistence, workflowID string, status models.SessionStatus, startedAt time.Time) *models.TraceSession {
	t.Helper()

	session := &models.TraceSession{
		ID:           uuid.New().String(),
		WorkflowID:   workflowID,
		WorkflowName: "Order Sync",
		Owner:        "team-orders",
		Status:       status,
		StartedAt:    startedAt,
	}
	require.NoError(t, store.SessionRepository().CreateSession(context.Background(), session))

	return session
}

func seedEvent(t *testing.T, store *file.Persistence, sessionID, nodeID string, eventType models.TraceEventType) *models.TraceEvent {
	t.Helper()

	event := &models.TraceEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		EventType: eventType,
		Data: models.TraceData{
			SizeBytes:    12,
			DeclaredType: "object",
			Payload:      map[string]any{"ok": true},
		},
	}
	require.NoError(t, store.SessionRepository().AppendEvent(context.Background(), event))

	return event
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any

	require.NoError(t, json.Unmarshal(body, &decoded))

	return decoded
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestAPIHandlers_ListSessions(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)

	base := time.Now().UTC()
	running := seedSession(t, store, "wf-1", models.SessionStatusRunning, base)
	seedSession(t, store, "wf-1", models.SessionStatusCompleted, base.Add(-time.Hour))
	seedSession(t, store, "wf-2", models.SessionStatusFailed, base.Add(-2*time.Hour))

	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedCount  int
	}{
		{
			name:           "all sessions",
			target:         "/sessions/",
			expectedStatus: http.StatusOK,
			expectedCount:  3,
		},
		{
			name:           "filter by workflow",
			target:         "/sessions/?workflow_id=wf-1",
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:           "filter by status",
			target:         "/sessions/?status=running",
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "limit applies after sorting",
			target:         "/sessions/?limit=1",
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "invalid status rejected",
			target:         "/sessions/?status=paused",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid limit rejected",
			target:         "/sessions/?limit=one",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "limit above maximum rejected",
			target:         "/sessions/?limit=1000",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.NoError(t, err)

			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus != http.StatusOK {
				return
			}

			decoded := decodeBody(t, resp)
			assert.InDelta(t, float64(tt.expectedCount), decoded["total_count"], 0)
			assert.Len(t, decoded["sessions"], tt.expectedCount)
		})
	}

	t.Run("newest first", func(t *testing.T) {
		t.Parallel()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sessions/?limit=1", nil))
		require.NoError(t, err)

		defer resp.Body.Close()

		decoded := decodeBody(t, resp)
		sessions, ok := decoded["sessions"].([]any)
		require.True(t, ok)
		require.Len(t, sessions, 1)

		first, ok := sessions[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, running.ID, first["id"])
	})
}

func TestAPIHandlers_GetSession(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	session := seedSession(t, store, "wf-1", models.SessionStatusRunning, time.Now().UTC())

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sessions/"+session.ID, nil))
		require.NoError(t, err)

		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		decoded := decodeBody(t, resp)
		assert.Equal(t, session.ID, decoded["id"])
		assert.Equal(t, "wf-1", decoded["workflow_id"])
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sessions/missing", nil))
		require.NoError(t, err)

		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		decoded := decodeBody(t, resp)
		assert.Equal(t, "session_not_found", decoded["type"])
	})
}

func TestAPIHandlers_GetSessionEvents(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	session := seedSession(t, store, "wf-1", models.SessionStatusRunning, time.Now().UTC())

	start := seedEvent(t, store, session.ID, models.SessionNodeID, models.TraceEventInput)
	node := seedEvent(t, store, session.ID, "fetch-orders", models.TraceEventOutput)

	t.Run("replay order", func(t *testing.T) {
		t.Parallel()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sessions/"+session.ID+"/events", nil))
		require.NoError(t, err)

		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var decoded web.SessionEventsResponse

		require.NoError(t, json.Unmarshal(body, &decoded))
		require.NotNil(t, decoded.Session)
		assert.Equal(t, session.ID, decoded.Session.ID)
		assert.Equal(t, 2, decoded.Session.Summary.EventCount)

		require.Len(t, decoded.Events, 2)
		assert.Equal(t, start.ID, decoded.Events[0].ID)
		assert.Equal(t, node.ID, decoded.Events[1].ID)
	})

	t.Run("empty log for session without events", func(t *testing.T) {
		t.Parallel()

		empty := seedSession(t, store, "wf-empty", models.SessionStatusRunning, time.Now().UTC())

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sessions/"+empty.ID+"/events", nil))
		require.NoError(t, err)

		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var decoded web.SessionEventsResponse

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &decoded))
		assert.Empty(t, decoded.Events)
	})

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sessions/missing/events", nil))
		require.NoError(t, err)

		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestNotFoundHandler(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeBody(t, resp)["type"])
}
