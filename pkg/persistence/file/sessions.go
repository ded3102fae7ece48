package file

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
)

// SessionRepository stores trace sessions and their event logs as JSON files.
type SessionRepository struct {
	root string
	mu   sync.RWMutex
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(root string) *SessionRepository {
	return &SessionRepository{root: root}
}

func (sr *SessionRepository) sessionPath(id string) string {
	return filepath.Join(sr.root, "sessions", id+".json")
}

func (sr *SessionRepository) tracePath(sessionID string) string {
	return filepath.Join(sr.root, "traces", sessionID+".json")
}

func (sr *SessionRepository) CreateSession(_ context.Context, session *models.TraceSession) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	err := writeJSON(sr.sessionPath(session.ID), session)
	if err != nil {
		return persistence.NewSessionError("CreateSession", session.ID, err)
	}

	return nil
}

func (sr *SessionRepository) SessionByID(_ context.Context, id string) (*models.TraceSession, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	return readJSON[models.TraceSession](sr.sessionPath(id), persistence.ErrSessionNotFound)
}

func (sr *SessionRepository) RunningSessionByWorkflow(ctx context.Context, workflowID string) (*models.TraceSession, error) {
	running := models.SessionStatusRunning

	sessions, err := sr.ListSessions(ctx, persistence.ListSessionsOptions{
		WorkflowID: workflowID,
		Status:     &running,
	})
	if err != nil {
		return nil, err
	}

	if len(sessions) == 0 {
		return nil, persistence.NewWorkflowSessionError("RunningSessionByWorkflow", workflowID, persistence.ErrNoRunningSession)
	}

	// ListSessions sorts newest first; reuse the most recent running session.
	return sessions[0], nil
}

func (sr *SessionRepository) ListSessions(_ context.Context, opts persistence.ListSessionsOptions) ([]*models.TraceSession, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	root := os.DirFS(filepath.Join(sr.root, "sessions"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.TraceSession, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		session, err := readJSON[models.TraceSession](filepath.Join(sr.root, "sessions", name), persistence.ErrSessionNotFound)
		if err != nil {
			continue
		}

		if opts.WorkflowID != "" && session.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.Status != nil && session.Status != *opts.Status {
			continue
		}

		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(sessions) {
			return []*models.TraceSession{}, nil
		}

		sessions = sessions[opts.Offset:]
	}

	if opts.Limit > 0 && len(sessions) > opts.Limit {
		sessions = sessions[:opts.Limit]
	}

	return sessions, nil
}

func (sr *SessionRepository) AppendEvent(_ context.Context, event *models.TraceEvent) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	session, err := readJSON[models.TraceSession](sr.sessionPath(event.SessionID), persistence.ErrSessionNotFound)
	if err != nil {
		return persistence.NewSessionError("AppendEvent", event.SessionID, err)
	}

	if session.Status != models.SessionStatusRunning {
		return persistence.NewSessionError("AppendEvent", event.SessionID, persistence.ErrSessionCompleted)
	}

	events, err := readJSON[[]*models.TraceEvent](sr.tracePath(event.SessionID), nil)
	if err != nil {
		return persistence.NewSessionError("AppendEvent", event.SessionID, err)
	}

	if events == nil {
		events = &[]*models.TraceEvent{}
	}

	*events = append(*events, event)

	err = writeJSON(sr.tracePath(event.SessionID), events)
	if err != nil {
		return persistence.NewSessionError("AppendEvent", event.SessionID, err)
	}

	foldSummary(&session.Summary, event)

	err = writeJSON(sr.sessionPath(event.SessionID), session)
	if err != nil {
		return persistence.NewSessionError("AppendEvent", event.SessionID, err)
	}

	return nil
}

func (sr *SessionRepository) EventsBySession(_ context.Context, sessionID string) ([]*models.TraceEvent, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	events, err := readJSON[[]*models.TraceEvent](sr.tracePath(sessionID), nil)
	if err != nil {
		return nil, err
	}

	if events == nil {
		return []*models.TraceEvent{}, nil
	}

	return *events, nil
}

func (sr *SessionRepository) CompleteSession(_ context.Context, sessionID string, status models.SessionStatus, endedAt time.Time) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	session, err := readJSON[models.TraceSession](sr.sessionPath(sessionID), persistence.ErrSessionNotFound)
	if err != nil {
		return persistence.NewSessionError("CompleteSession", sessionID, err)
	}

	if session.Status != models.SessionStatusRunning {
		return persistence.NewSessionError("CompleteSession", sessionID, persistence.ErrSessionCompleted)
	}

	session.Status = status
	session.EndedAt = &endedAt

	err = writeJSON(sr.sessionPath(sessionID), session)
	if err != nil {
		return persistence.NewSessionError("CompleteSession", sessionID, err)
	}

	return nil
}

// foldSummary updates the running aggregate with one appended event.
func foldSummary(summary *models.SessionSummary, event *models.TraceEvent) {
	summary.EventCount++
	summary.TotalDataBytes += event.Data.SizeBytes

	if raw, ok := event.Metadata["duration_ms"]; ok {
		var duration float64

		switch v := raw.(type) {
		case float64:
			duration = v
		case int64:
			duration = float64(v)
		case int:
			duration = float64(v)
		default:
			return
		}

		summary.DurationSamples++
		summary.AvgNodeDurationMs += (duration - summary.AvgNodeDurationMs) / float64(summary.DurationSamples)
	}
}
