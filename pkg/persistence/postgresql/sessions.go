package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
)

// SessionRepository handles trace session and trace event database operations.
type SessionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sql.DB, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, logger: logger}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session *models.TraceSession) error {
	query := `
		INSERT INTO trace_sessions (
			id, workflow_id, workflow_name, owner, status, started_at, ended_at,
			event_count, total_data_bytes, avg_node_duration_ms, duration_samples
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.WorkflowID,
		session.WorkflowName,
		session.Owner,
		string(session.Status),
		session.StartedAt,
		session.EndedAt,
		session.Summary.EventCount,
		session.Summary.TotalDataBytes,
		session.Summary.AvgNodeDurationMs,
		session.Summary.DurationSamples,
	)
	if err != nil {
		return persistence.NewSessionError("CreateSession", session.ID, err)
	}

	return nil
}

func (r *SessionRepository) SessionByID(ctx context.Context, id string) (*models.TraceSession, error) {
	query := sessionSelect + " WHERE id = $1"

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrSessionNotFound
		}

		return nil, fmt.Errorf("failed to scan trace session: %w", err)
	}

	return session, nil
}

func (r *SessionRepository) RunningSessionByWorkflow(ctx context.Context, workflowID string) (*models.TraceSession, error) {
	query := sessionSelect + `
		WHERE workflow_id = $1 AND status = 'running'
		ORDER BY started_at DESC
		LIMIT 1
	`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, workflowID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowSessionError("RunningSessionByWorkflow", workflowID, persistence.ErrNoRunningSession)
		}

		return nil, fmt.Errorf("failed to scan trace session: %w", err)
	}

	return session, nil
}

func (r *SessionRepository) ListSessions(ctx context.Context, opts persistence.ListSessionsOptions) ([]*models.TraceSession, error) {
	query := sessionSelect + " WHERE 1=1"
	args := make([]any, 0, 4)

	if opts.WorkflowID != "" {
		args = append(args, opts.WorkflowID)
		query += " AND workflow_id = $" + strconv.Itoa(len(args))
	}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		query += " AND status = $" + strconv.Itoa(len(args))
	}

	query += " ORDER BY started_at DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace sessions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	sessions := make([]*models.TraceSession, 0)

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trace session: %w", err)
		}

		sessions = append(sessions, session)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating trace sessions: %w", err)
	}

	return sessions, nil
}

// AppendEvent inserts a trace event and folds it into the session summary in
// one transaction. The session row is locked so concurrent appends keep the
// aggregate consistent.
func (r *SessionRepository) AppendEvent(ctx context.Context, event *models.TraceEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewSessionError("AppendEvent", event.SessionID, err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	var status string

	err = tx.QueryRowContext(ctx,
		"SELECT status FROM trace_sessions WHERE id = $1 FOR UPDATE",
		event.SessionID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewSessionError("AppendEvent", event.SessionID, persistence.ErrSessionNotFound)
		}

		return persistence.NewSessionError("AppendEvent", event.SessionID, err)
	}

	if models.SessionStatus(status) != models.SessionStatusRunning {
		return persistence.NewSessionError("AppendEvent", event.SessionID, persistence.ErrSessionCompleted)
	}

	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return persistence.NewSessionError("AppendEvent", event.SessionID, err)
	}

	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return persistence.NewSessionError("AppendEvent", event.SessionID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trace_events (id, session_id, timestamp, node_id, event_type, data, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		event.ID,
		event.SessionID,
		event.Timestamp,
		event.NodeID,
		string(event.EventType),
		dataJSON,
		metadataJSON,
	)
	if err != nil {
		return persistence.NewSessionError("AppendEvent", event.SessionID, err)
	}

	durationMs, hasDuration := eventDuration(event)

	updateQuery := `
		UPDATE trace_sessions SET
			event_count = event_count + 1,
			total_data_bytes = total_data_bytes + $2
	`
	args := []any{event.SessionID, event.Data.SizeBytes}

	if hasDuration {
		updateQuery += `,
			avg_node_duration_ms = avg_node_duration_ms + ($3 - avg_node_duration_ms) / (duration_samples + 1),
			duration_samples = duration_samples + 1
		`
		args = append(args, durationMs)
	}

	updateQuery += " WHERE id = $1"

	_, err = tx.ExecContext(ctx, updateQuery, args...)
	if err != nil {
		return persistence.NewSessionError("AppendEvent", event.SessionID, err)
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewSessionError("AppendEvent", event.SessionID, err)
	}

	return nil
}

func (r *SessionRepository) EventsBySession(ctx context.Context, sessionID string) ([]*models.TraceEvent, error) {
	query := `
		SELECT
			id
		  , session_id
		  , timestamp
		  , node_id
		  , event_type
		  , data
		  , metadata
		FROM trace_events
		WHERE session_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace events: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	events := make([]*models.TraceEvent, 0)

	for rows.Next() {
		var (
			event        models.TraceEvent
			eventType    string
			dataJSON     []byte
			metadataJSON []byte
		)

		err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.Timestamp,
			&event.NodeID,
			&eventType,
			&dataJSON,
			&metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trace event: %w", err)
		}

		event.EventType = models.TraceEventType(eventType)

		err = json.Unmarshal(dataJSON, &event.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trace event data: %w", err)
		}

		if len(metadataJSON) > 0 {
			err = json.Unmarshal(metadataJSON, &event.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal trace event metadata: %w", err)
			}
		}

		events = append(events, &event)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating trace events: %w", err)
	}

	return events, nil
}

func (r *SessionRepository) CompleteSession(ctx context.Context, sessionID string, status models.SessionStatus, endedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE trace_sessions
		SET status = $2, ended_at = $3
		WHERE id = $1 AND status = 'running'
	`, sessionID, string(status), endedAt)
	if err != nil {
		return persistence.NewSessionError("CompleteSession", sessionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewSessionError("CompleteSession", sessionID, err)
	}

	if affected == 0 {
		// Distinguish a missing session from one already terminal.
		var exists bool

		err = r.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM trace_sessions WHERE id = $1)",
			sessionID,
		).Scan(&exists)
		if err != nil {
			return persistence.NewSessionError("CompleteSession", sessionID, err)
		}

		if !exists {
			return persistence.NewSessionError("CompleteSession", sessionID, persistence.ErrSessionNotFound)
		}

		return persistence.NewSessionError("CompleteSession", sessionID, persistence.ErrSessionCompleted)
	}

	return nil
}

const sessionSelect = `
	SELECT
		id
	  , workflow_id
	  , workflow_name
	  , owner
	  , status
	  , started_at
	  , ended_at
	  , event_count
	  , total_data_bytes
	  , avg_node_duration_ms
	  , duration_samples
	FROM trace_sessions
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.TraceSession, error) {
	var (
		session      models.TraceSession
		workflowName sql.NullString
		owner        sql.NullString
		status       string
		endedAt      sql.NullTime
	)

	err := row.Scan(
		&session.ID,
		&session.WorkflowID,
		&workflowName,
		&owner,
		&status,
		&session.StartedAt,
		&endedAt,
		&session.Summary.EventCount,
		&session.Summary.TotalDataBytes,
		&session.Summary.AvgNodeDurationMs,
		&session.Summary.DurationSamples,
	)
	if err != nil {
		return nil, err
	}

	session.WorkflowName = workflowName.String
	session.Owner = owner.String
	session.Status = models.SessionStatus(status)

	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}

	return &session, nil
}

func eventDuration(event *models.TraceEvent) (float64, bool) {
	raw, ok := event.Metadata["duration_ms"]
	if !ok {
		return 0, false
	}

	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
