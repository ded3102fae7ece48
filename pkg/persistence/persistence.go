// Package persistence provides the storage abstraction consumed by the hub:
// workflow lookup, trace sessions, and webhook subscription queries.
package persistence

import (
	"context"
	"time"

	"github.com/zipwire/zipwire/pkg/models"
)

// WorkflowRepository resolves workflows and their latest persisted versions.
// The hub only reads; workflow CRUD is owned by the editor backend.
type WorkflowRepository interface {
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	LatestVersion(ctx context.Context, workflowID string) (*models.WorkflowVersion, error)
}

// ListSessionsOptions filters and pages trace session listings.
type ListSessionsOptions struct {
	WorkflowID string
	Status     *models.SessionStatus
	Limit      int
	Offset     int
}

// SessionRepository stores trace sessions and their append-only event logs.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.TraceSession) error
	SessionByID(ctx context.Context, id string) (*models.TraceSession, error)
	// RunningSessionByWorkflow returns the most recently started running
	// session for the workflow, or ErrNoRunningSession.
	RunningSessionByWorkflow(ctx context.Context, workflowID string) (*models.TraceSession, error)
	ListSessions(ctx context.Context, opts ListSessionsOptions) ([]*models.TraceSession, error)
	// AppendEvent writes one trace event and folds it into the session's
	// running summary. Events are immutable once written.
	AppendEvent(ctx context.Context, event *models.TraceEvent) error
	EventsBySession(ctx context.Context, sessionID string) ([]*models.TraceEvent, error)
	CompleteSession(ctx context.Context, sessionID string, status models.SessionStatus, endedAt time.Time) error
}

// SubscriptionRepository is the read-only lookup over registered webhook
// subscriptions. Registration management lives outside the hub.
type SubscriptionRepository interface {
	// ActiveSubscriptions returns active subscriptions in the namespace
	// whose event list covers eventName, wildcard included.
	ActiveSubscriptions(ctx context.Context, namespace, eventName string) ([]*models.WebhookSubscription, error)
}

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	SessionRepository() SessionRepository
	SubscriptionRepository() SubscriptionRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
