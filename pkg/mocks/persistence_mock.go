// Package mocks provides testify mocks for the persistence interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) LatestVersion(ctx context.Context, workflowID string) (*models.WorkflowVersion, error) {
	args := m.Called(ctx, workflowID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowVersion), args.Error(1)
}

// MockSessionRepository is a mock implementation of persistence.SessionRepository interface.
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) CreateSession(ctx context.Context, session *models.TraceSession) error {
	args := m.Called(ctx, session)

	return args.Error(0)
}

func (m *MockSessionRepository) SessionByID(ctx context.Context, id string) (*models.TraceSession, error) {
	args := m.Called(ctx, id)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.TraceSession), args.Error(1)
}

func (m *MockSessionRepository) RunningSessionByWorkflow(ctx context.Context, workflowID string) (*models.TraceSession, error) {
	args := m.Called(ctx, workflowID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.TraceSession), args.Error(1)
}

func (m *MockSessionRepository) ListSessions(ctx context.Context, opts persistence.ListSessionsOptions) ([]*models.TraceSession, error) {
	args := m.Called(ctx, opts)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TraceSession), args.Error(1)
}

func (m *MockSessionRepository) AppendEvent(ctx context.Context, event *models.TraceEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *MockSessionRepository) EventsBySession(ctx context.Context, sessionID string) ([]*models.TraceEvent, error) {
	args := m.Called(ctx, sessionID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TraceEvent), args.Error(1)
}

func (m *MockSessionRepository) CompleteSession(ctx context.Context, sessionID string, status models.SessionStatus, endedAt time.Time) error {
	args := m.Called(ctx, sessionID, status, endedAt)

	return args.Error(0)
}

// MockSubscriptionRepository is a mock implementation of persistence.SubscriptionRepository interface.
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) ActiveSubscriptions(ctx context.Context, namespace, eventName string) ([]*models.WebhookSubscription, error) {
	args := m.Called(ctx, namespace, eventName)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WebhookSubscription), args.Error(1)
}
