package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
)

// Manager owns the connection registry and the workflow rooms. Rooms are
// derived in-memory fan-out state: created lazily on the first authenticated
// join and dropped when the last member leaves.
type Manager struct {
	logger    *slog.Logger
	workflows persistence.WorkflowRepository

	mu          sync.RWMutex
	connections map[string]*Connection
	rooms       map[string]map[string]*Connection
}

// NewManager creates a connection manager backed by the workflow lookup.
func NewManager(logger *slog.Logger, workflows persistence.WorkflowRepository) *Manager {
	return &Manager{
		logger:      logger.With("module", "hub"),
		workflows:   workflows,
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]*Connection),
	}
}

// Admit registers an unauthenticated connection.
func (m *Manager) Admit(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connections[conn.ID] = conn
}

// Authenticate verifies the workflow exists, marks the connection
// authenticated and joins it to the workflow room. First auth wins; a second
// attempt fails without altering connection state.
func (m *Manager) Authenticate(ctx context.Context, connID, workflowID, namespace string, metadata map[string]any) (*models.Workflow, error) {
	m.mu.RLock()
	conn, exists := m.connections[connID]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrConnectionNotFound
	}

	if conn.Authenticated {
		return nil, ErrAlreadyAuthenticated
	}

	workflow, err := m.workflows.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conn.WorkflowID = workflowID
	conn.Namespace = namespace
	conn.Metadata = metadata
	conn.Authenticated = true

	room, exists := m.rooms[workflowID]
	if !exists {
		room = make(map[string]*Connection)
		m.rooms[workflowID] = room
	}

	room[connID] = conn

	m.logger.InfoContext(ctx, "Connection joined workflow room",
		"connection_id", connID, "workflow_id", workflowID, "members", len(room))

	return workflow, nil
}

// Remove evicts the connection from its room and drops tracking state.
// Idempotent; empty rooms are deleted.
func (m *Manager) Remove(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, exists := m.connections[connID]
	if !exists {
		return
	}

	delete(m.connections, connID)

	if conn.WorkflowID != "" {
		room, exists := m.rooms[conn.WorkflowID]
		if exists {
			delete(room, connID)

			if len(room) == 0 {
				delete(m.rooms, conn.WorkflowID)
			}
		}
	}

	conn.CloseSend()
}

// Broadcast delivers the message to every connection in the workflow room.
// Sends are non-blocking; slow viewers drop. Returns the number of
// connections that accepted the message.
func (m *Manager) Broadcast(workflowID string, message []byte) int {
	m.mu.RLock()

	room := m.rooms[workflowID]
	members := make([]*Connection, 0, len(room))

	for _, conn := range room {
		members = append(members, conn)
	}

	m.mu.RUnlock()

	delivered := 0

	for _, conn := range members {
		if conn.Send(message) {
			delivered++
		} else {
			m.logger.Warn("Dropped message for slow connection",
				"connection_id", conn.ID, "workflow_id", workflowID)
		}
	}

	return delivered
}

// MembersOf returns a snapshot of the connection ids in the workflow room.
func (m *Manager) MembersOf(workflowID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room := m.rooms[workflowID]
	ids := make([]string, 0, len(room))

	for id := range room {
		ids = append(ids, id)
	}

	return ids
}

// PopulatedWorkflows returns the workflow ids that currently have at least
// one connected client. The reconciler only polls these.
func (m *Manager) PopulatedWorkflows() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.rooms))

	for id := range m.rooms {
		ids = append(ids, id)
	}

	return ids
}

// Connection returns the tracked connection for the id, if any.
func (m *Manager) Connection(connID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, exists := m.connections[connID]

	return conn, exists
}
