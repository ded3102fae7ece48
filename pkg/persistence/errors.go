// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrVersionNotFound indicates no persisted version exists for the workflow.
	ErrVersionNotFound = errors.New("workflow version not found")

	// ErrSessionNotFound indicates a trace session was not found by the given identifier.
	ErrSessionNotFound = errors.New("trace session not found")

	// ErrNoRunningSession indicates the workflow has no session in the running state.
	ErrNoRunningSession = errors.New("no running trace session")

	// ErrSessionCompleted indicates an append or completion was attempted on a
	// session that already reached a terminal status.
	ErrSessionCompleted = errors.New("trace session already completed")
)

// SessionError wraps trace-session errors with additional context.
type SessionError struct {
	Op         string // Operation being performed (e.g., "AppendEvent", "Complete")
	SessionID  string // Session ID if applicable
	WorkflowID string // Workflow ID if applicable
	Err        error  // Underlying error
}

func (e *SessionError) Error() string {
	target := e.SessionID
	if target == "" {
		target = fmt.Sprintf("workflow %s", e.WorkflowID)
	}

	return fmt.Sprintf("%s operation failed for session %s: %v", e.Op, target, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func (e *SessionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewSessionError creates a new session error with context.
func NewSessionError(op, sessionID string, err error) *SessionError {
	return &SessionError{
		Op:        op,
		SessionID: sessionID,
		Err:       err,
	}
}

// NewWorkflowSessionError creates a session error scoped to a workflow.
func NewWorkflowSessionError(op, workflowID string, err error) *SessionError {
	return &SessionError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsVersionNotFound checks if an error indicates a workflow version was not found.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsSessionNotFound checks if an error indicates a trace session was not found.
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsNoRunningSession checks if an error indicates no running session exists.
func IsNoRunningSession(err error) bool {
	return errors.Is(err, ErrNoRunningSession)
}
