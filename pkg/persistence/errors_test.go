package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionError_WrapsSentinel(t *testing.T) {
	err := NewSessionError("AppendEvent", "s1", ErrSessionNotFound)

	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.True(t, IsSessionNotFound(err))
	assert.Contains(t, err.Error(), "AppendEvent")
	assert.Contains(t, err.Error(), "s1")
}

func TestSessionError_WorkflowScoped(t *testing.T) {
	err := NewWorkflowSessionError("EnsureRunning", "wf-1", ErrNoRunningSession)

	assert.True(t, IsNoRunningSession(err))
	assert.Contains(t, err.Error(), "wf-1")
}

func TestIsHelpers_NoFalsePositives(t *testing.T) {
	plain := errors.New("disk on fire")

	assert.False(t, IsWorkflowNotFound(plain))
	assert.False(t, IsVersionNotFound(plain))
	assert.False(t, IsSessionNotFound(plain))
	assert.False(t, IsNoRunningSession(plain))
}
