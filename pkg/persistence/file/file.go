// Package file provides file-based persistence for development and tests.
package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/zipwire/zipwire/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file system.
type Persistence struct {
	root             string
	workflowRepo     *WorkflowRepository
	sessionRepo      *SessionRepository
	subscriptionRepo *SubscriptionRepository
}

// NewPersistence creates a file-backed persistence rooted at the given
// directory. Accepts a plain path or a file:// URL.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	for _, dir := range []string{"workflows", "versions", "sessions", "traces", "subscriptions"} {
		err := os.MkdirAll(filepath.Join(cleanRoot, dir), 0o755)
		if err != nil {
			return nil, err
		}
	}

	return &Persistence{
		root:             cleanRoot,
		workflowRepo:     NewWorkflowRepository(cleanRoot),
		sessionRepo:      NewSessionRepository(cleanRoot),
		subscriptionRepo: NewSubscriptionRepository(cleanRoot),
	}, nil
}

// Close performs any necessary cleanup. Nothing to clean up for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) SessionRepository() persistence.SessionRepository {
	return fp.sessionRepo
}

func (fp *Persistence) SubscriptionRepository() persistence.SubscriptionRepository {
	return fp.subscriptionRepo
}

func readJSON[T any](path string, notFound error) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound
		}

		return nil, err
	}

	var value T

	err = json.Unmarshal(data, &value)
	if err != nil {
		return nil, err
	}

	return &value, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
