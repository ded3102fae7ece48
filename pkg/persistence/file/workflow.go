package file

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
)

// WorkflowRepository handles workflow lookups against JSON files.
type WorkflowRepository struct {
	root string
	mu   sync.RWMutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) workflowPath(id string) string {
	return filepath.Join(wr.root, "workflows", id+".json")
}

func (wr *WorkflowRepository) versionPath(workflowID string) string {
	return filepath.Join(wr.root, "versions", workflowID+".json")
}

func (wr *WorkflowRepository) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	return readJSON[models.Workflow](wr.workflowPath(id), persistence.ErrWorkflowNotFound)
}

// LatestVersion returns the newest persisted version of the workflow graph.
func (wr *WorkflowRepository) LatestVersion(_ context.Context, workflowID string) (*models.WorkflowVersion, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	return readJSON[models.WorkflowVersion](wr.versionPath(workflowID), persistence.ErrVersionNotFound)
}

// SaveWorkflow writes a workflow document. Used by seeding and tests; the
// hub itself never mutates workflows.
func (wr *WorkflowRepository) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return writeJSON(wr.workflowPath(workflow.ID), workflow)
}

// SaveVersion writes the latest version snapshot for a workflow.
func (wr *WorkflowRepository) SaveVersion(_ context.Context, version *models.WorkflowVersion) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return writeJSON(wr.versionPath(version.WorkflowID), version)
}
