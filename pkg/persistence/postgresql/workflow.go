package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

func (r *WorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , namespace
		  , owner
		  , metadata
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	var (
		workflow     models.Workflow
		owner        sql.NullString
		metadataJSON []byte
	)

	row := r.db.QueryRowContext(ctx, query, id)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Namespace,
		&owner,
		&metadataJSON,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	workflow.Owner = owner.String

	if len(metadataJSON) > 0 {
		err = json.Unmarshal(metadataJSON, &workflow.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow metadata: %w", err)
		}
	}

	return &workflow, nil
}

// LatestVersion returns the highest persisted version of the workflow graph.
func (r *WorkflowRepository) LatestVersion(ctx context.Context, workflowID string) (*models.WorkflowVersion, error) {
	query := `
		SELECT
			workflow_id
		  , version
		  , graph
		  , metadata
		  , created_at
		FROM workflow_versions
		WHERE workflow_id = $1
		ORDER BY version DESC
		LIMIT 1
	`

	var (
		version      models.WorkflowVersion
		graphJSON    []byte
		metadataJSON []byte
	)

	row := r.db.QueryRowContext(ctx, query, workflowID)

	err := row.Scan(
		&version.WorkflowID,
		&version.Version,
		&graphJSON,
		&metadataJSON,
		&version.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrVersionNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow version: %w", err)
	}

	err = json.Unmarshal(graphJSON, &version.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow graph: %w", err)
	}

	if len(metadataJSON) > 0 {
		err = json.Unmarshal(metadataJSON, &version.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal version metadata: %w", err)
		}
	}

	return &version, nil
}
