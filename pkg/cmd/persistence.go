// Package cmd provides shared provider factories for the zipwire binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zipwire/zipwire/pkg/persistence"
	"github.com/zipwire/zipwire/pkg/persistence/file"
	"github.com/zipwire/zipwire/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence adapter from the database URL
// scheme: postgres for postgres:// URLs, file storage otherwise.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL)
	}
}
