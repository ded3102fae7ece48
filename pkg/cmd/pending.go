package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/zipwire/zipwire/pkg/pending"
)

// NewPendingQueue selects the pending-update queue adapter from the URL:
// redis:// for a shared Redis queue, in-memory otherwise.
func NewPendingQueue(ctx context.Context, logger *slog.Logger, queueURL string) (pending.Queue, error) {
	if strings.HasPrefix(queueURL, "redis://") || strings.HasPrefix(queueURL, "rediss://") {
		return pending.NewRedisQueue(ctx, logger, queueURL)
	}

	return pending.NewMemoryQueue(), nil
}
