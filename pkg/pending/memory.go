package pending

import (
	"context"
	"sync"
)

// MemoryQueue is an in-process queue for single-instance deployments and
// tests.
type MemoryQueue struct {
	mu      sync.Mutex
	updates map[string][]Update
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{updates: make(map[string][]Update)}
}

func (q *MemoryQueue) Push(_ context.Context, workflowID string, update Update) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.updates[workflowID] = append(q.updates[workflowID], update)

	return nil
}

func (q *MemoryQueue) Drain(_ context.Context, workflowID string) ([]Update, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued := q.updates[workflowID]
	delete(q.updates, workflowID)

	return queued, nil
}

func (q *MemoryQueue) Close() error {
	return nil
}
