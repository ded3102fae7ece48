// Package pending exposes the collaborative document's queued-update
// collaborator: a per-workflow queue of raw editor changes awaiting
// propagation into the event stream.
package pending

import "context"

// Update kinds produced by the collaborative document store.
const (
	KindNodeState         = "node.state"
	KindConnectionState   = "connection.state"
	KindNodeRemoved       = "node.removed"
	KindConnectionRemoved = "connection.removed"
)

// Update is one raw queued change. Only a subset of kinds map to hub
// events; the rest are dropped by the reconciler.
type Update struct {
	Kind         string         `json:"kind"`
	NodeID       string         `json:"node_id,omitempty"`
	ConnectionID string         `json:"connection_id,omitempty"`
	State        string         `json:"state,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Queue is the pending-update queue keyed by workflow id. Drain returns the
// queued updates and clears the queue in one step so the reconciler always
// makes forward progress.
type Queue interface {
	Push(ctx context.Context, workflowID string, update Update) error
	Drain(ctx context.Context, workflowID string) ([]Update, error)
	Close() error
}
