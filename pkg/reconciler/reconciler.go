// Package reconciler propagates editor-side collaborative document changes
// into the hub's event stream on periodic schedules.
package reconciler

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zipwire/zipwire/pkg/events"
	"github.com/zipwire/zipwire/pkg/models"
	"github.com/zipwire/zipwire/pkg/pending"
	"github.com/zipwire/zipwire/pkg/persistence"
)

// Relay is the slice of the hub the reconciler feeds events into.
type Relay interface {
	Relay(ctx context.Context, workflowID string, event events.Event)
}

// Rooms reports which workflows currently have connected clients. Only
// those are polled.
type Rooms interface {
	PopulatedWorkflows() []string
}

// Config holds the reconciliation schedules. IdleTimeout enables the
// trace-session sweeper when positive; by default an abandoned session
// stays running.
type Config struct {
	DrainSchedule string
	SyncSchedule  string
	IdleSchedule  string
	IdleTimeout   time.Duration
}

// DefaultConfig matches the documented tick intervals.
func DefaultConfig() Config {
	return Config{
		DrainSchedule: "@every 1s",
		SyncSchedule:  "@every 2s",
		IdleSchedule:  "@every 1m",
	}
}

// Reconciler runs the change-drain and full-state sync jobs. Jobs skip when
// a previous run is still in flight instead of stacking.
type Reconciler struct {
	logger    *slog.Logger
	relay     Relay
	rooms     Rooms
	workflows persistence.WorkflowRepository
	sessions  persistence.SessionRepository
	queue     pending.Queue
	config    Config
	cron      *cron.Cron

	mu       sync.RWMutex
	lastSeen map[string][sha256.Size]byte
}

// NewReconciler creates a reconciler. The last-seen cache is owned by the
// instance so multiple reconcilers can run in isolation.
func NewReconciler(logger *slog.Logger, relay Relay, rooms Rooms, workflows persistence.WorkflowRepository, sessions persistence.SessionRepository, queue pending.Queue, config Config) *Reconciler {
	if config.DrainSchedule == "" {
		config.DrainSchedule = DefaultConfig().DrainSchedule
	}

	if config.SyncSchedule == "" {
		config.SyncSchedule = DefaultConfig().SyncSchedule
	}

	if config.IdleSchedule == "" {
		config.IdleSchedule = DefaultConfig().IdleSchedule
	}

	return &Reconciler{
		logger:    logger.With("module", "reconciler"),
		relay:     relay,
		rooms:     rooms,
		workflows: workflows,
		sessions:  sessions,
		queue:     queue,
		config:    config,
		lastSeen:  make(map[string][sha256.Size]byte),
	}
}

// Start registers and launches the periodic jobs.
func (r *Reconciler) Start(ctx context.Context) error {
	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := r.cron.AddFunc(r.config.DrainSchedule, func() {
		r.DrainChanges(ctx)
	})
	if err != nil {
		return err
	}

	_, err = r.cron.AddFunc(r.config.SyncSchedule, func() {
		r.SyncStates(ctx)
	})
	if err != nil {
		return err
	}

	if r.config.IdleTimeout > 0 {
		_, err = r.cron.AddFunc(r.config.IdleSchedule, func() {
			r.SweepIdleSessions(ctx)
		})
		if err != nil {
			return err
		}
	}

	r.cron.Start()

	r.logger.InfoContext(ctx, "Reconciler started",
		"drain_schedule", r.config.DrainSchedule,
		"sync_schedule", r.config.SyncSchedule,
		"idle_sweeper", r.config.IdleTimeout > 0)

	return nil
}

// Stop halts the schedules and waits for running jobs to finish.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// DrainChanges is the change-drain job: for every populated workflow, pop
// the queued collaborative updates, relay the ones with an event mapping and
// drop the rest. The queue is cleared even when nothing was mappable.
func (r *Reconciler) DrainChanges(ctx context.Context) {
	for _, workflowID := range r.rooms.PopulatedWorkflows() {
		updates, err := r.queue.Drain(ctx, workflowID)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to drain pending updates",
				"workflow_id", workflowID, "error", err)

			continue
		}

		for _, update := range updates {
			event, ok := mapUpdate(workflowID, update)
			if !ok {
				r.logger.DebugContext(ctx, "Dropping unmappable pending update",
					"workflow_id", workflowID, "kind", update.Kind)

				continue
			}

			r.relay.Relay(ctx, workflowID, event)
		}
	}
}

// mapUpdate converts a raw collaborative update to a hub event. Structural
// removals have no event representation and report no mapping.
func mapUpdate(workflowID string, update pending.Update) (events.Event, bool) {
	switch update.Kind {
	case pending.KindNodeState:
		if update.State != string(models.VisualStateRunning) {
			return nil, false
		}

		return events.NodeExecuting{
			BaseEvent: events.NewBaseEvent(events.NodeExecutingEvent, workflowID),
			NodeID:    update.NodeID,
		}, true
	case pending.KindConnectionState:
		return events.ConnectionState{
			BaseEvent:    events.NewBaseEvent(events.ConnectionStateEvent, workflowID),
			ConnectionID: update.ConnectionID,
			State:        models.VisualState(update.State),
		}, true
	default:
		return nil, false
	}
}

// SyncStates is the full-state sync job: emit workflow.updated for every
// populated workflow whose latest persisted version differs from the
// last-seen cache. Unchanged versions emit nothing.
func (r *Reconciler) SyncStates(ctx context.Context) {
	for _, workflowID := range r.rooms.PopulatedWorkflows() {
		version, err := r.workflows.LatestVersion(ctx, workflowID)
		if err != nil {
			if !persistence.IsVersionNotFound(err) {
				r.logger.ErrorContext(ctx, "Failed to load workflow version",
					"workflow_id", workflowID, "error", err)
			}

			continue
		}

		digest, err := stateDigest(version)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to digest workflow state",
				"workflow_id", workflowID, "error", err)

			continue
		}

		r.mu.RLock()
		seen, exists := r.lastSeen[workflowID]
		r.mu.RUnlock()

		if exists && seen == digest {
			continue
		}

		r.mu.Lock()
		r.lastSeen[workflowID] = digest
		r.mu.Unlock()

		event := events.WorkflowUpdated{
			BaseEvent: events.NewBaseEvent(events.WorkflowUpdatedEvent, workflowID),
			Version:   version.Version,
			Graph:     version.Graph,
		}

		r.relay.Relay(ctx, workflowID, event)
	}
}

// stateDigest hashes a stable serialization of the version. Struct encoding
// order is fixed, so equal states hash equal.
func stateDigest(version *models.WorkflowVersion) ([sha256.Size]byte, error) {
	data, err := json.Marshal(version)
	if err != nil {
		return [sha256.Size]byte{}, err
	}

	return sha256.Sum256(data), nil
}

// SweepIdleSessions fails running sessions with no activity inside the idle
// window. Disabled unless IdleTimeout is set.
func (r *Reconciler) SweepIdleSessions(ctx context.Context) {
	if r.config.IdleTimeout <= 0 {
		return
	}

	running := models.SessionStatusRunning

	sessions, err := r.sessions.ListSessions(ctx, persistence.ListSessionsOptions{Status: &running})
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list running sessions", "error", err)

		return
	}

	cutoff := time.Now().UTC().Add(-r.config.IdleTimeout)

	for _, session := range sessions {
		lastActivity := session.StartedAt

		traced, err := r.sessions.EventsBySession(ctx, session.ID)
		if err == nil && len(traced) > 0 {
			lastActivity = traced[len(traced)-1].Timestamp
		}

		if lastActivity.After(cutoff) {
			continue
		}

		err = r.sessions.CompleteSession(ctx, session.ID, models.SessionStatusFailed, time.Now().UTC())
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to sweep idle session",
				"session_id", session.ID, "error", err)

			continue
		}

		r.logger.InfoContext(ctx, "Swept idle trace session",
			"session_id", session.ID, "workflow_id", session.WorkflowID)
	}
}
