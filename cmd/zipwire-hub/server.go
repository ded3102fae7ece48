// Package main provides the zipwire hub server: the WebSocket entry point
// for runtime clients plus the background relay consumers.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zipwire/zipwire/pkg/dispatcher"
	"github.com/zipwire/zipwire/pkg/eventbus"
	"github.com/zipwire/zipwire/pkg/hub"
	"github.com/zipwire/zipwire/pkg/pending"
	"github.com/zipwire/zipwire/pkg/persistence"
	"github.com/zipwire/zipwire/pkg/reconciler"
	"github.com/zipwire/zipwire/pkg/sessions"
)

const shutdownTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server owns the relay wiring: connection manager, hub, the bus consumers
// and the reconciler, fronted by an HTTP server exposing the WebSocket
// endpoint.
type Server struct {
	logger     *slog.Logger
	hub        *hub.Hub
	eventBus   eventbus.EventBus
	sessions   *sessions.Service
	dispatcher *dispatcher.Dispatcher
	reconciler *reconciler.Reconciler
}

func NewServer(
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	queue pending.Queue,
	reconcilerConfig reconciler.Config,
) *Server {
	manager := hub.NewManager(logger, store.WorkflowRepository())
	relay := hub.NewHub(logger, manager, store.WorkflowRepository(), eventBus)

	return &Server{
		logger:     logger,
		hub:        relay,
		eventBus:   eventBus,
		sessions:   sessions.NewService(logger, store.SessionRepository(), store.WorkflowRepository()),
		dispatcher: dispatcher.NewDispatcher(logger, store.WorkflowRepository(), store.SubscriptionRepository()),
		reconciler: reconciler.NewReconciler(
			logger,
			relay,
			manager,
			store.WorkflowRepository(),
			store.SessionRepository(),
			queue,
			reconcilerConfig,
		),
	}
}

// Start registers the bus consumers, launches the reconciler and serves the
// WebSocket endpoint until SIGINT or SIGTERM.
func (s *Server) Start(ctx context.Context, port int) error {
	err := s.sessions.Register(s.eventBus)
	if err != nil {
		return err
	}

	err = s.dispatcher.Register(s.eventBus)
	if err != nil {
		return err
	}

	err = s.eventBus.Subscribe(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = s.reconciler.Start(ctx)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.logger.InfoContext(ctx, "Hub started successfully", "port", port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
	}

	s.logger.InfoContext(ctx, "Shutting down hub...")

	s.reconciler.Stop()
	s.dispatcher.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

// handleWebSocket admits one runtime client: a write pump drains the
// connection outbox while the read loop feeds inbound messages to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)

		return
	}

	conn := hub.NewConnection(uuid.New().String())
	s.hub.Manager().Admit(conn)

	s.logger.Info("Client connected", "connection_id", conn.ID, "remote_addr", r.RemoteAddr)

	go func() {
		for message := range conn.Outbox() {
			err := ws.WriteMessage(websocket.TextMessage, message)
			if err != nil {
				break
			}
		}

		_ = ws.Close()
	}()

	ctx := r.Context()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			break
		}

		s.hub.HandleMessage(ctx, conn, raw)
	}

	s.hub.HandleDisconnect(conn)
	s.logger.Info("Client disconnected", "connection_id", conn.ID)
}
