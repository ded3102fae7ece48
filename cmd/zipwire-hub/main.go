package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/zipwire/zipwire/pkg/cmd"
	"github.com/zipwire/zipwire/pkg/log"
	"github.com/zipwire/zipwire/pkg/otelhelper"
	"github.com/zipwire/zipwire/pkg/reconciler"
)

const defaultPort = 8090

func main() {
	command := &cli.Command{
		Name:                  "zipwire-hub",
		Usage:                 "Start the real-time event relay hub",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "hub-id",
				Aliases: []string{"id"},
				Usage:   "Custom hub ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("HUB_ID"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the WebSocket server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "pending-queue-url",
				Usage:   "Pending update queue URL (redis:// for shared, in-memory otherwise)",
				Value:   "",
				Sources: cli.EnvVars("PENDING_QUEUE_URL"),
			},
			&cli.StringFlag{
				Name:    "drain-schedule",
				Usage:   "Cron schedule for draining pending collaborative updates",
				Value:   "@every 1s",
				Sources: cli.EnvVars("DRAIN_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "sync-schedule",
				Usage:   "Cron schedule for full workflow state sync",
				Value:   "@every 2s",
				Sources: cli.EnvVars("SYNC_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "idle-timeout",
				Usage:   "Fail running trace sessions idle longer than this (0 disables the sweeper)",
				Value:   0,
				Sources: cli.EnvVars("SESSION_IDLE_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			tracerProvider, err := otelhelper.InitTracer(ctx, "zipwire-hub")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			hubID := command.String("hub-id")
			if hubID == "" {
				hubID = "hub-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("zipwire-hub").With("hub_id", hubID)

			logger.InfoContext(ctx, "Initializing Zipwire Hub")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			queue, err := cmd.NewPendingQueue(ctx, logger, command.String("pending-queue-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := queue.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close pending queue", "error", err)
				}
			}()

			server := NewServer(logger, persistence, eventBus, queue, reconciler.Config{
				DrainSchedule: command.String("drain-schedule"),
				SyncSchedule:  command.String("sync-schedule"),
				IdleTimeout:   command.Duration("idle-timeout"),
			})

			err = server.Start(ctx, command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start hub server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
