package main

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/dukex/recruitflow/pkg/cmd"
	"github.com/dukex/recruitflow/pkg/log"
	"github.com/dukex/recruitflow/pkg/workflow"
)

func NewWorkerCommand() *cli.Command {
	return &cli.Command{
		Name:    "worker",
		Aliases: []string{"w"},
		Usage:   "Consume candidate events from the event bus and run the workflows they fire",
		Flags: slices.Concat(
			[]cli.Flag{
				&cli.StringFlag{
					Name:    "worker-id",
					Aliases: []string{"id"},
					Usage:   "Custom worker ID (auto-generated if not provided)",
					Sources: cli.EnvVars("WORKER_ID"),
				},
			},
			engineFlags(),
			logFlags(),
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			closer := setupLog(command)
			defer func() { _ = closer.Close() }()

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("recruitflow-worker").With("worker_id", workerID)

			cfg, err := engineConfig(ctx, command)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Initializing Recruitflow worker", "event_bus", cfg.EventBus)

			engine, err := cmd.NewEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}

			sweep, err := newSweeper(ctx, cfg, engine, logger)
			if err != nil {
				return errors.Join(err, closeEngine(engine, logger))
			}

			manager := workflow.NewManager(workerID, engine.EventBus, engine.Dispatcher, engine.Supervisor, logger)

			err = manager.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Worker stopped", "error", err)
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return errors.Join(err,
				stopSweeper(sweep, logger),
				manager.Stop(stopCtx),
				closeEngine(engine, logger))
		},
	}
}
