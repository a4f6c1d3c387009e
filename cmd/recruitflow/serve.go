package main

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/dukex/recruitflow/pkg/cmd"
	"github.com/dukex/recruitflow/pkg/config"
	"github.com/dukex/recruitflow/pkg/log"
	"github.com/dukex/recruitflow/pkg/sweeper"
	"github.com/dukex/recruitflow/pkg/web"
)

const defaultPort = 9091

func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the API that receives candidate events",
		Flags: slices.Concat(
			[]cli.Flag{
				&cli.IntFlag{
					Name:    "port",
					Aliases: []string{"p"},
					Usage:   "Port to run the API server on",
					Value:   defaultPort,
					Sources: cli.EnvVars("PORT"),
				},
			},
			engineFlags(),
			logFlags(),
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			closer := setupLog(command)
			defer func() { _ = closer.Close() }()

			logger := log.WithModule("api")

			cfg, err := engineConfig(ctx, command)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Initializing Recruitflow API", "event_bus", cfg.EventBus)

			engine, err := cmd.NewEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}

			// a shared bus hands events to the workers; otherwise this process dispatches them
			var sink web.EventSink = web.NewDispatchSink(engine.Dispatcher)

			var sweep *sweeper.Sweeper

			if cfg.EventBus == config.EventBusKafka {
				sink = web.NewPublishSink(engine.EventBus)
			} else {
				sweep, err = newSweeper(ctx, cfg, engine, logger)
				if err != nil {
					return errors.Join(err, closeEngine(engine, logger))
				}
			}

			api := NewAPI(logger, engine.Repository, engine.Dispatcher, sink)

			err = api.Start(ctx, command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "API server stopped", "error", err)
			}

			return errors.Join(err, stopSweeper(sweep, logger), closeEngine(engine, logger))
		},
	}
}

// newSweeper starts the DAYS_IN_STAGE sweep unless the schedule is empty.
func newSweeper(ctx context.Context, cfg config.Engine, engine *cmd.Engine, logger *slog.Logger) (*sweeper.Sweeper, error) {
	if cfg.Sweep.Schedule == "" {
		logger.InfoContext(ctx, "DAYS_IN_STAGE sweep disabled")

		return nil, nil //nolint:nilnil // no sweeper is configured
	}

	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	sweep, err := sweeper.New(engine.Persistence.CandidateRepository(), engine.Dispatcher, cfg.Sweep.Schedule, logger,
		sweeper.WithLocation(location))
	if err != nil {
		return nil, err
	}

	return sweep, sweep.Start(ctx)
}

func stopSweeper(sweep *sweeper.Sweeper, logger *slog.Logger) error {
	if sweep == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := sweep.Stop(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to stop sweeper", "error", err)
	}

	return err
}

func closeEngine(engine *cmd.Engine, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := engine.Close(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to close engine", "error", err)
	}

	return err
}
