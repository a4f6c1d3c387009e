package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/dukex/recruitflow/pkg/cmd"
	"github.com/dukex/recruitflow/pkg/log"
	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/workflow"
)

var errNoDefinitions = errors.New("at least one workflow definition file is required")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check workflow definition files against the workflow schema",
		ArgsUsage: "FILE...",
		Action: func(_ context.Context, command *cli.Command) error {
			files := command.Args().Slice()
			if len(files) == 0 {
				return errNoDefinitions
			}

			invalid := 0

			for _, path := range files {
				wf, err := readDefinition(path)
				if err != nil {
					invalid++

					fmt.Fprintf(command.Root().ErrWriter, "%s: %v\n", path, err)

					continue
				}

				fmt.Fprintf(command.Root().Writer, "%s: ok (%s, %s, %d actions)\n", path, wf.Name, wf.Trigger.Type(), len(wf.Actions))
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d workflow definitions are invalid", invalid, len(files))
			}

			return nil
		},
	}
}

func NewImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create or update workflows from definition files",
		ArgsUsage: "FILE...",
		Flags: slices.Concat(
			[]cli.Flag{
				&cli.StringFlag{
					Name:     "database-url",
					Usage:    "Database connection URL for persistence",
					Required: true,
					Sources:  cli.EnvVars("DATABASE_URL"),
				},
			},
			logFlags(),
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			closer := setupLog(command)
			defer func() { _ = closer.Close() }()

			files := command.Args().Slice()
			if len(files) == 0 {
				return errNoDefinitions
			}

			logger := log.WithModule("import")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to open persistence: %w", err)
			}

			defer func() {
				err := store.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			repository := workflow.NewRepository(store)

			for _, path := range files {
				definition, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}

				wf, err := repository.Import(ctx, definition)
				if err != nil {
					return fmt.Errorf("failed to import %s: %w", path, err)
				}

				logger.InfoContext(ctx, "Workflow imported", "file", path, "workflow_id", wf.ID, "name", wf.Name)
				fmt.Fprintf(command.Root().Writer, "%s: imported as %s\n", path, wf.ID)
			}

			return nil
		},
	}
}

func readDefinition(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return models.ParseWorkflowDefinition(data)
}
