// Package main provides the recruitflow command: the workflow automation API, its workers
// and the workflow definition tools.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/automaxprocs/maxprocs"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// .env is optional
	_ = godotenv.Load()

	_, _ = maxprocs.Set()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newApp().Run(ctx, os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "recruitflow",
		Usage:                 "Automate candidate workflows for the recruitment CRM",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewServeCommand(),
			NewWorkerCommand(),
			NewValidateCommand(),
			NewImportCommand(),
		},
	}
}
