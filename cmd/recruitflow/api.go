package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dukex/recruitflow/pkg/web"
	"github.com/dukex/recruitflow/pkg/workflow"
)

type API struct {
	logger     *slog.Logger
	repository *workflow.Repository
	runner     web.ManualRunner
	sink       web.EventSink
	validate   *validator.Validate
	app        *fiber.App
}

func NewAPI(
	logger *slog.Logger,
	repository *workflow.Repository,
	runner web.ManualRunner,
	sink web.EventSink,
) *API {
	return &API{
		logger:     logger,
		repository: repository,
		runner:     runner,
		sink:       sink,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	if a.app != nil {
		return a.app
	}

	handlers := web.NewAPIHandlers(a.repository, a.runner, a.sink, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Recruitflow API")
	})

	handlers.Register(app)

	a.app = app

	return app
}

// Start serves until ctx is done, then stops accepting requests and waits for the ones in
// flight.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	errs := make(chan error, 1)

	go func() {
		errs <- app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	a.logger.InfoContext(ctx, "API listening", "port", port)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	a.logger.InfoContext(ctx, "Shutting down API")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return app.ShutdownWithContext(shutdownCtx)
}
