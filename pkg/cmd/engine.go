// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/recruitflow/pkg/actions"
	"github.com/dukex/recruitflow/pkg/config"
	"github.com/dukex/recruitflow/pkg/email"
	"github.com/dukex/recruitflow/pkg/eventbus"
	"github.com/dukex/recruitflow/pkg/notification"
	"github.com/dukex/recruitflow/pkg/otelhelper"
	"github.com/dukex/recruitflow/pkg/persistence"
	"github.com/dukex/recruitflow/pkg/workflow"
)

const serviceName = "recruitflow"

// Engine is the wired automation engine of one process.
type Engine struct {
	Persistence persistence.Persistence
	EventBus    eventbus.EventBus
	Executor    *workflow.Executor
	Supervisor  *workflow.Supervisor
	Dispatcher  *workflow.Dispatcher
	Repository  *workflow.Repository

	logger  *slog.Logger
	closers []func(ctx context.Context) error
}

// NewEngine connects the store, the event bus and the optional Redis server named by cfg and
// wires the dispatcher over them. Close releases everything NewEngine opened, also when it
// fails halfway.
func NewEngine(ctx context.Context, cfg config.Engine, logger *slog.Logger) (*Engine, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	engine := &Engine{logger: logger}

	err = engine.wire(ctx, cfg)
	if err != nil {
		return nil, errors.Join(err, engine.Close(ctx))
	}

	return engine, nil
}

func (e *Engine) wire(ctx context.Context, cfg config.Engine) error {
	location, err := cfg.Location()
	if err != nil {
		return err
	}

	tracer, err := e.tracer(ctx, cfg)
	if err != nil {
		return err
	}

	metrics, err := otelhelper.NewMetrics(serviceName)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	store, err := NewPersistence(ctx, e.logger, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open persistence: %w", err)
	}

	e.Persistence = store
	e.closers = append(e.closers, store.Close)

	bus, err := NewEventBus(cfg, e.logger)
	if err != nil {
		return err
	}

	e.EventBus = bus
	e.closers = append(e.closers, func(context.Context) error { return bus.Close() })

	client := NewRedisClient(cfg.Redis)
	if client != nil {
		err = client.Ping(ctx).Err()
		if err != nil {
			_ = client.Close()

			return fmt.Errorf("failed to reach Redis: %w", err)
		}

		e.closers = append(e.closers, func(context.Context) error { return client.Close() })
	}

	runner, err := e.actionRunner(cfg, store, bus)
	if err != nil {
		return err
	}

	e.Executor = workflow.NewExecutor(store, runner, e.logger,
		workflow.WithPublisher(bus),
		workflow.WithTracer(tracer),
		workflow.WithMetrics(metrics),
		workflow.WithRetry(cfg.RetryAttempts, cfg.RetryDelay))

	e.Supervisor = workflow.NewSupervisor(cfg.Concurrency, e.logger,
		workflow.WithCandidateLocker(NewCandidateLocker(client, cfg.Redis)),
		workflow.WithDeadLetterPublisher(bus),
		workflow.WithSupervisorMetrics(metrics))

	gate := workflow.NewGate(store.ExecutionRepository(), NewLimiter(client, store.ExecutionRepository(), location, e.logger), location)

	e.Dispatcher = workflow.NewDispatcher(store, gate, e.Executor, e.Supervisor, e.logger,
		workflow.WithDispatcherTracer(tracer),
		workflow.WithDispatcherMetrics(metrics))

	e.Repository = workflow.NewRepository(store)

	return nil
}

//nolint:ireturn // tracers are only exposed as the interface
func (e *Engine) tracer(ctx context.Context, cfg config.Engine) (trace.Tracer, error) {
	if !cfg.Tracing {
		return otelhelper.NoopTracer(serviceName), nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	e.closers = append(e.closers, shutdown)

	return tracer, nil
}

func (e *Engine) actionRunner(cfg config.Engine, store persistence.Persistence, bus eventbus.EventBus) (*actions.Executor, error) {
	emailService, err := NewEmailService(cfg.Email, e.logger)
	if err != nil {
		return nil, err
	}

	users, err := actions.LoadUserDirectory(cfg.UsersFile)
	if err != nil {
		return nil, err
	}

	return actions.NewExecutor(store, emailService, notification.NewEventBusNotifier(bus, e.logger), users, e.logger,
		actions.WithCompanyName(cfg.CompanyName),
		actions.WithTimeout(cfg.ActionTimeout)), nil
}

// NewEmailService returns the SMTP relay when configured and the log-only service otherwise.
//
//nolint:ireturn // the provider is chosen at runtime
func NewEmailService(cfg config.Email, logger *slog.Logger) (email.Service, error) {
	if cfg.Provider != config.EmailProviderSMTP {
		return email.NewLogService(logger), nil
	}

	service, err := email.NewSMTPService(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	}, logger)
	if err != nil {
		return nil, err
	}

	return service, nil
}

// Close drains the supervisor, then closes what NewEngine opened in reverse order.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error

	if e.Supervisor != nil {
		err := e.Supervisor.Shutdown(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	for i := len(e.closers) - 1; i >= 0; i-- {
		err := e.closers[i](ctx)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to release engine resource", "error", err)
			errs = append(errs, err)
		}
	}

	e.closers = nil

	return errors.Join(errs...)
}
