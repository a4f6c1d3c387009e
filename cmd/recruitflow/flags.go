package main

import (
	"context"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/dukex/recruitflow/pkg/config"
	"github.com/dukex/recruitflow/pkg/log"
)

// logFlags are accepted by every command.
func logFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "Write logs to this file, rotated by size, instead of stderr",
			Sources: cli.EnvVars("LOG_FILE"),
		},
	}
}

func setupLog(command *cli.Command) io.Closer {
	return log.Setup(command.String("log-level"), log.Output{
		File:       command.String("log-file"),
		Format:     command.String("log-format"),
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
	})
}

// engineFlags configure the engine. They override the YAML file given with --config.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML engine configuration file",
			Sources: cli.EnvVars("RECRUITFLOW_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL for persistence (memory://, file://, postgres://, mongodb://)",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka broker addresses",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "kafka-consumer-group",
			Usage:   "Kafka consumer group shared by the workers",
			Sources: cli.EnvVars("KAFKA_CONSUMER_GROUP"),
		},
		&cli.StringSliceFlag{
			Name:    "redis-addrs",
			Usage:   "Redis addresses for execution caps and candidate locks shared across workers",
			Sources: cli.EnvVars("REDIS_ADDRS"),
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			Sources: cli.EnvVars("REDIS_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "timezone",
			Usage:   "Time zone schedules and daily caps are evaluated in",
			Sources: cli.EnvVars("TZ"),
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Usage:   "Maximum number of workflow runs executing at once",
			Sources: cli.EnvVars("CONCURRENCY"),
		},
		&cli.StringFlag{
			Name:    "company-name",
			Usage:   "Company name available to email templates",
			Sources: cli.EnvVars("COMPANY_NAME"),
		},
		&cli.StringFlag{
			Name:    "users-file",
			Usage:   "JSON file listing the recruiters actions can address",
			Sources: cli.EnvVars("USERS_FILE"),
		},
		&cli.StringFlag{
			Name:    "email-provider",
			Usage:   "Email provider (log, smtp)",
			Sources: cli.EnvVars("EMAIL_PROVIDER"),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Sources: cli.EnvVars("SMTP_HOST"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Sources: cli.EnvVars("SMTP_PORT"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Sources: cli.EnvVars("SMTP_USERNAME"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Sources: cli.EnvVars("SMTP_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address of outgoing emails",
			Sources: cli.EnvVars("SMTP_FROM"),
		},
		&cli.StringFlag{
			Name:    "sweep-schedule",
			Usage:   "Cron schedule of the DAYS_IN_STAGE sweep; empty disables it",
			Sources: cli.EnvVars("SWEEP_SCHEDULE"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	}
}

// engineConfig loads the configuration file and applies the flags that were set.
func engineConfig(_ context.Context, command *cli.Command) (config.Engine, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return cfg, err
	}

	overrides := map[string]func(){
		"database-url":         func() { cfg.DatabaseURL = command.String("database-url") },
		"event-bus":            func() { cfg.EventBus = command.String("event-bus") },
		"kafka-brokers":        func() { cfg.Kafka.Brokers = command.StringSlice("kafka-brokers") },
		"kafka-consumer-group": func() { cfg.Kafka.ConsumerGroup = command.String("kafka-consumer-group") },
		"redis-addrs":          func() { cfg.Redis.Addrs = command.StringSlice("redis-addrs") },
		"redis-password":       func() { cfg.Redis.Password = command.String("redis-password") },
		"timezone":             func() { cfg.Timezone = command.String("timezone") },
		"concurrency":          func() { cfg.Concurrency = int64(command.Int("concurrency")) },
		"company-name":         func() { cfg.CompanyName = command.String("company-name") },
		"users-file":           func() { cfg.UsersFile = command.String("users-file") },
		"email-provider":       func() { cfg.Email.Provider = command.String("email-provider") },
		"smtp-host":            func() { cfg.Email.SMTP.Host = command.String("smtp-host") },
		"smtp-port":            func() { cfg.Email.SMTP.Port = command.Int("smtp-port") },
		"smtp-username":        func() { cfg.Email.SMTP.Username = command.String("smtp-username") },
		"smtp-password":        func() { cfg.Email.SMTP.Password = command.String("smtp-password") },
		"smtp-from":            func() { cfg.Email.SMTP.From = command.String("smtp-from") },
		"sweep-schedule":       func() { cfg.Sweep.Schedule = command.String("sweep-schedule") },
		"tracing":              func() { cfg.Tracing = command.Bool("tracing") },
	}

	for name, apply := range overrides {
		if command.IsSet(name) {
			apply()
		}
	}

	return cfg, cfg.Validate()
}
