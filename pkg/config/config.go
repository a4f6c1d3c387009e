// Package config provides the engine configuration shared by the recruitflow commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	EmailProviderLog  = "log"
	EmailProviderSMTP = "smtp"

	EventBusGoChannel = "gochannel"
	EventBusKafka     = "kafka"
)

// Engine configures the dispatcher, the orchestrator and their collaborators. It is read
// from an optional YAML file; command-line flags override individual fields.
type Engine struct {
	DatabaseURL string `yaml:"database_url" validate:"required"`
	EventBus    string `yaml:"event_bus"    validate:"required,oneof=gochannel kafka"`
	Timezone    string `yaml:"timezone"     validate:"required,timezone"`
	CompanyName string `yaml:"company_name"`
	UsersFile   string `yaml:"users_file"`
	Tracing     bool   `yaml:"tracing"`

	Concurrency   int64         `yaml:"concurrency"    validate:"min=1"`
	ActionTimeout time.Duration `yaml:"action_timeout" validate:"min=0"`
	RetryAttempts uint64        `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"    validate:"min=0"`

	Sweep Sweep `yaml:"sweep"`
	Email Email `yaml:"email"`
	Kafka Kafka `yaml:"kafka" validate:"-"`
	Redis Redis `yaml:"redis"`
}

// Sweep configures the DAYS_IN_STAGE sweeper. An empty schedule disables it.
type Sweep struct {
	Schedule string `yaml:"schedule" validate:"omitempty,cron"`
}

type Email struct {
	Provider string `yaml:"provider" validate:"required,oneof=log smtp"`
	SMTP     SMTP   `yaml:"smtp"     validate:"-"`
}

type SMTP struct {
	Host     string `yaml:"host"      validate:"required"`
	Port     int    `yaml:"port"      validate:"required,min=1,max=65535"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"      validate:"required,email"`
	FromName string `yaml:"from_name"`
}

type Kafka struct {
	Brokers       []string `yaml:"brokers"        validate:"required,min=1,dive,hostname_port"`
	ConsumerGroup string   `yaml:"consumer_group" validate:"required"`
}

// Redis enables the shared execution caps and candidate locks used when several worker
// processes dispatch. Without addresses both stay process-local.
type Redis struct {
	Addrs    []string      `yaml:"addrs"     validate:"omitempty,dive,hostname_port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"        validate:"min=0"`
	LockTTL  time.Duration `yaml:"lock_ttl"  validate:"min=0"`
	LockWait time.Duration `yaml:"lock_wait" validate:"min=0"`
}

// Enabled reports whether a Redis server is configured.
func (r Redis) Enabled() bool {
	return len(r.Addrs) > 0
}

// Default returns the single-process development configuration.
func Default() Engine {
	return Engine{
		DatabaseURL:   "memory://",
		EventBus:      EventBusGoChannel,
		Timezone:      "UTC",
		CompanyName:   "Our Company",
		Concurrency:   8,
		ActionTimeout: 30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    200 * time.Millisecond,
		Sweep:         Sweep{Schedule: "0 * * * *"},
		Email:         Email{Provider: EmailProviderLog},
		Kafka:         Kafka{ConsumerGroup: "recruitflow-workers"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns the defaults.
func Load(path string) (Engine, error) {
	engine := Default()
	if path == "" {
		return engine, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return engine, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	err = yaml.Unmarshal(data, &engine)
	if err != nil {
		return engine, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return engine, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration and reports every invalid field. The Kafka and SMTP
// sections are only checked when selected.
func (e Engine) Validate() error {
	errs := fieldErrors(validate.Struct(e))

	if e.EventBus == EventBusKafka {
		errs = append(errs, fieldErrors(validate.Struct(e.Kafka))...)
	}

	if e.Email.Provider == EmailProviderSMTP {
		errs = append(errs, fieldErrors(validate.Struct(e.Email.SMTP))...)
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

func fieldErrors(err error) []error {
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return []error{err}
	}

	errs := make([]error, 0, len(invalid))
	for _, field := range invalid {
		errs = append(errs, fmt.Errorf("%s: failed on %q", field.Namespace(), field.Tag()))
	}

	return errs
}

// Location loads the time zone schedules and daily caps are evaluated in.
func (e Engine) Location() (*time.Location, error) {
	location, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", e.Timezone, err)
	}

	return location, nil
}
