package cmd

import (
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dukex/recruitflow/pkg/config"
	"github.com/dukex/recruitflow/pkg/persistence"
	"github.com/dukex/recruitflow/pkg/workflow"
)

// NewRedisClient returns nil when no Redis server is configured.
func NewRedisClient(cfg config.Redis) redis.UniversalClient {
	if !cfg.Enabled() {
		return nil
	}

	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewLimiter shares the execution caps through Redis when a client is given and counts
// stored executions otherwise.
//
//nolint:ireturn // the limiter is chosen at runtime
func NewLimiter(
	client redis.UniversalClient,
	executions persistence.ExecutionRepository,
	location *time.Location,
	logger *slog.Logger,
) workflow.Limiter {
	if client == nil {
		return workflow.NewStoreLimiter(executions, location)
	}

	return workflow.NewRedisLimiter(client, executions, location, logger)
}

func NewCandidateLocker(client redis.UniversalClient, cfg config.Redis) workflow.CandidateLocker {
	if client == nil {
		return workflow.LocalLocker{}
	}

	return workflow.NewRedisLocker(client, cfg.LockTTL, cfg.LockWait)
}
