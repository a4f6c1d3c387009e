package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

const (
	redisKeyPrefix = "recruitflow"

	// candidate counters are re-seeded from the store after this long
	candidateCounterTTL = 7 * 24 * time.Hour
)

// RedisLimiter enforces execution caps with Redis counters so that several dispatcher
// processes share them. A counter missing from Redis is seeded from the execution store,
// then every reservation increments it and is rolled back when it exceeds the cap.
type RedisLimiter struct {
	client     redis.UniversalClient
	executions persistence.ExecutionRepository
	location   *time.Location
	logger     *slog.Logger
}

func NewRedisLimiter(
	client redis.UniversalClient,
	executions persistence.ExecutionRepository,
	location *time.Location,
	logger *slog.Logger,
) *RedisLimiter {
	if location == nil {
		location = time.UTC
	}

	return &RedisLimiter{
		client:     client,
		executions: executions,
		location:   location,
		logger:     logger.With("module", "redis_limiter"),
	}
}

func (l *RedisLimiter) Reserve(ctx context.Context, workflow *models.Workflow, candidateID string, now time.Time) (Reservation, error) {
	reservation := &redisReservation{client: l.client}

	if limit := workflow.MaxExecutionsPerDay; limit != nil {
		midnight := StartOfDay(now, l.location)
		key := fmt.Sprintf("%s:cap:%s:day:%s", redisKeyPrefix, workflow.ID, midnight.Format(time.DateOnly))
		ttl := midnight.AddDate(0, 0, 1).Sub(now) + time.Hour

		filter := models.ExecutionFilter{WorkflowID: workflow.ID, Since: midnight}

		err := l.take(ctx, reservation, key, ttl, *limit, filter)
		if err != nil {
			return nil, suppressionOr(err, ReasonDailyCap, "daily execution cap reached")
		}
	}

	if limit := workflow.MaxExecutionsPerCandidate; limit != nil {
		key := fmt.Sprintf("%s:cap:%s:candidate:%s", redisKeyPrefix, workflow.ID, candidateID)
		filter := models.ExecutionFilter{WorkflowID: workflow.ID, CandidateID: candidateID}

		err := l.take(ctx, reservation, key, candidateCounterTTL, *limit, filter)
		if err != nil {
			// the daily counter stays one too high until it expires at the next local midnight
			releaseErr := reservation.Release(context.WithoutCancel(ctx))
			if releaseErr != nil {
				l.logger.WarnContext(ctx, "Failed to release execution reservation",
					"workflow_id", workflow.ID, "candidate_id", candidateID, "error", releaseErr)
			}

			return nil, suppressionOr(err, ReasonCandidateCap, "per-candidate execution cap reached")
		}
	}

	return reservation, nil
}

var errCapReached = errors.New("cap reached")

func (l *RedisLimiter) take(
	ctx context.Context,
	reservation *redisReservation,
	key string,
	ttl time.Duration,
	limit int,
	filter models.ExecutionFilter,
) error {
	exists, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to read counter %s: %w", key, err)
	}

	if exists == 0 {
		count, err := l.executions.Count(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to seed counter %s: %w", key, err)
		}

		// only one seeder wins; the others fall through to the increment
		err = l.client.SetNX(ctx, key, count, ttl).Err()
		if err != nil {
			return fmt.Errorf("failed to seed counter %s: %w", key, err)
		}
	}

	value, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment counter %s: %w", key, err)
	}

	if value > int64(limit) {
		err = l.client.Decr(ctx, key).Err()
		if err != nil {
			return fmt.Errorf("failed to roll back counter %s: %w", key, err)
		}

		return errCapReached
	}

	reservation.keys = append(reservation.keys, key)

	return nil
}

func suppressionOr(err error, reason, detail string) error {
	if errors.Is(err, errCapReached) {
		return &Suppression{Reason: reason, Detail: detail}
	}

	return err
}

type redisReservation struct {
	client redis.UniversalClient
	keys   []string
}

func (r *redisReservation) Release(ctx context.Context) error {
	var errs []error

	for _, key := range r.keys {
		err := r.client.Decr(ctx, key).Err()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to release counter %s: %w", key, err))
		}
	}

	r.keys = nil

	return errors.Join(errs...)
}
