package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultLockTTL     = 5 * time.Minute
	DefaultLockWait    = 10 * time.Minute
	defaultLockPolling = 250 * time.Millisecond
)

var errLockBusy = errors.New("candidate lock busy")

// releaseScript deletes the lock only when it still holds our token, so an expired lock
// taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a CandidateLocker shared by every process using the same Redis. Locks
// expire after ttl so a crashed holder cannot block a candidate forever.
type RedisLocker struct {
	client  redis.UniversalClient
	ttl     time.Duration
	wait    time.Duration
	polling time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	if wait <= 0 {
		wait = DefaultLockWait
	}

	return &RedisLocker{client: client, ttl: ttl, wait: wait, polling: defaultLockPolling}
}

// Lock blocks until the candidate lock is acquired, the wait elapses or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, candidateID string) (Unlock, error) {
	key := fmt.Sprintf("%s:lock:candidate:%s", redisKeyPrefix, candidateID)
	token := uuid.NewString()

	backoff := retry.WithMaxDuration(l.wait, retry.NewConstant(l.polling))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return err
		}

		if !acquired {
			return retry.RetryableError(errLockBusy)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to lock candidate %s: %w", candidateID, err)
	}

	return func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("failed to unlock candidate %s: %w", candidateID, err)
		}

		if deleted == 0 {
			return fmt.Errorf("%w: %s", ErrLockNotHeld, candidateID)
		}

		return nil
	}, nil
}
