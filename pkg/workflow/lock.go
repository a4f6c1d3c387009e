package workflow

import (
	"context"
	"sync"
)

// Unlock releases a candidate lock.
type Unlock func(ctx context.Context) error

// CandidateLocker excludes concurrent runs against the same candidate across processes.
// Within one process the Supervisor already runs a candidate's executions one at a time.
type CandidateLocker interface {
	Lock(ctx context.Context, candidateID string) (Unlock, error)
}

// LocalLocker is the single-process CandidateLocker: it never blocks.
type LocalLocker struct{}

func (LocalLocker) Lock(context.Context, string) (Unlock, error) {
	return func(context.Context) error { return nil }, nil
}

// keyedMutex hands out one mutex per key. Keys are workflow ids, a bounded set, so mutexes
// are never removed.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) Lock(key string) func() {
	value, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex) //nolint:forcetypeassert // only mutexes are stored

	mu.Lock()

	return mu.Unlock
}
