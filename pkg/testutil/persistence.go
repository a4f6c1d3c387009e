package testutil

import (
	"context"
	"sync"

	"github.com/dukex/recruitflow/pkg/models"
	"github.com/dukex/recruitflow/pkg/persistence"
)

// FailingCandidateSaves wraps store so that the next failures candidate saves return err
// without writing. Every other call goes to store.
func FailingCandidateSaves(store persistence.Persistence, failures int, err error) persistence.Persistence {
	return &failingStore{
		Persistence: store,
		candidates: &failingCandidates{
			CandidateRepository: store.CandidateRepository(),
			failures:            failures,
			err:                 err,
		},
	}
}

type failingStore struct {
	persistence.Persistence

	candidates *failingCandidates
}

//nolint:ireturn // satisfies persistence.Persistence
func (s *failingStore) CandidateRepository() persistence.CandidateRepository {
	return s.candidates
}

type failingCandidates struct {
	persistence.CandidateRepository

	mu       sync.Mutex
	failures int
	err      error
}

func (r *failingCandidates) Save(ctx context.Context, candidate *models.Candidate) error {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()

		return r.err
	}
	r.mu.Unlock()

	return r.CandidateRepository.Save(ctx, candidate)
}
