package store

import (
	"context"
	"sync"
	"time"

	"github.com/flakysignal/detective/internal/models"
)

// MemoryStore is an in-process DataStore backed by a guarded slice. It is
// the default "memory" backend (store.backend == "memory") and the store
// used by the pipeline's own tests.
type MemoryStore struct {
	mu       sync.RWMutex
	failures []models.TestFailure
	clusters []models.FailureCluster
}

// NewMemoryStore builds a MemoryStore seeded with the given failures.
func NewMemoryStore(seed []models.TestFailure) *MemoryStore {
	return &MemoryStore{failures: append([]models.TestFailure(nil), seed...)}
}

// Seed appends additional failures, for tests that build up a population
// incrementally.
func (m *MemoryStore) Seed(failures ...models.TestFailure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failures...)
}

func (m *MemoryStore) FetchFailures(_ context.Context, days int) ([]models.TestFailure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	out := make([]models.TestFailure, 0, len(m.failures))
	for _, f := range m.failures {
		if !f.Timestamp.Before(cutoff) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *MemoryStore) SaveClusters(_ context.Context, clusters []models.FailureCluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters = append([]models.FailureCluster(nil), clusters...)
	return nil
}

func (m *MemoryStore) FetchClusters(_ context.Context, limit int) ([]models.FailureCluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]models.FailureCluster(nil), m.clusters...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
