// Package store implements failure retrieval and S8 (cluster
// persistence) of the detection pipeline (spec.md §6): the DataStore
// collaborator contract plus four concrete bindings — in-memory, local JSON
// file, Firestore, and Neo4j.
package store

import (
	"context"
	"errors"

	"github.com/flakysignal/detective/internal/models"
)

// ErrNotFound is a sentinel for a lookup by id that finds nothing. None of
// the DataStore bindings in this package return it.
var ErrNotFound = errors.New("not found")

// DataStore is the sole persistence collaborator contract a detection pass
// needs (spec.md §6): read the recent failure population, and write/read
// back the clusters a pass produced.
type DataStore interface {
	// FetchFailures returns every TestFailure recorded within the last days
	// days, in no particular order.
	FetchFailures(ctx context.Context, days int) ([]models.TestFailure, error)

	// SaveClusters persists the given clusters, replacing any previously
	// saved clusters for the same run.
	SaveClusters(ctx context.Context, clusters []models.FailureCluster) error

	// FetchClusters returns the most recently saved clusters, ranked order
	// preserved. limit <= 0 means "return all".
	FetchClusters(ctx context.Context, limit int) ([]models.FailureCluster, error)

	// Close releases any resources held by the store.
	Close() error
}
