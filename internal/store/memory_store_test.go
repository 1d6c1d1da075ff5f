package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flakysignal/detective/internal/models"
)

func TestMemoryStore_FetchFailures_FiltersByWindow(t *testing.T) {
	now := time.Now().UTC()
	s := NewMemoryStore([]models.TestFailure{
		{ID: "old", Timestamp: now.AddDate(0, 0, -30)},
		{ID: "recent", Timestamp: now.AddDate(0, 0, -1)},
	})

	out, err := s.FetchFailures(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "recent", out[0].ID)
}

func TestMemoryStore_Seed_AppendsFailures(t *testing.T) {
	s := NewMemoryStore(nil)
	s.Seed(models.TestFailure{ID: "a", Timestamp: time.Now().UTC()})
	s.Seed(models.TestFailure{ID: "b", Timestamp: time.Now().UTC()})

	out, err := s.FetchFailures(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestMemoryStore_SaveAndFetchClusters(t *testing.T) {
	s := NewMemoryStore(nil)
	clusters := []models.FailureCluster{{ID: "c1"}, {ID: "c2"}}

	require.NoError(t, s.SaveClusters(context.Background(), clusters))

	out, err := s.FetchClusters(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, clusters, out)
}

func TestMemoryStore_FetchClusters_RespectsLimit(t *testing.T) {
	s := NewMemoryStore(nil)
	require.NoError(t, s.SaveClusters(context.Background(), []models.FailureCluster{
		{ID: "c1"}, {ID: "c2"}, {ID: "c3"},
	}))

	out, err := s.FetchClusters(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestMemoryStore_SaveClusters_ReplacesPreviousSet(t *testing.T) {
	s := NewMemoryStore(nil)
	require.NoError(t, s.SaveClusters(context.Background(), []models.FailureCluster{{ID: "old"}}))
	require.NoError(t, s.SaveClusters(context.Background(), []models.FailureCluster{{ID: "new"}}))

	out, err := s.FetchClusters(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].ID)
}

func TestMemoryStore_Close_IsNoop(t *testing.T) {
	s := NewMemoryStore(nil)
	assert.NoError(t, s.Close())
}
