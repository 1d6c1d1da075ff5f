package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBSCAN_EmptyInput(t *testing.T) {
	clusters, err := DBSCAN(nil, 0.1, 2, Cosine)
	require.NoError(t, err)
	assert.Nil(t, clusters)
}

func TestDBSCAN_AllNoise(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	clusters, err := DBSCAN(vectors, 0.05, 2, Cosine)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestDBSCAN_ThreeIdenticalVectorsCluster(t *testing.T) {
	vectors := [][]float32{
		{1, 0},
		{1, 0},
		{1, 0},
	}

	clusters, err := DBSCAN(vectors, 0.01, 2, Cosine)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []int{0, 1, 2}, clusters[0])
}

func TestDBSCAN_TwoSeparateClusters(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0, 0},
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 1, 0, 0},
	}

	clusters, err := DBSCAN(vectors, 0.01, 2, Cosine)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.ElementsMatch(t, []int{0, 1}, clusters[0])
	assert.ElementsMatch(t, []int{2, 3}, clusters[1])
}

func TestDBSCAN_MinPointsExcludesSmallGroups(t *testing.T) {
	vectors := [][]float32{
		{1, 0},
		{1, 0},
		{0, 1},
		{0, 1},
		{0, 1},
	}

	// The first pair has only 2 neighbors (itself included), below
	// minPoints, so it stays noise while the second group of 3 clusters.
	clusters, err := DBSCAN(vectors, 0.01, 3, Cosine)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []int{2, 3, 4}, clusters[0])
}

func TestDBSCAN_DeterministicAcrossRuns(t *testing.T) {
	vectors := [][]float32{
		{1, 0},
		{1, 0},
		{1, 0},
		{0, 1},
		{0, 1},
	}

	first, err := DBSCAN(vectors, 0.01, 2, Cosine)
	require.NoError(t, err)
	second, err := DBSCAN(vectors, 0.01, 2, Cosine)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDBSCAN_NeighborhoodIsInclusiveOfSelf(t *testing.T) {
	// A single point with minPoints == 1 is its own neighborhood and forms
	// a cluster of size one, since regionQuery includes the point itself.
	vectors := [][]float32{{1, 2, 3}}

	clusters, err := DBSCAN(vectors, 0.0, 1, Cosine)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, []int{0}, clusters[0])
}
