package assembly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flakysignal/detective/internal/models"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestAssemble_DeterministicIDsAndSizeFiltering(t *testing.T) {
	failures := []models.TestFailure{
		{ID: "a", TestFilePath: "x.spec.ts", Timestamp: mustTime(t, "2026-01-01T00:00:00Z")},
		{ID: "b", TestFilePath: "x.spec.ts", Timestamp: mustTime(t, "2026-01-01T01:00:00Z")},
		{ID: "c", TestFilePath: "y.spec.ts", Timestamp: mustTime(t, "2026-01-01T02:00:00Z")},
	}

	// One cluster of size 2 (kept), one cluster of size 1 (dropped by
	// minClusterSize 2).
	indexSets := [][]int{{0, 1}, {2}}

	clusters := Assemble(indexSets, failures, "2026-01-01", 2)

	require.Len(t, clusters, 1)
	assert.Equal(t, "2026-01-01-0", clusters[0].ID)
	assert.Equal(t, 2, clusters[0].Metadata.FailureCount)
}

func TestAssemble_IDIndexFollowsSurvivingPosition(t *testing.T) {
	failures := []models.TestFailure{
		{ID: "a", Timestamp: mustTime(t, "2026-01-01T00:00:00Z")},
		{ID: "b", Timestamp: mustTime(t, "2026-01-01T00:00:00Z")},
		{ID: "c", Timestamp: mustTime(t, "2026-01-01T00:00:00Z")},
		{ID: "d", Timestamp: mustTime(t, "2026-01-01T00:00:00Z")},
	}

	// First index set is below minClusterSize and dropped; the second
	// surviving cluster must still be assigned index 0, not 1.
	indexSets := [][]int{{0}, {1, 2, 3}}

	clusters := Assemble(indexSets, failures, "2026-01-02", 2)

	require.Len(t, clusters, 1)
	assert.Equal(t, "2026-01-02-0", clusters[0].ID)
}

func TestAssemble_CommonPatternThreshold(t *testing.T) {
	// 3 members, threshold = ceil(0.5*3) = 2. A locator shared by 2 of 3
	// members clears the threshold; one held by only 1 does not.
	failures := []models.TestFailure{
		{ID: "a", Timestamp: mustTime(t, "2026-01-01T00:00:00Z"), Metadata: models.FailureMetadata{}.WithLocator("button.login")},
		{ID: "b", Timestamp: mustTime(t, "2026-01-01T00:01:00Z"), Metadata: models.FailureMetadata{}.WithLocator("button.login")},
		{ID: "c", Timestamp: mustTime(t, "2026-01-01T00:02:00Z"), Metadata: models.FailureMetadata{}.WithLocator("button.other")},
	}

	clusters := Assemble([][]int{{0, 1, 2}}, failures, "2026-01-01", 1)

	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"button.login"}, clusters[0].CommonPatterns.Locators)
}

func TestAssemble_TemporalStats(t *testing.T) {
	failures := []models.TestFailure{
		{ID: "b", Timestamp: mustTime(t, "2026-01-01T02:00:00Z")},
		{ID: "a", Timestamp: mustTime(t, "2026-01-01T00:00:00Z")},
		{ID: "c", Timestamp: mustTime(t, "2026-01-01T04:00:00Z")},
	}

	clusters := Assemble([][]int{{0, 1, 2}}, failures, "2026-01-01", 1)

	require.Len(t, clusters, 1)
	md := clusters[0].Metadata
	assert.Equal(t, mustTime(t, "2026-01-01T00:00:00Z"), md.FirstSeen)
	assert.Equal(t, mustTime(t, "2026-01-01T04:00:00Z"), md.LastSeen)
	assert.True(t, md.HasAverageTimeBetween)
	assert.Equal(t, 2*time.Hour, md.AverageTimeBetweenFailures)
}

func TestAssemble_SingleMemberHasNoAverageTimeBetween(t *testing.T) {
	failures := []models.TestFailure{
		{ID: "a", Timestamp: mustTime(t, "2026-01-01T00:00:00Z")},
	}

	clusters := Assemble([][]int{{0}}, failures, "2026-01-01", 1)

	require.Len(t, clusters, 1)
	assert.False(t, clusters[0].Metadata.HasAverageTimeBetween)
}

func TestAssemble_ErrorMessagesAreTruncated(t *testing.T) {
	long := ""
	for i := 0; i < 250; i++ {
		long += "x"
	}
	failures := []models.TestFailure{
		{ID: "a", Timestamp: mustTime(t, "2026-01-01T00:00:00Z"), ErrorMessage: long},
	}

	clusters := Assemble([][]int{{0}}, failures, "2026-01-01", 1)

	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Metadata.ErrorMessages, 1)
	assert.Len(t, clusters[0].Metadata.ErrorMessages[0], 200)
}

func TestAssemble_FailurePattern_FileAndLine(t *testing.T) {
	failures := []models.TestFailure{
		{ID: "a", TestFilePath: "x.spec.ts", Timestamp: mustTime(t, "2026-01-01T00:00:00Z"), Metadata: models.FailureMetadata{}.WithLineNumber(10)},
		{ID: "b", TestFilePath: "x.spec.ts", Timestamp: mustTime(t, "2026-01-01T00:01:00Z"), Metadata: models.FailureMetadata{}.WithLineNumber(10)},
	}

	clusters := Assemble([][]int{{0, 1}}, failures, "2026-01-01", 1)

	require.Len(t, clusters, 1)
	assert.Equal(t, "Common failure at x.spec.ts:10", clusters[0].FailurePattern)
}

func TestAssemble_FailurePattern_FallsBackToGenericSummary(t *testing.T) {
	failures := []models.TestFailure{
		{ID: "a", Timestamp: mustTime(t, "2026-01-01T00:00:00Z")},
		{ID: "b", Timestamp: mustTime(t, "2026-01-01T00:01:00Z")},
	}

	clusters := Assemble([][]int{{0, 1}}, failures, "2026-01-01", 1)

	require.Len(t, clusters, 1)
	assert.Equal(t, "Similar test failures", clusters[0].FailurePattern)
	assert.False(t, clusters[0].HasAssertionPattern)
}

func TestAssemble_AssertionPattern_MatcherAndLocatorAndTimeout(t *testing.T) {
	failures := []models.TestFailure{
		{ID: "a", Timestamp: mustTime(t, "2026-01-01T00:00:00Z"), Metadata: models.FailureMetadata{}.WithLocator("button.login").WithMatcher("toBeVisible").WithTimeoutMS(5000)},
		{ID: "b", Timestamp: mustTime(t, "2026-01-01T00:01:00Z"), Metadata: models.FailureMetadata{}.WithLocator("button.login").WithMatcher("toBeVisible").WithTimeoutMS(5000)},
	}

	clusters := Assemble([][]int{{0, 1}}, failures, "2026-01-01", 1)

	require.Len(t, clusters, 1)
	assert.True(t, clusters[0].HasAssertionPattern)
	assert.Equal(t, "toBeVisible on button.login (5000ms timeout)", clusters[0].AssertionPattern)
}

func TestRankAndCap_SortsByFailureCountDescending(t *testing.T) {
	clusters := []models.FailureCluster{
		{ID: "2026-01-01-0", Metadata: models.ClusterMetadata{FailureCount: 2}},
		{ID: "2026-01-01-1", Metadata: models.ClusterMetadata{FailureCount: 5}},
		{ID: "2026-01-01-2", Metadata: models.ClusterMetadata{FailureCount: 3}},
	}

	ranked := RankAndCap(clusters, 0)

	require.Len(t, ranked, 3)
	assert.Equal(t, "2026-01-01-1", ranked[0].ID)
	assert.Equal(t, "2026-01-01-2", ranked[1].ID)
	assert.Equal(t, "2026-01-01-0", ranked[2].ID)
}

func TestRankAndCap_TiesBrokenByIDAscending(t *testing.T) {
	clusters := []models.FailureCluster{
		{ID: "2026-01-01-1", Metadata: models.ClusterMetadata{FailureCount: 4}},
		{ID: "2026-01-01-0", Metadata: models.ClusterMetadata{FailureCount: 4}},
	}

	ranked := RankAndCap(clusters, 0)

	require.Len(t, ranked, 2)
	assert.Equal(t, "2026-01-01-0", ranked[0].ID)
	assert.Equal(t, "2026-01-01-1", ranked[1].ID)
}

func TestRankAndCap_CapsToMaxClusters(t *testing.T) {
	var clusters []models.FailureCluster
	for i := 0; i < 10; i++ {
		clusters = append(clusters, models.FailureCluster{
			ID:       string(rune('a' + i)),
			Metadata: models.ClusterMetadata{FailureCount: 2},
		})
	}

	ranked := RankAndCap(clusters, 3)
	assert.Len(t, ranked, 3)
}

func TestRankAndCap_ZeroOrNegativeMeansReturnAll(t *testing.T) {
	clusters := []models.FailureCluster{
		{ID: "a", Metadata: models.ClusterMetadata{FailureCount: 1}},
		{ID: "b", Metadata: models.ClusterMetadata{FailureCount: 2}},
	}

	assert.Len(t, RankAndCap(clusters, 0), 2)
	assert.Len(t, RankAndCap(clusters, -1), 2)
}
