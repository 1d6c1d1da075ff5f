// Package assembly implements S6 (cluster assembly: common-pattern
// extraction, temporal statistics, pattern summaries, deterministic ids,
// size filtering) and S7 (rank & cap) of the detection pipeline, per
// spec.md §4.6–§4.7.
package assembly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/flakysignal/detective/internal/models"
	"github.com/flakysignal/detective/pkg/textutil"
)

const errorMessageTruncateLen = 200

// Assemble turns each discovered index set into a FailureCluster, discards
// clusters smaller than minClusterSize, and assigns deterministic ids of the
// form "{baseKey}-{index}" where index is the cluster's zero-based position
// among the surviving clusters, in discovery order.
func Assemble(indexSets [][]int, failures []models.TestFailure, baseKey string, minClusterSize int) []models.FailureCluster {
	var out []models.FailureCluster

	for _, idxSet := range indexSets {
		members := make([]models.TestFailure, len(idxSet))
		for i, idx := range idxSet {
			members[i] = failures[idx]
		}

		if len(members) < minClusterSize {
			continue
		}

		c := models.FailureCluster{
			Failures:       members,
			CommonPatterns: commonPatterns(members),
		}
		c.Metadata = temporalStats(members)
		c.FailurePattern, c.AssertionPattern, c.HasAssertionPattern = patternSummaries(c.CommonPatterns)
		c.ID = fmt.Sprintf("%s-%d", baseKey, len(out))

		out = append(out, c)
	}

	return out
}

// threshold returns ceil(0.5 * n), the minimum member count a value needs
// to be considered a common pattern (spec.md §4.6 step 1).
func threshold(n int) int {
	return int(math.Ceil(0.5 * float64(n)))
}

func commonPatterns(members []models.TestFailure) models.CommonPatterns {
	n := len(members)
	t := threshold(n)

	filePathCounts := map[string]int{}
	filePathOrder := []string{}
	lineCounts := map[int]int{}
	lineOrder := []int{}
	snippetCounts := map[string]int{}
	snippetOrder := []string{}
	locatorCounts := map[string]int{}
	locatorOrder := []string{}
	matcherCounts := map[string]int{}
	matcherOrder := []string{}
	timeoutCounts := map[int]int{}
	timeoutOrder := []int{}

	for _, f := range members {
		if f.TestFilePath != "" {
			if filePathCounts[f.TestFilePath] == 0 {
				filePathOrder = append(filePathOrder, f.TestFilePath)
			}
			filePathCounts[f.TestFilePath]++
		}
		if f.Metadata.HasLineNumber() {
			if lineCounts[f.Metadata.LineNumber] == 0 {
				lineOrder = append(lineOrder, f.Metadata.LineNumber)
			}
			lineCounts[f.Metadata.LineNumber]++
		}
		if f.Metadata.HasErrorSnippet() {
			if snippetCounts[f.Metadata.ErrorSnippet] == 0 {
				snippetOrder = append(snippetOrder, f.Metadata.ErrorSnippet)
			}
			snippetCounts[f.Metadata.ErrorSnippet]++
		}
		if f.Metadata.HasLocator() {
			if locatorCounts[f.Metadata.Locator] == 0 {
				locatorOrder = append(locatorOrder, f.Metadata.Locator)
			}
			locatorCounts[f.Metadata.Locator]++
		}
		if f.Metadata.HasMatcher() {
			if matcherCounts[f.Metadata.Matcher] == 0 {
				matcherOrder = append(matcherOrder, f.Metadata.Matcher)
			}
			matcherCounts[f.Metadata.Matcher]++
		}
		if f.Metadata.HasTimeoutMS() {
			if timeoutCounts[f.Metadata.TimeoutMS] == 0 {
				timeoutOrder = append(timeoutOrder, f.Metadata.TimeoutMS)
			}
			timeoutCounts[f.Metadata.TimeoutMS]++
		}
	}

	var patterns models.CommonPatterns
	for _, v := range filePathOrder {
		if filePathCounts[v] >= t {
			patterns.FilePaths = append(patterns.FilePaths, v)
		}
	}
	for _, v := range lineOrder {
		if lineCounts[v] >= t {
			patterns.LineNumbers = append(patterns.LineNumbers, v)
		}
	}
	for _, v := range snippetOrder {
		if snippetCounts[v] >= t {
			patterns.CodeSnippets = append(patterns.CodeSnippets, v)
		}
	}
	for _, v := range locatorOrder {
		if locatorCounts[v] >= t {
			patterns.Locators = append(patterns.Locators, v)
		}
	}
	for _, v := range matcherOrder {
		if matcherCounts[v] >= t {
			patterns.Matchers = append(patterns.Matchers, v)
		}
	}
	for _, v := range timeoutOrder {
		if timeoutCounts[v] >= t {
			patterns.Timeouts = append(patterns.Timeouts, v)
		}
	}

	return patterns
}

// temporalStats sorts members by timestamp ascending (stable tiebreak on
// id) and computes the cluster's firstSeen/lastSeen/averageTimeBetween and
// auditing fields, per spec.md §4.6 step 2.
func temporalStats(members []models.TestFailure) models.ClusterMetadata {
	sorted := append([]models.TestFailure(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	md := models.ClusterMetadata{FailureCount: len(sorted)}
	if len(sorted) == 0 {
		return md
	}

	md.FirstSeen = sorted[0].Timestamp
	md.LastSeen = sorted[len(sorted)-1].Timestamp

	if len(sorted) >= 2 {
		var total time.Duration
		for i := 1; i < len(sorted); i++ {
			total += sorted[i].Timestamp.Sub(sorted[i-1].Timestamp)
		}
		md.AverageTimeBetweenFailures = total / time.Duration(len(sorted)-1)
		md.HasAverageTimeBetween = true
	}

	for _, f := range members {
		md.FailureIDs = append(md.FailureIDs, f.ID)
		if f.Metadata.RunID != "" {
			md.RunIDs = append(md.RunIDs, f.Metadata.RunID)
		}
		md.FailureTimestamps = append(md.FailureTimestamps, f.Timestamp)
		md.ErrorMessages = append(md.ErrorMessages, textutil.TruncateRunes(f.ErrorMessage, errorMessageTruncateLen))
	}

	return md
}

// patternSummaries builds the human-readable failurePattern (always
// present) and assertionPattern (optional) strings, per spec.md §4.6 step 3.
func patternSummaries(p models.CommonPatterns) (failurePattern, assertionPattern string, hasAssertion bool) {
	switch {
	case len(p.FilePaths) > 0 && len(p.LineNumbers) > 0:
		failurePattern = fmt.Sprintf("Common failure at %s:%d", p.FilePaths[0], p.LineNumbers[0])
	case len(p.CodeSnippets) > 0:
		snippet := p.CodeSnippets[0]
		runes := []rune(snippet)
		if len(runes) > 100 {
			snippet = textutil.TruncateRunes(snippet, 100) + "..."
		}
		failurePattern = "Common code pattern: " + snippet
	default:
		failurePattern = "Similar test failures"
	}

	switch {
	case len(p.Locators) > 0 && len(p.Matchers) > 0:
		assertionPattern = fmt.Sprintf("%s on %s", p.Matchers[0], p.Locators[0])
		if len(p.Timeouts) > 0 {
			assertionPattern += fmt.Sprintf(" (%dms timeout)", p.Timeouts[0])
		}
		hasAssertion = true
	case len(p.Locators) > 0:
		assertionPattern = "Common locator: " + p.Locators[0]
		hasAssertion = true
	case len(p.Matchers) > 0:
		assertionPattern = "Common matcher: " + p.Matchers[0]
		hasAssertion = true
	}

	return failurePattern, assertionPattern, hasAssertion
}

// RankAndCap sorts clusters by failure count descending, ties broken by id
// ascending, and keeps the first maxClusters. maxClusters <= 0 means
// "return all" (spec.md §4.7).
func RankAndCap(clusters []models.FailureCluster, maxClusters int) []models.FailureCluster {
	sorted := append([]models.FailureCluster(nil), clusters...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Metadata.FailureCount != sorted[j].Metadata.FailureCount {
			return sorted[i].Metadata.FailureCount > sorted[j].Metadata.FailureCount
		}
		return sorted[i].ID < sorted[j].ID
	})

	if maxClusters > 0 && len(sorted) > maxClusters {
		sorted = sorted[:maxClusters]
	}
	return sorted
}
