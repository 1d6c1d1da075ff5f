// Package context builds the newline-joined text blob used as embedding
// input for a failure (S3, spec.md §4.3). Field order and punctuation are a
// contract: they keep embeddings stable across reimplementations of this
// pipeline, so this package must not reorder or reformat fields.
package context

import (
	"fmt"
	"strings"

	"github.com/flakysignal/detective/internal/models"
)

// Build renders an enriched failure to its embedding-input text. Test, File,
// and Error are always included; every other line is emitted only when its
// source field is present.
func Build(f models.TestFailure) string {
	var lines []string

	lines = append(lines, "Test: "+f.TestTitle)
	lines = append(lines, "File: "+f.TestFilePath)

	m := f.Metadata
	if m.ProjectName != "" {
		lines = append(lines, "Project: "+m.ProjectName)
	}
	if m.SuiteName != "" {
		lines = append(lines, "Suite: "+m.SuiteName)
	}
	if m.HasLineNumber() {
		lines = append(lines, fmt.Sprintf("Line: %d", m.LineNumber))
	}
	if m.HasLocator() {
		lines = append(lines, "Locator: "+m.Locator)
	}
	if m.HasMatcher() {
		lines = append(lines, "Matcher: "+m.Matcher)
	}
	if m.HasActualValue() {
		lines = append(lines, `Actual: "`+m.ActualValue+`"`)
	}
	if m.HasExpectedValue() {
		lines = append(lines, `Expected: "`+m.ExpectedValue+`"`)
	}
	if m.HasTimeoutMS() {
		lines = append(lines, fmt.Sprintf("Timeout: %dms", m.TimeoutMS))
	}
	if m.HasErrorSnippet() {
		lines = append(lines, "Code: "+m.ErrorSnippet)
	}
	lines = append(lines, "Error: "+f.ErrorMessage)

	return strings.Join(lines, "\n")
}
