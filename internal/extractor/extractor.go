// Package extractor derives FailureMetadata fields from a failure's free-form
// error text, stack trace, and any structured payload a test runner
// attached. It implements S2 of the detection pipeline (spec.md §4.2).
//
// Extraction is a chain of independent, overridable rules, each returning an
// optional value; later rules never overwrite a field an earlier rule (or
// the caller) already populated. Order within the rule list is part of the
// contract.
package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/flakysignal/detective/internal/models"
)

var (
	reSnippetExpect  = regexp.MustCompile(`expect\(([A-Za-z0-9_$.]+)\)`)
	reSnippetMatcher = regexp.MustCompile(`\.([A-Za-z0-9_]+)\(`)
	reSnippetValue   = regexp.MustCompile(`\.[A-Za-z0-9_]+\("([^"]*)"\)`)
	reSnippetTimeout = regexp.MustCompile(`timeout:\s*(\d+)`)

	reStackLine = regexp.MustCompile(`at\s+.*:(\d+):\d+`)

	reLocator = regexp.MustCompile(`(?i)(getBy[A-Za-z]+|queryBy[A-Za-z]+|findBy[A-Za-z]+|selector|locator|xpath|css)\(['"]([^'"]+)['"]\)`)

	reMatcher = regexp.MustCompile(`expect.*\.(to[A-Za-z]+)`)

	reTimeout = regexp.MustCompile(`(?i)timeout\s+(?:of\s+)?(\d+)\s*(ms|s)?`)

	reActualExpectedQuoted = regexp.MustCompile(`(?i)(received|actual|got):\s*"([^"]*)"`)
	reExpectedQuoted       = regexp.MustCompile(`(?i)(expected|should):\s*"([^"]*)"`)
	reActualLine           = regexp.MustCompile(`(?i)Actual:\s*([^\n]*)`)
	reExpectedLine         = regexp.MustCompile(`(?i)Expected:\s*([^\n]*)`)

	reBacktick = regexp.MustCompile("`([^`]+)`")

	reRunID = regexp.MustCompile(`/runs/(\d+)`)
)

// Extract returns a new TestFailure with FailureMetadata enriched from
// errorMessage, errorStack, and any structured payload. The input record is
// not mutated; fields already present in its metadata are preserved.
func Extract(f models.TestFailure) models.TestFailure {
	out := f

	out.Metadata = ruleStructuredErrorMap(out)
	out.Metadata = ruleSnippetAssertionParsing(out)
	out.Metadata = ruleStackLineNumber(out)
	out.Metadata = ruleLocator(out)
	out.Metadata = ruleMatcher(out)
	out.Metadata = ruleTimeout(out)
	out.Metadata = ruleActualExpected(out)
	out.Metadata = ruleBacktickSnippet(out)
	out.Metadata = ruleRunID(out)

	return out
}

// ruleStructuredErrorMap implements extraction rule 1: read a structured
// payload's fields directly, when the failure carries one.
func ruleStructuredErrorMap(f models.TestFailure) models.FailureMetadata {
	m := f.Metadata
	se := f.Structured
	if se == nil {
		return m
	}
	if se.Actual != "" {
		m = m.WithActualValue(se.Actual)
	}
	if se.Expected != "" {
		m = m.WithExpectedValue(se.Expected)
	}
	if se.Locator != "" {
		m = m.WithLocator(se.Locator)
	}
	if se.Matcher != "" {
		m = m.WithMatcher(se.Matcher)
	}
	if se.Timeout != 0 {
		m = m.WithTimeoutMS(se.Timeout)
	}
	if se.Location.Line != 0 {
		m = m.WithLineNumber(se.Location.Line)
	}
	if len(se.Snippet) > 0 {
		m = m.WithErrorSnippet(strings.Join(se.Snippet, "\n"))
	}
	return m
}

// snippetCandidates returns the text fragments rule 2 scans: the structured
// payload's snippet lines when present, otherwise the stack trace's lines.
func snippetCandidates(f models.TestFailure) []string {
	if f.Structured != nil && len(f.Structured.Snippet) > 0 {
		return f.Structured.Snippet
	}
	if f.ErrorStack == "" {
		return nil
	}
	return strings.Split(f.ErrorStack, "\n")
}

// ruleSnippetAssertionParsing implements extraction rule 2: best-effort
// regex parsing of assertion snippets for locator/matcher/expected/timeout,
// applied only to gaps left by earlier rules.
func ruleSnippetAssertionParsing(f models.TestFailure) models.FailureMetadata {
	m := f.Metadata
	for _, snippet := range snippetCandidates(f) {
		if !m.HasLocator() {
			if match := reSnippetExpect.FindStringSubmatch(snippet); match != nil {
				m = m.WithLocator(match[1])
			}
		}
		if !m.HasMatcher() {
			if match := reSnippetMatcher.FindStringSubmatch(snippet); match != nil {
				m = m.WithMatcher(match[1])
			}
		}
		if !m.HasExpectedValue() {
			if match := reSnippetValue.FindStringSubmatch(snippet); match != nil {
				m = m.WithExpectedValue(match[1])
			}
		}
		if !m.HasTimeoutMS() {
			if match := reSnippetTimeout.FindStringSubmatch(snippet); match != nil {
				if ms, err := strconv.Atoi(match[1]); err == nil {
					m = m.WithTimeoutMS(ms)
				}
			}
		}
	}
	return m
}

// ruleStackLineNumber implements extraction rule 3: first "at file:line:col"
// match in the stack text.
func ruleStackLineNumber(f models.TestFailure) models.FailureMetadata {
	m := f.Metadata
	if m.HasLineNumber() || f.ErrorStack == "" {
		return m
	}
	match := reStackLine.FindStringSubmatch(f.ErrorStack)
	if match == nil {
		return m
	}
	if n, err := strconv.Atoi(match[1]); err == nil {
		m = m.WithLineNumber(n)
	}
	return m
}

// ruleLocator implements extraction rule 4: a getByX/queryByX/findByX/
// selector/locator/xpath/css call in errorMessage.
func ruleLocator(f models.TestFailure) models.FailureMetadata {
	m := f.Metadata
	if m.HasLocator() {
		return m
	}
	match := reLocator.FindStringSubmatch(f.ErrorMessage)
	if match == nil {
		return m
	}
	return m.WithLocator(match[2])
}

// ruleMatcher implements extraction rule 5: expect(...).toX in errorMessage.
func ruleMatcher(f models.TestFailure) models.FailureMetadata {
	m := f.Metadata
	if m.HasMatcher() {
		return m
	}
	match := reMatcher.FindStringSubmatch(f.ErrorMessage)
	if match == nil {
		return m
	}
	return m.WithMatcher(match[1])
}

// ruleTimeout implements extraction rule 6: "timeout [of] N [ms|s]" in
// errorMessage, normalized to milliseconds.
func ruleTimeout(f models.TestFailure) models.FailureMetadata {
	m := f.Metadata
	if m.HasTimeoutMS() {
		return m
	}
	match := reTimeout.FindStringSubmatch(f.ErrorMessage)
	if match == nil {
		return m
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return m
	}
	if strings.EqualFold(match[2], "s") {
		n *= 1000
	}
	return m.WithTimeoutMS(n)
}

// ruleActualExpected implements extraction rule 7: quoted received/expected
// pairs first, falling back to line-oriented Actual:/Expected: text.
func ruleActualExpected(f models.TestFailure) models.FailureMetadata {
	m := f.Metadata
	if !m.HasActualValue() {
		if match := reActualExpectedQuoted.FindStringSubmatch(f.ErrorMessage); match != nil {
			m = m.WithActualValue(match[2])
		} else if match := reActualLine.FindStringSubmatch(f.ErrorMessage); match != nil {
			m = m.WithActualValue(strings.TrimSpace(match[1]))
		}
	}
	if !m.HasExpectedValue() {
		if match := reExpectedQuoted.FindStringSubmatch(f.ErrorMessage); match != nil {
			m = m.WithExpectedValue(match[2])
		} else if match := reExpectedLine.FindStringSubmatch(f.ErrorMessage); match != nil {
			m = m.WithExpectedValue(strings.TrimSpace(match[1]))
		}
	}
	return m
}

// ruleBacktickSnippet implements extraction rule 8: a backtick-enclosed span
// in errorMessage, used only when no snippet has been found yet.
func ruleBacktickSnippet(f models.TestFailure) models.FailureMetadata {
	m := f.Metadata
	if m.HasErrorSnippet() {
		return m
	}
	match := reBacktick.FindStringSubmatch(f.ErrorMessage)
	if match == nil {
		return m
	}
	return m.WithErrorSnippet(strings.TrimSpace(match[1]))
}

// ruleRunID implements extraction rule 9: a /runs/<N> capture from
// metadata.ReportLink.
func ruleRunID(f models.TestFailure) models.FailureMetadata {
	m := f.Metadata
	if m.HasRunID() || m.ReportLink == "" {
		return m
	}
	match := reRunID.FindStringSubmatch(m.ReportLink)
	if match == nil {
		return m
	}
	return m.WithRunID(match[1])
}
