// Package models holds the data shapes shared across the detection pipeline:
// raw failures, their enriched metadata, embedded vectors, and the clusters
// assembled from them.
package models

import (
	"encoding/json"
	"time"
)

// TestFailure is one observed failure of one test at one time.
type TestFailure struct {
	ID           string
	TestTitle    string
	TestFilePath string
	ErrorMessage string
	ErrorStack   string
	Timestamp    time.Time
	Metadata     FailureMetadata

	// Structured carries a pre-parsed error payload when the test runner
	// emits one (e.g. Playwright's expect() failure object) instead of,
	// or alongside, free-form ErrorMessage text. Rule 1 of the pattern
	// extractor (spec.md §4.2) reads from here when present.
	Structured *StructuredError
}

// StructuredError is the implementation-defined side-channel payload rule 1
// of the pattern extractor reads from: a structured assertion-failure object
// a test runner may attach to a TestFailure instead of forcing the extractor
// to regex-parse free text.
type StructuredError struct {
	Message  string
	Actual   string
	Expected string
	Locator  string
	Matcher  string
	Timeout  int
	Location StructuredLocation
	Snippet  []string
}

// StructuredLocation is the source location embedded in a StructuredError.
type StructuredLocation struct {
	File string
	Line int
}

// FailureMetadata holds derived and caller-supplied annotations for a
// failure. Every field is independently optional. Fields with a HasX
// accessor record explicit setting separately, so a value set to "" or 0
// through WithX is distinguishable from one never set; ProjectName,
// SuiteName, DurationMS and ReportLink carry no such flag, and for them a
// zero value means "absent".
type FailureMetadata struct {
	ErrorSnippet  string
	LineNumber    int
	ProjectName   string
	SuiteName     string
	Locator       string
	Matcher       string
	TimeoutMS     int
	DurationMS    int
	ActualValue   string
	ExpectedValue string
	RunID         string
	ReportLink    string

	// hasX tracks which fields were explicitly set, so zero values
	// ("" / 0) are distinguishable from "never set" for the purposes of
	// extractor idempotence (§4.2: extracted values never overwrite
	// caller-supplied ones) and context construction (§4.3: only
	// present fields are rendered).
	hasErrorSnippet  bool
	hasLineNumber    bool
	hasLocator       bool
	hasMatcher       bool
	hasTimeoutMS     bool
	hasActualValue   bool
	hasExpectedValue bool
	hasRunID         bool
}

// HasErrorSnippet reports whether ErrorSnippet was explicitly set.
func (m FailureMetadata) HasErrorSnippet() bool { return m.hasErrorSnippet }

// HasLineNumber reports whether LineNumber was explicitly set.
func (m FailureMetadata) HasLineNumber() bool { return m.hasLineNumber }

// HasLocator reports whether Locator was explicitly set.
func (m FailureMetadata) HasLocator() bool { return m.hasLocator }

// HasMatcher reports whether Matcher was explicitly set.
func (m FailureMetadata) HasMatcher() bool { return m.hasMatcher }

// HasTimeoutMS reports whether TimeoutMS was explicitly set.
func (m FailureMetadata) HasTimeoutMS() bool { return m.hasTimeoutMS }

// HasActualValue reports whether ActualValue was explicitly set.
func (m FailureMetadata) HasActualValue() bool { return m.hasActualValue }

// HasExpectedValue reports whether ExpectedValue was explicitly set.
func (m FailureMetadata) HasExpectedValue() bool { return m.hasExpectedValue }

// HasRunID reports whether RunID was explicitly set.
func (m FailureMetadata) HasRunID() bool { return m.hasRunID }

// WithErrorSnippet returns a copy of m with ErrorSnippet set, unless it is
// already set (extraction never overwrites).
func (m FailureMetadata) WithErrorSnippet(v string) FailureMetadata {
	if m.hasErrorSnippet {
		return m
	}
	m.ErrorSnippet, m.hasErrorSnippet = v, true
	return m
}

// WithLineNumber returns a copy of m with LineNumber set, unless already set.
func (m FailureMetadata) WithLineNumber(v int) FailureMetadata {
	if m.hasLineNumber {
		return m
	}
	m.LineNumber, m.hasLineNumber = v, true
	return m
}

// WithLocator returns a copy of m with Locator set, unless already set.
func (m FailureMetadata) WithLocator(v string) FailureMetadata {
	if m.hasLocator {
		return m
	}
	m.Locator, m.hasLocator = v, true
	return m
}

// WithMatcher returns a copy of m with Matcher set, unless already set.
func (m FailureMetadata) WithMatcher(v string) FailureMetadata {
	if m.hasMatcher {
		return m
	}
	m.Matcher, m.hasMatcher = v, true
	return m
}

// WithTimeoutMS returns a copy of m with TimeoutMS set, unless already set.
func (m FailureMetadata) WithTimeoutMS(v int) FailureMetadata {
	if m.hasTimeoutMS {
		return m
	}
	m.TimeoutMS, m.hasTimeoutMS = v, true
	return m
}

// WithActualValue returns a copy of m with ActualValue set, unless already set.
func (m FailureMetadata) WithActualValue(v string) FailureMetadata {
	if m.hasActualValue {
		return m
	}
	m.ActualValue, m.hasActualValue = v, true
	return m
}

// WithExpectedValue returns a copy of m with ExpectedValue set, unless already set.
func (m FailureMetadata) WithExpectedValue(v string) FailureMetadata {
	if m.hasExpectedValue {
		return m
	}
	m.ExpectedValue, m.hasExpectedValue = v, true
	return m
}

// WithRunID returns a copy of m with RunID set, unless already set.
func (m FailureMetadata) WithRunID(v string) FailureMetadata {
	if m.hasRunID {
		return m
	}
	m.RunID, m.hasRunID = v, true
	return m
}

// failureMetadataJSON is FailureMetadata's on-the-wire shape. Plain struct
// reflection (encoding/json, Firestore's DataTo) only sees exported
// fields, so it silently drops the hasX flags and resets every one of
// them to false on decode — even when the field itself carries a real,
// caller-supplied value. That breaks extractor idempotence (spec.md
// §4.2) for any failure round-tripped through a persisted DataStore.
// MarshalJSON/UnmarshalJSON below carry the flags explicitly as a
// sidecar "set" list so our own round trips (file store, Firestore,
// Neo4j — all of which route through this type's JSON encoding) restore
// them exactly; a decode of data that lacks the "set" list entirely
// (an externally-authored document, or an older persisted record) falls
// back to treating any non-zero field value as set, which only
// conflates "never set" with "explicitly set to the zero value" — a
// conflation spec.md §9 says serialization is allowed to make.
type failureMetadataJSON struct {
	ErrorSnippet  string `json:"errorSnippet,omitempty"`
	LineNumber    int    `json:"lineNumber,omitempty"`
	ProjectName   string `json:"projectName,omitempty"`
	SuiteName     string `json:"suiteName,omitempty"`
	Locator       string `json:"locator,omitempty"`
	Matcher       string `json:"matcher,omitempty"`
	TimeoutMS     int    `json:"timeoutMs,omitempty"`
	DurationMS    int    `json:"durationMs,omitempty"`
	ActualValue   string `json:"actualValue,omitempty"`
	ExpectedValue string `json:"expectedValue,omitempty"`
	RunID         string `json:"runId,omitempty"`
	ReportLink    string `json:"reportLink,omitempty"`

	// Set names which of the optional fields above were explicitly
	// populated on the value this was marshalled from, independent of
	// whether the value itself is the zero value.
	Set []string `json:"set,omitempty"`
}

// MarshalJSON implements json.Marshaler, carrying the hasX flags through
// as an explicit "set" list alongside the field values.
func (m FailureMetadata) MarshalJSON() ([]byte, error) {
	w := failureMetadataJSON{
		ErrorSnippet:  m.ErrorSnippet,
		LineNumber:    m.LineNumber,
		ProjectName:   m.ProjectName,
		SuiteName:     m.SuiteName,
		Locator:       m.Locator,
		Matcher:       m.Matcher,
		TimeoutMS:     m.TimeoutMS,
		DurationMS:    m.DurationMS,
		ActualValue:   m.ActualValue,
		ExpectedValue: m.ExpectedValue,
		RunID:         m.RunID,
		ReportLink:    m.ReportLink,
	}
	if m.hasErrorSnippet {
		w.Set = append(w.Set, "errorSnippet")
	}
	if m.hasLineNumber {
		w.Set = append(w.Set, "lineNumber")
	}
	if m.hasLocator {
		w.Set = append(w.Set, "locator")
	}
	if m.hasMatcher {
		w.Set = append(w.Set, "matcher")
	}
	if m.hasTimeoutMS {
		w.Set = append(w.Set, "timeoutMs")
	}
	if m.hasActualValue {
		w.Set = append(w.Set, "actualValue")
	}
	if m.hasExpectedValue {
		w.Set = append(w.Set, "expectedValue")
	}
	if m.hasRunID {
		w.Set = append(w.Set, "runId")
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. When the payload carries an
// explicit "set" list (anything this package itself wrote), the hasX
// flags are restored exactly. Otherwise — a document authored outside
// this package, such as a test-runner's report writer — a field is
// treated as set when it holds a non-zero value.
func (m *FailureMetadata) UnmarshalJSON(data []byte) error {
	var w failureMetadataJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*m = FailureMetadata{
		ErrorSnippet:  w.ErrorSnippet,
		LineNumber:    w.LineNumber,
		ProjectName:   w.ProjectName,
		SuiteName:     w.SuiteName,
		Locator:       w.Locator,
		Matcher:       w.Matcher,
		TimeoutMS:     w.TimeoutMS,
		DurationMS:    w.DurationMS,
		ActualValue:   w.ActualValue,
		ExpectedValue: w.ExpectedValue,
		RunID:         w.RunID,
		ReportLink:    w.ReportLink,
	}

	known := make(map[string]bool, len(w.Set))
	for _, f := range w.Set {
		known[f] = true
	}
	hasExplicitSet := len(w.Set) > 0
	fieldSet := func(name string, nonZero bool) bool {
		if hasExplicitSet {
			return known[name]
		}
		return nonZero
	}

	m.hasErrorSnippet = fieldSet("errorSnippet", w.ErrorSnippet != "")
	m.hasLineNumber = fieldSet("lineNumber", w.LineNumber != 0)
	m.hasLocator = fieldSet("locator", w.Locator != "")
	m.hasMatcher = fieldSet("matcher", w.Matcher != "")
	m.hasTimeoutMS = fieldSet("timeoutMs", w.TimeoutMS != 0)
	m.hasActualValue = fieldSet("actualValue", w.ActualValue != "")
	m.hasExpectedValue = fieldSet("expectedValue", w.ExpectedValue != "")
	m.hasRunID = fieldSet("runId", w.RunID != "")

	return nil
}

// EmbeddedFailure is a TestFailure extended with its embedding vector.
type EmbeddedFailure struct {
	TestFailure
	Embedding []float32
}

// ClusterMetadata carries the temporal and auditing statistics for a
// FailureCluster, per spec.md §3.
type ClusterMetadata struct {
	FailureCount               int
	FirstSeen                  time.Time
	LastSeen                   time.Time
	AverageTimeBetweenFailures time.Duration
	HasAverageTimeBetween      bool
	FailureIDs                 []string
	RunIDs                     []string
	FailureTimestamps          []time.Time
	ErrorMessages              []string
}

// CommonPatterns holds the per-field frequency-filtered value sets for a
// cluster, per spec.md §3/§4.6.
type CommonPatterns struct {
	FilePaths    []string
	LineNumbers  []int
	CodeSnippets []string
	Locators     []string
	Matchers     []string
	Timeouts     []int
}

// FailureCluster is a group of related failures plus descriptive metadata.
type FailureCluster struct {
	ID                  string
	Failures            []TestFailure
	CommonPatterns      CommonPatterns
	Metadata            ClusterMetadata
	FailurePattern      string
	AssertionPattern    string
	HasAssertionPattern bool
}
