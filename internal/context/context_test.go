package context

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flakysignal/detective/internal/models"
)

func TestBuild_MinimalFields(t *testing.T) {
	f := models.TestFailure{
		TestTitle:    "login succeeds",
		TestFilePath: "tests/auth/login.spec.ts",
		ErrorMessage: "expected true to be false",
	}

	got := Build(f)

	want := "Test: login succeeds\n" +
		"File: tests/auth/login.spec.ts\n" +
		"Error: expected true to be false"
	assert.Equal(t, want, got)
}

func TestBuild_FullFieldOrder(t *testing.T) {
	f := models.TestFailure{
		TestTitle:    "login succeeds",
		TestFilePath: "tests/auth/login.spec.ts",
		ErrorMessage: "expected true to be false",
		Metadata: models.FailureMetadata{
			ProjectName: "web",
			SuiteName:   "auth",
		}.WithLineNumber(42).
			WithLocator("button.login").
			WithMatcher("toBeVisible").
			WithActualValue("false").
			WithExpectedValue("true").
			WithTimeoutMS(5000).
			WithErrorSnippet("expect(locator).toBeVisible()"),
	}

	got := Build(f)

	want := "Test: login succeeds\n" +
		"File: tests/auth/login.spec.ts\n" +
		"Project: web\n" +
		"Suite: auth\n" +
		"Line: 42\n" +
		"Locator: button.login\n" +
		"Matcher: toBeVisible\n" +
		`Actual: "false"` + "\n" +
		`Expected: "true"` + "\n" +
		"Timeout: 5000ms\n" +
		"Code: expect(locator).toBeVisible()\n" +
		"Error: expected true to be false"
	assert.Equal(t, want, got)
}

func TestBuild_OnlySetFieldsAppear(t *testing.T) {
	f := models.TestFailure{
		TestTitle:    "checkout flow",
		TestFilePath: "tests/checkout.spec.ts",
		ErrorMessage: "timed out",
		Metadata:     models.FailureMetadata{}.WithTimeoutMS(3000),
	}

	got := Build(f)

	want := "Test: checkout flow\n" +
		"File: tests/checkout.spec.ts\n" +
		"Timeout: 3000ms\n" +
		"Error: timed out"
	assert.Equal(t, want, got)
}

func TestBuild_ProjectAndSuiteHaveNoHasFlag(t *testing.T) {
	// ProjectName/SuiteName are rendered purely on non-empty string, since
	// they carry no hasX idempotence flag in FailureMetadata.
	f := models.TestFailure{
		TestTitle:    "t",
		TestFilePath: "f.spec.ts",
		ErrorMessage: "e",
		Metadata:     models.FailureMetadata{ProjectName: "web"},
	}

	got := Build(f)

	want := "Test: t\nFile: f.spec.ts\nProject: web\nError: e"
	assert.Equal(t, want, got)
}
