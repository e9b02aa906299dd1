package parse

import (
	"fmt"
	"path/filepath"
)

// ErrorRecord is one parsed test failure extracted from pytest output.
// Function and ErrorType are always non-empty; the remaining fields fall
// back to defaults when the output did not carry them (LineNumber "0",
// empty details and snippet).
type ErrorRecord struct {
	// TestFile is the path of the file the failure was reported against,
	// exactly as it appeared in the output.
	TestFile string `json:"test_file"`

	// Function is the test function name, including any parametrization
	// suffix (e.g. "test_param[1-2-expected]"). It is "unknown" when no
	// header preceded the classification line and "collection" for
	// collection errors.
	Function string `json:"function"`

	// ErrorType is the exception class name (e.g. "AssertionError").
	ErrorType string `json:"error_type"`

	// ErrorDetails is the joined "E "-prefixed message lines.
	ErrorDetails string `json:"error_details"`

	// LineNumber is the reported source line as a string, "0" when unknown.
	LineNumber string `json:"line_number"`

	// CodeSnippet is the joined raw traceback text, possibly empty.
	CodeSnippet string `json:"code_snippet"`
}

// FilePath returns the test file as a cleaned filesystem path.
func (r *ErrorRecord) FilePath() string {
	return filepath.Clean(r.TestFile)
}

// FormattedError returns "ErrorType: details" for display.
func (r *ErrorRecord) FormattedError() string {
	return fmt.Sprintf("%s: %s", r.ErrorType, r.ErrorDetails)
}

// HasTraceback reports whether the record carries any traceback text.
func (r *ErrorRecord) HasTraceback() bool {
	return r.CodeSnippet != ""
}

// UpdateSnippet replaces the code snippet. This is the only mutation an
// ErrorRecord supports after construction.
func (r *ErrorRecord) UpdateSnippet(snippet string) {
	r.CodeSnippet = snippet
}
