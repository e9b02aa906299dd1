package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectionError builds a pytest import-mismatch collection error report.
func collectionError(t *testing.T, file, importedPath, wantedPath string) string {
	t.Helper()
	return strings.Join([]string{
		"==================================== ERRORS ====================================",
		"ERROR collecting " + file,
		"imported module 'test_example' has this __file__ attribute:",
		"  " + importedPath,
		"which is not the same as the test file we want to collect:",
		"  " + wantedPath,
		"HINT: remove __pycache__ / .pyc files and/or use a unique basename for your test file modules",
		"",
	}, "\n")
}

func TestParseCollectionErrors_SingleMatch(t *testing.T) {
	t.Parallel()

	output := collectionError(t,
		"test_example.py",
		"/home/user/other/test_example.py",
		"/home/user/project/test_example.py",
	)

	records := NewCollectionParser().ParseCollectionErrors(output)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "test_example.py", rec.TestFile)
	assert.Equal(t, "collection", rec.Function)
	assert.Equal(t, "CollectionError", rec.ErrorType)
	assert.Equal(t, "Import path mismatch with /home/user/project/test_example.py", rec.ErrorDetails)
	assert.Equal(t, "0", rec.LineNumber)
}

func TestParseCollectionErrors_NoMarkers(t *testing.T) {
	t.Parallel()

	output := "collected 3 items\n3 passed in 0.01s\n"
	assert.Empty(t, NewCollectionParser().ParseCollectionErrors(output))
}

func TestParseCollectionErrors_MissingSecondMarker(t *testing.T) {
	t.Parallel()

	output := strings.Join([]string{
		"ERROR collecting test_example.py",
		"imported module 'test_example' has this __file__ attribute:",
		"  /home/user/other/test_example.py",
		"",
	}, "\n")
	assert.Empty(t, NewCollectionParser().ParseCollectionErrors(output))
}

// --- UnifiedParser ----------------------------------------------------------

func TestUnifiedParser_CollectionBeforeFailures(t *testing.T) {
	t.Parallel()

	output := collectionError(t,
		"test_clash.py",
		"/tmp/a/test_clash.py",
		"/tmp/b/test_clash.py",
	) + strings.Join([]string{
		"=================================== FAILURES ===================================",
		"__________________________________ test_plain __________________________________",
		"E       AssertionError: nope",
		"test_plain.py:4: AssertionError",
	}, "\n")

	records := NewUnifiedParser().Parse(output)
	require.Len(t, records, 2)
	assert.Equal(t, "collection", records[0].Function)
	assert.Equal(t, "test_plain", records[1].Function)
}

func TestUnifiedParser_EmptyOutput(t *testing.T) {
	t.Parallel()
	assert.Empty(t, ParseOutput(""))
}

// --- ErrorRecord ------------------------------------------------------------

func TestErrorRecord_Helpers(t *testing.T) {
	t.Parallel()

	rec := ErrorRecord{
		TestFile:     "tests/./test_a.py",
		Function:     "test_a",
		ErrorType:    "ValueError",
		ErrorDetails: "bad input",
	}

	assert.Equal(t, "tests/test_a.py", rec.FilePath())
	assert.Equal(t, "ValueError: bad input", rec.FormattedError())
	assert.False(t, rec.HasTraceback())

	rec.UpdateSnippet("assert a == b")
	assert.True(t, rec.HasTraceback())
	assert.Equal(t, "assert a == b", rec.CodeSnippet)
}
