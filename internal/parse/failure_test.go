package parse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// canonicalFailure builds a single well-formed pytest failure block.
func canonicalFailure(t *testing.T) string {
	t.Helper()
	return strings.Join([]string{
		"=================================== FAILURES ===================================",
		"___________________________________ test_foo ___________________________________",
		"",
		"    def test_foo():",
		">       assert compute() == 2",
		"E       AssertionError: msg",
		"",
		"file.py:42: AssertionError",
	}, "\n")
}

// --- ParseTestFailures ------------------------------------------------------

func TestParseTestFailures_CanonicalBlock(t *testing.T) {
	t.Parallel()

	p := NewFailureParser()
	records := p.ParseTestFailures(canonicalFailure(t))

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "file.py", rec.TestFile)
	assert.Equal(t, "test_foo", rec.Function)
	assert.Equal(t, "AssertionError", rec.ErrorType)
	assert.Equal(t, "42", rec.LineNumber)
	assert.Contains(t, rec.ErrorDetails, "msg")
	assert.Contains(t, rec.CodeSnippet, "def test_foo():")
}

func TestParseTestFailures_MultipleBlocksInOrder(t *testing.T) {
	t.Parallel()

	output := strings.Join([]string{
		"=================================== FAILURES ===================================",
		"__________________________________ test_first __________________________________",
		">       raise ValueError('bad')",
		"E       ValueError: bad",
		"a.py:10: ValueError",
		"_________________________________ test_second __________________________________",
		">       assert False",
		"E       AssertionError",
		"b.py:15: AssertionError",
	}, "\n")

	records := NewFailureParser().ParseTestFailures(output)
	require.Len(t, records, 2)

	assert.Equal(t, "test_first", records[0].Function)
	assert.Equal(t, "ValueError", records[0].ErrorType)
	assert.Equal(t, "10", records[0].LineNumber)
	assert.Equal(t, "a.py", records[0].TestFile)

	assert.Equal(t, "test_second", records[1].Function)
	assert.Equal(t, "AssertionError", records[1].ErrorType)
	assert.Equal(t, "15", records[1].LineNumber)
	assert.Equal(t, "b.py", records[1].TestFile)
}

func TestParseTestFailures_NoFailuresMarker(t *testing.T) {
	t.Parallel()

	output := strings.Join([]string{
		"collected 12 items",
		"test_example.py ............",
		"============================== 12 passed in 0.34s ==============================",
	}, "\n")

	assert.Empty(t, NewFailureParser().ParseTestFailures(output))
}

func TestParseTestFailures_EmptyInput(t *testing.T) {
	t.Parallel()
	assert.Empty(t, NewFailureParser().ParseTestFailures(""))
}

func TestParseTestFailures_DottedHeaderStripsClassPrefix(t *testing.T) {
	t.Parallel()

	output := strings.Join([]string{
		"FAILURES",
		"____________________ TestClass.test_extract_traceback _____________________",
		"E       AssertionError: boom",
		"tests/test_parser.py:7: AssertionError",
	}, "\n")

	records := NewFailureParser().ParseTestFailures(output)
	require.Len(t, records, 1)
	assert.Equal(t, "test_extract_traceback", records[0].Function)
}

func TestParseTestFailures_ParametrizedNamePreserved(t *testing.T) {
	t.Parallel()

	output := strings.Join([]string{
		"FAILURES",
		"________________________ test_param[1-2-expected] _________________________",
		"E       AssertionError: assert 3 == 4",
		"test_math.py:21: AssertionError",
	}, "\n")

	records := NewFailureParser().ParseTestFailures(output)
	require.Len(t, records, 1)
	assert.Equal(t, "test_param[1-2-expected]", records[0].Function)
}

func TestParseTestFailures_HeaderWithoutClassificationDropped(t *testing.T) {
	t.Parallel()

	// A header whose block never reaches a classification line is
	// silently dropped; the next block still parses normally.
	output := strings.Join([]string{
		"FAILURES",
		"_________________________________ test_broken __________________________________",
		"    some stray content with no classification",
		"_________________________________ test_whole ___________________________________",
		"E       TypeError: unsupported operand",
		"test_ops.py:33: TypeError",
	}, "\n")

	records := NewFailureParser().ParseTestFailures(output)
	require.Len(t, records, 1)
	assert.Equal(t, "test_whole", records[0].Function)
	assert.Equal(t, "TypeError", records[0].ErrorType)
}

func TestParseTestFailures_PureUnderscoreHeaderKeepsFunctionResetsBuffers(t *testing.T) {
	t.Parallel()

	output := strings.Join([]string{
		"FAILURES",
		"__________________________________ test_kept ___________________________________",
		"E       ValueError: first detail",
		"________________________________________________________________________________",
		"E       ValueError: second detail",
		"test_kept.py:5: ValueError",
	}, "\n")

	records := NewFailureParser().ParseTestFailures(output)
	require.Len(t, records, 1)
	// The separator did not clear the current function.
	assert.Equal(t, "test_kept", records[0].Function)
	// But it did reset the detail buffer.
	assert.Equal(t, "second detail", records[0].ErrorDetails)
	assert.NotContains(t, records[0].CodeSnippet, "first detail")
}

func TestParseTestFailures_ClassificationBeforeAnyHeader(t *testing.T) {
	t.Parallel()

	output := strings.Join([]string{
		"FAILURES",
		"E       KeyError: 'missing'",
		"conftest.py:12: KeyError",
	}, "\n")

	records := NewFailureParser().ParseTestFailures(output)
	require.Len(t, records, 1)
	assert.Equal(t, "unknown", records[0].Function)
	assert.Equal(t, "KeyError", records[0].ErrorType)
}

func TestParseTestFailures_MultilineDetailsJoined(t *testing.T) {
	t.Parallel()

	output := strings.Join([]string{
		"FAILURES",
		"__________________________________ test_diff ___________________________________",
		"E       AssertionError: assert {'a': 1} == {'a': 2}",
		"E         Differing items:",
		"E         {'a': 1} != {'a': 2}",
		"test_dict.py:9: AssertionError",
	}, "\n")

	records := NewFailureParser().ParseTestFailures(output)
	require.Len(t, records, 1)
	details := strings.Split(records[0].ErrorDetails, "\n")
	require.Len(t, details, 3)
	assert.Equal(t, "AssertionError: assert {'a': 1} == {'a': 2}", details[0])
	assert.Equal(t, "Differing items:", details[1])
}

// --- ProcessFailureLine -----------------------------------------------------

func TestProcessFailureLine(t *testing.T) {
	t.Parallel()

	p := NewFailureParser()

	rec := p.ProcessFailureLine("src/util.py:88: RuntimeError")
	require.NotNil(t, rec)
	assert.Equal(t, "src/util.py", rec.TestFile)
	assert.Equal(t, "unknown", rec.Function)
	assert.Equal(t, "RuntimeError", rec.ErrorType)
	assert.Equal(t, "88", rec.LineNumber)

	assert.Nil(t, p.ProcessFailureLine(""))
	assert.Nil(t, p.ProcessFailureLine("ordinary log line"))
	assert.Nil(t, p.ProcessFailureLine("file.py:12: not_an_error_token"))
}

// --- ExtractTraceback -------------------------------------------------------

func TestExtractTraceback_StopsAtClassification(t *testing.T) {
	t.Parallel()

	lines := []string{
		"    def test_x():",
		"",
		">       assert x",
		"E       AssertionError",
		"test_x.py:3: AssertionError",
		"after the match",
	}

	tb, idx := NewFailureParser().ExtractTraceback(lines, 0, -1)
	assert.Equal(t, 4, idx)
	assert.Contains(t, tb, "def test_x():")
	assert.Contains(t, tb, "test_x.py:3: AssertionError")
	assert.NotContains(t, tb, "after the match")
	// Blank lines are not accumulated.
	assert.NotContains(t, tb, "\n\n")
}

func TestExtractTraceback_NoMatchReturnsEnd(t *testing.T) {
	t.Parallel()

	lines := []string{"one", "two", "three"}
	tb, idx := NewFailureParser().ExtractTraceback(lines, 0, -1)
	assert.Equal(t, 3, idx)
	assert.Equal(t, "one\ntwo\nthree", tb)
}
