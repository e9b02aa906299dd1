package parse

import (
	"regexp"
	"strings"
)

// failuresMarker is the literal that pytest prints above its detailed
// failure report. Nothing before this marker is collected.
const failuresMarker = "FAILURES"

// reClassification matches the terminator line of a failure block: a file
// path, a decimal line number, and an exception identifier ending in
// "Error" (possibly dotted, e.g. "socket.gaierror" is NOT matched but
// "requests.exceptions.ConnectionError" is).
var reClassification = regexp.MustCompile(`([\w/._-]+):(\d+):\s+([\w.]+Error)`)

// FailureParser converts raw pytest output into ErrorRecords. It is a
// line-oriented single-pass scanner with explicit small state: the current
// test header, an accumulated traceback buffer, and an accumulated
// error-details buffer. The zero value is ready to use.
type FailureParser struct{}

// NewFailureParser returns a FailureParser.
func NewFailureParser() *FailureParser {
	return &FailureParser{}
}

// ParseTestFailures scans output and returns one ErrorRecord per failure
// block that reached a classification line, in appearance order. Malformed
// or unrecognized input never produces an error; the result is simply
// empty. Output without the FAILURES marker always yields no records.
func (p *FailureParser) ParseTestFailures(output string) []ErrorRecord {
	var records []ErrorRecord

	capturing := false
	currentFunction := ""
	var tracebackLines []string
	var detailLines []string

	for _, line := range strings.Split(output, "\n") {
		stripped := strings.TrimSpace(line)

		if strings.Contains(stripped, failuresMarker) {
			capturing = true
			continue
		}
		if !capturing {
			continue
		}

		switch {
		case isTestHeader(stripped):
			// A header starts a fresh block. A pure-underscore header
			// resets the buffers without changing the current function.
			if name := testNameFromHeader(stripped); name != "" {
				currentFunction = name
			}
			tracebackLines = []string{line}
			detailLines = nil

		case isErrorDetail(stripped):
			tracebackLines = append(tracebackLines, line)
			detailLines = append(detailLines, strings.TrimSpace(stripped[2:]))

		case isFailingLineIndicator(stripped):
			tracebackLines = append(tracebackLines, line)

		default:
			if m := reClassification.FindStringSubmatch(line); m != nil {
				function := currentFunction
				if function == "" {
					function = "unknown"
				}
				records = append(records, ErrorRecord{
					TestFile:     m[1],
					Function:     function,
					ErrorType:    m[3],
					ErrorDetails: strings.Join(detailLines, "\n"),
					LineNumber:   m[2],
					CodeSnippet:  strings.Join(tracebackLines, "\n"),
				})
				continue
			}
			// Ordinary content between header and classification:
			// source snippets, fixture setup, intermediate frames.
			if stripped != "" && !strings.HasPrefix(stripped, "_") {
				tracebackLines = append(tracebackLines, line)
			}
		}
	}

	return records
}

// ProcessFailureLine applies only the classification pattern to a single
// line. It returns a record with Function "unknown" when the line matches,
// or nil otherwise.
func (p *FailureParser) ProcessFailureLine(line string) *ErrorRecord {
	if line == "" {
		return nil
	}
	m := reClassification.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	return &ErrorRecord{
		TestFile:   m[1],
		Function:   "unknown",
		ErrorType:  m[3],
		LineNumber: m[2],
	}
}

// ExtractTraceback accumulates non-blank, non-underscore lines from
// lines[start:end] until the classification pattern matches (inclusive).
// It returns the joined text and the index where the pattern matched, or
// end when it never did. A negative end means "to the end of lines".
func (p *FailureParser) ExtractTraceback(lines []string, start, end int) (string, int) {
	if end < 0 || end > len(lines) {
		end = len(lines)
	}

	var tb []string
	i := start
	for ; i < end; i++ {
		stripped := strings.TrimSpace(lines[i])
		if stripped != "" && !strings.HasPrefix(stripped, "_") {
			tb = append(tb, lines[i])
		}
		if reClassification.MatchString(lines[i]) {
			break
		}
	}
	return strings.Join(tb, "\n"), i
}

// isTestHeader reports whether a stripped line is a failure-block header,
// i.e. surrounded by underscore padding ("___ test_foo ___").
func isTestHeader(stripped string) bool {
	return stripped != "" && strings.HasPrefix(stripped, "_") && strings.HasSuffix(stripped, "_")
}

// testNameFromHeader extracts the test name from a header line. A dotted
// name keeps only the part after the last dot, stripping any class
// qualification ("TestClass.test_foo" becomes "test_foo"). Returns ""
// when the header is pure underscore padding.
func testNameFromHeader(stripped string) string {
	content := strings.TrimSpace(strings.Trim(stripped, "_ "))
	if content == "" {
		return ""
	}
	if idx := strings.LastIndex(content, "."); idx >= 0 {
		return content[idx+1:]
	}
	return content
}

// isErrorDetail reports whether a stripped line carries the reporter's
// "E " error-explanation prefix.
func isErrorDetail(stripped string) bool {
	return strings.HasPrefix(stripped, "E ")
}

// isFailingLineIndicator reports whether a stripped line is the ">" marker
// pytest places on the source line that raised.
func isFailingLineIndicator(stripped string) bool {
	return strings.HasPrefix(stripped, ">")
}
