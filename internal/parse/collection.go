package parse

import (
	"fmt"
	"regexp"
	"strings"
)

// reCollection matches pytest's import-time collection failure report:
// an "ERROR collecting <file>" line, a later "imported module ...
// __file__ attribute:" line followed by an indented path, then the
// "which is not the same as the test file we want to collect:" line
// followed by a second indented path. Dot-all so the markers may be
// separated by arbitrary traceback text.
var reCollection = regexp.MustCompile(`(?s)ERROR collecting (.*?)\n` +
	`.*?imported module .*?__file__ attribute:\n\s+(.*?)\n` +
	`.*?which is not the same as the test file we want to collect:\n\s+(.*?)\n`)

// CollectionParser detects import-time collection failures, which pytest
// reports outside the per-test FAILURES sections.
type CollectionParser struct{}

// NewCollectionParser returns a CollectionParser.
func NewCollectionParser() *CollectionParser {
	return &CollectionParser{}
}

// ParseCollectionErrors returns one ErrorRecord per collection failure in
// output, in appearance order. Unrecognized input yields no records.
func (p *CollectionParser) ParseCollectionErrors(output string) []ErrorRecord {
	var records []ErrorRecord
	for _, m := range reCollection.FindAllStringSubmatch(output, -1) {
		rec := ErrorRecord{
			TestFile:     strings.TrimSpace(m[1]),
			Function:     "collection",
			ErrorType:    "CollectionError",
			ErrorDetails: fmt.Sprintf("Import path mismatch with %s", strings.TrimSpace(m[3])),
			LineNumber:   "0",
		}
		if validCollectionRecord(rec) {
			records = append(records, rec)
		}
	}
	return records
}

// validCollectionRecord checks the structural invariants of a collection
// record before it is emitted.
func validCollectionRecord(rec ErrorRecord) bool {
	return rec.Function == "collection" &&
		rec.ErrorType == "CollectionError" &&
		strings.HasPrefix(rec.ErrorDetails, "Import path mismatch")
}
