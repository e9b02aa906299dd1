// Package parse converts raw pytest output into structured failure
// records. It handles the two report shapes pytest produces: per-test
// FAILURES sections and import-time collection errors. Parsing never
// fails; unrecognized input yields an empty result.
package parse

// UnifiedParser coordinates the collection and failure parsers to produce
// a single ordered record list.
type UnifiedParser struct {
	collection *CollectionParser
	failure    *FailureParser
}

// NewUnifiedParser returns a UnifiedParser.
func NewUnifiedParser() *UnifiedParser {
	return &UnifiedParser{
		collection: NewCollectionParser(),
		failure:    NewFailureParser(),
	}
}

// Parse returns collection-error records followed by failure records.
// No de-duplication is applied: when both parsers recognize the same
// underlying failure, it appears twice. This is a known limitation kept
// for predictability rather than guessing a merge rule.
func (p *UnifiedParser) Parse(output string) []ErrorRecord {
	records := p.collection.ParseCollectionErrors(output)
	return append(records, p.failure.ParseTestFailures(output)...)
}

// ParseOutput is a convenience wrapper for callers that do not need to
// hold a parser instance.
func ParseOutput(output string) []ErrorRecord {
	return NewUnifiedParser().Parse(output)
}
