package fixer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/testmend/testmend/internal/parse"
)

// ErrCaseFixed is returned when an operation is attempted on a test case
// that has already reached its terminal fixed state.
var ErrCaseFixed = errors.New("test case already fixed")

// ErrForeignAttempt is returned when MarkFixed or MarkAttemptFailed is
// called with an attempt that does not belong to the test case. This is a
// caller bug, not a data error.
var ErrForeignAttempt = errors.New("attempt does not belong to this test case")

// AttemptStatus is the lifecycle state of a single fix attempt.
type AttemptStatus string

const (
	// AttemptInProgress is the initial status of a started attempt.
	AttemptInProgress AttemptStatus = "in_progress"

	// AttemptSuccess marks the attempt whose fix was verified.
	AttemptSuccess AttemptStatus = "success"

	// AttemptFailed marks an attempt whose fix was rejected or did not
	// make the test pass.
	AttemptFailed AttemptStatus = "failed"
)

// CaseStatus is the lifecycle state of a TestCase aggregate.
type CaseStatus string

const (
	// CaseUnfixed is the initial status of every test case.
	CaseUnfixed CaseStatus = "unfixed"

	// CaseFixed is terminal: no further attempts may be started.
	CaseFixed CaseStatus = "fixed"
)

// ErrorDetails is an immutable value describing what went wrong in a
// failing test.
type ErrorDetails struct {
	ErrorType  string `json:"error_type"`
	Message    string `json:"message"`
	StackTrace string `json:"stack_trace,omitempty"`
}

// ToMap converts the details to a plain string map for persistence by an
// external store.
func (d ErrorDetails) ToMap() map[string]string {
	m := map[string]string{
		"error_type": d.ErrorType,
		"message":    d.Message,
	}
	if d.StackTrace != "" {
		m["stack_trace"] = d.StackTrace
	}
	return m
}

// DetailsFromMap reconstructs ErrorDetails from a plain string map.
func DetailsFromMap(m map[string]string) ErrorDetails {
	return ErrorDetails{
		ErrorType:  m["error_type"],
		Message:    m["message"],
		StackTrace: m["stack_trace"],
	}
}

// FixAttempt records one try at fixing a test case. Attempts are created
// only through TestCase.StartFixAttempt and mutated only through MarkFixed
// and MarkAttemptFailed on the owning case.
type FixAttempt struct {
	ID          uuid.UUID     `json:"id"`
	Temperature float64       `json:"temperature"`
	Status      AttemptStatus `json:"status"`
}

// CodeChanges is a proposed full-file replacement produced by the
// fix-generation collaborator. It is consumed once by the applier and not
// retained.
type CodeChanges struct {
	OriginalCode string
	ModifiedCode string
}

// TestCase is the aggregate root tracking one failing test's fix history.
//
// Invariants:
//   - at most one attempt has status success, and it exists iff the case
//     status is fixed;
//   - once fixed the case is terminal: no new attempts, no attempt may be
//     marked failed;
//   - Attempts is append-only and insertion order is chronological.
type TestCase struct {
	ID           uuid.UUID     `json:"id"`
	TestFile     string        `json:"test_file"`
	TestFunction string        `json:"test_function"`
	Details      ErrorDetails  `json:"error_details"`
	Status       CaseStatus    `json:"status"`
	Attempts     []*FixAttempt `json:"fix_attempts"`
}

// NewTestCase creates an unfixed TestCase with a fresh identity.
func NewTestCase(testFile, testFunction string, details ErrorDetails) *TestCase {
	return &TestCase{
		ID:           uuid.New(),
		TestFile:     testFile,
		TestFunction: testFunction,
		Details:      details,
		Status:       CaseUnfixed,
		Attempts:     []*FixAttempt{},
	}
}

// CaseFromRecord converts a parsed failure record into a domain TestCase.
func CaseFromRecord(rec parse.ErrorRecord) *TestCase {
	return NewTestCase(rec.TestFile, rec.Function, ErrorDetails{
		ErrorType:  rec.ErrorType,
		Message:    rec.ErrorDetails,
		StackTrace: rec.CodeSnippet,
	})
}

// CasesFromRecords converts a slice of parsed records preserving order.
func CasesFromRecords(recs []parse.ErrorRecord) []*TestCase {
	cases := make([]*TestCase, 0, len(recs))
	for _, rec := range recs {
		cases = append(cases, CaseFromRecord(rec))
	}
	return cases
}

// StartFixAttempt appends a new in-progress attempt at the given
// temperature. Returns ErrCaseFixed when the case is terminal.
func (c *TestCase) StartFixAttempt(temperature float64) (*FixAttempt, error) {
	if c.Status == CaseFixed {
		return nil, fmt.Errorf("start fix attempt for %s: %w", c.TestFunction, ErrCaseFixed)
	}
	attempt := &FixAttempt{
		ID:          uuid.New(),
		Temperature: temperature,
		Status:      AttemptInProgress,
	}
	c.Attempts = append(c.Attempts, attempt)
	return attempt, nil
}

// MarkFixed records the attempt as the successful one and moves the case
// to its terminal fixed state. Returns ErrForeignAttempt when the attempt
// is not a member of the case and ErrCaseFixed when the case was already
// fixed, even with a different valid attempt.
func (c *TestCase) MarkFixed(attempt *FixAttempt) error {
	if !c.owns(attempt) {
		return fmt.Errorf("mark fixed for %s: %w", c.TestFunction, ErrForeignAttempt)
	}
	if c.Status == CaseFixed {
		return fmt.Errorf("mark fixed for %s: %w", c.TestFunction, ErrCaseFixed)
	}
	attempt.Status = AttemptSuccess
	c.Status = CaseFixed
	return nil
}

// MarkAttemptFailed records the attempt as failed. Returns
// ErrForeignAttempt for an attempt the case does not own and ErrCaseFixed
// when the case is already terminal.
func (c *TestCase) MarkAttemptFailed(attempt *FixAttempt) error {
	if !c.owns(attempt) {
		return fmt.Errorf("mark attempt failed for %s: %w", c.TestFunction, ErrForeignAttempt)
	}
	if c.Status == CaseFixed {
		return fmt.Errorf("mark attempt failed for %s: %w", c.TestFunction, ErrCaseFixed)
	}
	attempt.Status = AttemptFailed
	return nil
}

// Fixed reports whether the case has reached its terminal state.
func (c *TestCase) Fixed() bool {
	return c.Status == CaseFixed
}

// NodeID returns the pytest node identifier "file::function".
func (c *TestCase) NodeID() string {
	return fmt.Sprintf("%s::%s", c.TestFile, c.TestFunction)
}

// owns reports whether the attempt is a member of the case's attempt list.
// Membership is by identity, not structural equality.
func (c *TestCase) owns(attempt *FixAttempt) bool {
	if attempt == nil {
		return false
	}
	for _, a := range c.Attempts {
		if a == attempt {
			return true
		}
	}
	return false
}
