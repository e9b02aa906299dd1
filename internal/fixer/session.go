package fixer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoCases is returned when a session is started with an empty case list.
var ErrNoCases = errors.New("cannot start a session with no test cases")

// ErrInvalidTransition is returned for a session state change the
// transition table does not allow, including any transition out of a
// terminal state.
var ErrInvalidTransition = errors.New("invalid session state transition")

// SessionState is the lifecycle state of a FixSession.
type SessionState string

const (
	// SessionInitializing is the state of a freshly created session.
	SessionInitializing SessionState = "initializing"

	// SessionRunning means cases are being processed.
	SessionRunning SessionState = "running"

	// SessionPaused means processing was explicitly suspended.
	SessionPaused SessionState = "paused"

	// SessionFailed is terminal: a case exhausted its retries.
	SessionFailed SessionState = "failed"

	// SessionCompleted is terminal: every case ended fixed.
	SessionCompleted SessionState = "completed"

	// SessionError means coordination hit an unhandled failure; the
	// session may recover to running or give up to failed.
	SessionError SessionState = "error"
)

// sessionTransitions is the set of legal state changes. Terminal states
// (failed, completed) have no outbound entries.
var sessionTransitions = map[SessionState][]SessionState{
	SessionInitializing: {SessionRunning},
	SessionRunning:      {SessionPaused, SessionCompleted, SessionFailed, SessionError},
	SessionPaused:       {SessionRunning},
	SessionError:        {SessionRunning, SessionFailed},
}

// FixSession groups the test cases being fixed together with retry
// bookkeeping and a lifecycle state machine. A session is owned by the
// orchestrator that created it; nothing else mutates it concurrently.
type FixSession struct {
	ID              uuid.UUID    `json:"id"`
	State           SessionState `json:"state"`
	StartTime       time.Time    `json:"start_time"`
	Errors          []*TestCase  `json:"errors"`
	CompletedErrors []*TestCase  `json:"completed_errors"`
	CurrentError    *TestCase    `json:"current_error,omitempty"`
	RetryCount      int          `json:"retry_count"`
	ErrorCount      int          `json:"error_count"`
	ModifiedFiles   []string     `json:"modified_files"`
	GitBranch       string       `json:"git_branch,omitempty"`
}

// NewFixSession creates an initializing session over the given cases.
// Returns ErrNoCases for an empty list.
func NewFixSession(cases []*TestCase) (*FixSession, error) {
	if len(cases) == 0 {
		return nil, ErrNoCases
	}
	return &FixSession{
		ID:              uuid.New(),
		State:           SessionInitializing,
		StartTime:       time.Now(),
		Errors:          cases,
		CompletedErrors: []*TestCase{},
		ErrorCount:      len(cases),
		ModifiedFiles:   []string{},
	}, nil
}

// Transition moves the session to the next state, enforcing the
// transition table. Terminal states admit no further transitions.
func (s *FixSession) Transition(next SessionState) error {
	for _, allowed := range sessionTransitions[s.State] {
		if allowed == next {
			s.State = next
			return nil
		}
	}
	return fmt.Errorf("session %s: %s -> %s: %w", s.ID, s.State, next, ErrInvalidTransition)
}

// Pause suspends a running session. Pausing from any other state is a
// usage error.
func (s *FixSession) Pause() error {
	if s.State != SessionRunning {
		return fmt.Errorf("pause session in state %s: %w", s.State, ErrInvalidTransition)
	}
	return s.Transition(SessionPaused)
}

// Resume continues a paused session. Resuming from any other state is a
// usage error.
func (s *FixSession) Resume() error {
	if s.State != SessionPaused {
		return fmt.Errorf("resume session in state %s: %w", s.State, ErrInvalidTransition)
	}
	return s.Transition(SessionRunning)
}

// RecordCompleted appends a fixed case to CompletedErrors. When every case
// in the session is now complete, the session transitions to completed as
// a side effect: progress tracking drives the terminal transition.
func (s *FixSession) RecordCompleted(tc *TestCase) error {
	s.CompletedErrors = append(s.CompletedErrors, tc)
	if len(s.CompletedErrors) == len(s.Errors) {
		return s.Transition(SessionCompleted)
	}
	return nil
}

// RecordModifiedFile remembers a file touched by a successful fix.
// Duplicates are collapsed so repeated fixes to one file report it once.
func (s *FixSession) RecordModifiedFile(path string) {
	for _, p := range s.ModifiedFiles {
		if p == path {
			return
		}
	}
	s.ModifiedFiles = append(s.ModifiedFiles, path)
}

// FixedCount returns the number of cases recorded as completed.
func (s *FixSession) FixedCount() int {
	return len(s.CompletedErrors)
}

// Terminal reports whether the session reached a state with no outbound
// transitions.
func (s *FixSession) Terminal() bool {
	return s.State == SessionFailed || s.State == SessionCompleted
}

// Snapshot serializes the session to JSON for an external session store.
func (s *FixSession) Snapshot() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("fixer: session snapshot: %w", err)
	}
	return data, nil
}

// SessionFromSnapshot reconstructs a session previously serialized with
// Snapshot.
func SessionFromSnapshot(data []byte) (*FixSession, error) {
	var s FixSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("fixer: restoring session snapshot: %w", err)
	}
	return &s, nil
}

// Progress is a point-in-time view of session progress for UI and logging.
type Progress struct {
	TotalErrors        int     `json:"total_errors"`
	FixedCount         int     `json:"fixed_count"`
	CurrentError       string  `json:"current_error,omitempty"`
	RetryCount         int     `json:"retry_count"`
	CurrentTemperature float64 `json:"current_temperature"`
}
