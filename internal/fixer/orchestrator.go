package fixer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrInvalidRetryConfig is returned by NewOrchestrator for out-of-range
// retry or temperature settings.
var ErrInvalidRetryConfig = errors.New("invalid retry configuration")

// ErrNoSession is returned when a session operation is invoked before
// StartSession or with a mismatched session id.
var ErrNoSession = errors.New("session not found or not started")

// EventType identifies a session event.
type EventType string

const (
	// EventSessionStarted is emitted once when the session enters running.
	EventSessionStarted EventType = "session_started"

	// EventCaseStarted is emitted when the loop picks up a test case.
	EventCaseStarted EventType = "case_started"

	// EventAttemptStarted is emitted before each coordinator invocation.
	EventAttemptStarted EventType = "attempt_started"

	// EventCaseFixed is emitted when a case reaches fixed.
	EventCaseFixed EventType = "case_fixed"

	// EventCaseFailed is emitted when a case exhausts its retries.
	EventCaseFailed EventType = "case_failed"

	// EventSessionCompleted is emitted when every case ended fixed.
	EventSessionCompleted EventType = "session_completed"

	// EventSessionFailed is emitted when the session fails fast.
	EventSessionFailed EventType = "session_failed"

	// EventSessionError is emitted on an unhandled coordination failure.
	EventSessionError EventType = "session_error"
)

// Event is a structured progress event emitted during a session run, for
// TUI and log consumption. Events are delivered best-effort: a nil or full
// channel drops them.
type Event struct {
	Type        EventType
	Case        string
	Attempt     int
	Temperature float64
	Message     string
	Timestamp   time.Time
}

// Orchestrator sequences fix attempts across the cases of one session,
// escalating temperature on retry and applying fail-fast semantics: the
// first case that exhausts its retries fails the whole session.
type Orchestrator struct {
	coordinator   *Coordinator
	maxRetries    int
	initialTemp   float64
	tempIncrement float64
	logger        *log.Logger
	events        chan<- Event

	session *FixSession
	stop    atomic.Bool
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithEvents attaches an event channel. Events are sent non-blocking.
func WithEvents(ch chan<- Event) OrchestratorOption {
	return func(o *Orchestrator) { o.events = ch }
}

// WithLogger attaches a logger.
func WithLogger(logger *log.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator creates an Orchestrator. maxRetries must be positive,
// initialTemp must lie in [0,1], and tempIncrement must be positive.
func NewOrchestrator(
	coordinator *Coordinator,
	maxRetries int,
	initialTemp, tempIncrement float64,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	if maxRetries <= 0 {
		return nil, fmt.Errorf("max retries %d: %w", maxRetries, ErrInvalidRetryConfig)
	}
	if initialTemp < 0 || initialTemp > 1 {
		return nil, fmt.Errorf("initial temperature %v: %w", initialTemp, ErrInvalidRetryConfig)
	}
	if tempIncrement <= 0 {
		return nil, fmt.Errorf("temperature increment %v: %w", tempIncrement, ErrInvalidRetryConfig)
	}

	o := &Orchestrator{
		coordinator:   coordinator,
		maxRetries:    maxRetries,
		initialTemp:   initialTemp,
		tempIncrement: tempIncrement,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// StartSession creates a session over the given cases and transitions it
// to running. Returns ErrNoCases for an empty list.
func (o *Orchestrator) StartSession(cases []*TestCase) (*FixSession, error) {
	session, err := NewFixSession(cases)
	if err != nil {
		return nil, err
	}
	if err := session.Transition(SessionRunning); err != nil {
		return nil, err
	}
	o.session = session

	o.emit(Event{
		Type:      EventSessionStarted,
		Message:   fmt.Sprintf("session started with %d case(s)", len(cases)),
		Timestamp: time.Now(),
	})
	if o.logger != nil {
		o.logger.Info("session started", "session", session.ID, "cases", len(cases))
	}
	return session, nil
}

// RunSession processes every case of the session in order. Cases already
// fixed are skipped. The first case that exhausts its retries marks the
// session failed and stops processing; when all cases end fixed the
// session completes. Returns true iff the session completed.
//
// An unexpected coordinator failure transitions the session to error and
// is returned as a wrapped error. Cancellation (context or RequestStop)
// is cooperative and only observed between cases; an interrupted session
// is left paused and can be resumed with Resume plus another RunSession.
func (o *Orchestrator) RunSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	if err := o.validateSession(sessionID); err != nil {
		return false, err
	}
	session := o.session

	for _, tc := range session.Errors {
		if err := ctx.Err(); err != nil {
			if perr := session.Pause(); perr != nil && o.logger != nil {
				o.logger.Error("pausing cancelled session", "error", perr)
			}
			return false, fmt.Errorf("fixer: session %s cancelled: %w", session.ID, err)
		}
		if o.stop.Load() {
			if o.logger != nil {
				o.logger.Info("stop requested, pausing session", "session", session.ID)
			}
			// The request is consumed here so a resumed run is not
			// immediately stopped again.
			o.stop.Store(false)
			if err := session.Pause(); err != nil {
				return false, err
			}
			return false, nil
		}
		if tc.Fixed() {
			continue
		}

		session.CurrentError = tc
		o.emit(Event{
			Type:      EventCaseStarted,
			Case:      tc.TestFunction,
			Message:   fmt.Sprintf("fixing %s", tc.NodeID()),
			Timestamp: time.Now(),
		})

		fixed, err := o.FixCase(ctx, tc)
		if err != nil {
			o.emit(Event{
				Type:      EventSessionError,
				Case:      tc.TestFunction,
				Message:   err.Error(),
				Timestamp: time.Now(),
			})
			if terr := session.Transition(SessionError); terr != nil && o.logger != nil {
				o.logger.Error("session error transition", "error", terr)
			}
			return false, err
		}
		session.CurrentError = nil

		if !fixed {
			o.emit(Event{
				Type:      EventCaseFailed,
				Case:      tc.TestFunction,
				Message:   fmt.Sprintf("%s still failing after %d attempt(s)", tc.TestFunction, o.maxRetries),
				Timestamp: time.Now(),
			})
			if err := session.Transition(SessionFailed); err != nil {
				return false, err
			}
			o.emit(Event{
				Type:      EventSessionFailed,
				Message:   "session failed",
				Timestamp: time.Now(),
			})
			return false, nil
		}

		session.RecordModifiedFile(tc.TestFile)
		o.emit(Event{
			Type:      EventCaseFixed,
			Case:      tc.TestFunction,
			Message:   fmt.Sprintf("%s fixed", tc.TestFunction),
			Timestamp: time.Now(),
		})
		if err := session.RecordCompleted(tc); err != nil {
			return false, err
		}
	}

	// Cases that were already fixed when the session started are skipped
	// without being recorded, so the progress-driven transition may not
	// have fired.
	if session.State == SessionRunning {
		if err := session.Transition(SessionCompleted); err != nil {
			return false, err
		}
	}

	if session.State == SessionCompleted {
		o.emit(Event{
			Type:      EventSessionCompleted,
			Message:   fmt.Sprintf("all %d case(s) fixed", session.ErrorCount),
			Timestamp: time.Now(),
		})
		if o.logger != nil {
			o.logger.Info("session completed", "session", session.ID)
		}
		return true, nil
	}
	return false, nil
}

// FixCase runs the per-case retry loop: up to maxRetries attempts at
// escalating temperature. Returns true when an attempt succeeded, false
// when all retries were exhausted. Unexpected coordinator errors
// propagate immediately.
func (o *Orchestrator) FixCase(ctx context.Context, tc *TestCase) (bool, error) {
	temp := o.initialTemp
	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		o.emit(Event{
			Type:        EventAttemptStarted,
			Case:        tc.TestFunction,
			Attempt:     attempt,
			Temperature: temp,
			Message:     fmt.Sprintf("attempt %d/%d at temperature %.2f", attempt, o.maxRetries, temp),
			Timestamp:   time.Now(),
		})
		if o.logger != nil {
			o.logger.Info("fix attempt",
				"test", tc.TestFunction,
				"attempt", attempt,
				"max", o.maxRetries,
				"temperature", temp,
			)
		}

		fixed, err := o.coordinator.AttemptFix(ctx, tc, temp)
		if err != nil {
			return false, err
		}
		if fixed {
			return true, nil
		}

		temp += o.tempIncrement
		if o.session != nil {
			o.session.RetryCount++
		}
		if o.logger != nil {
			o.logger.Warn("fix attempt failed",
				"test", tc.TestFunction,
				"attempt", attempt,
				"next_temperature", temp,
			)
		}
	}

	if o.logger != nil {
		o.logger.Error("all fix attempts exhausted", "test", tc.TestFunction, "attempts", o.maxRetries)
	}
	return false, nil
}

// RequestStop asks the session loop to stop before the next case. The
// attempt in flight always runs to completion.
func (o *Orchestrator) RequestStop() {
	o.stop.Store(true)
}

// Session returns the active session, or nil before StartSession.
func (o *Orchestrator) Session() *FixSession {
	return o.session
}

// Progress returns a snapshot of the active session's progress.
func (o *Orchestrator) Progress() (*Progress, error) {
	if o.session == nil {
		return nil, ErrNoSession
	}
	current := ""
	if o.session.CurrentError != nil {
		current = o.session.CurrentError.TestFunction
	}
	return &Progress{
		TotalErrors:        o.session.ErrorCount,
		FixedCount:         o.session.FixedCount(),
		CurrentError:       current,
		RetryCount:         o.session.RetryCount,
		CurrentTemperature: o.initialTemp + o.tempIncrement*float64(o.session.RetryCount),
	}, nil
}

// validateSession checks that the session exists, matches the id, and is
// running.
func (o *Orchestrator) validateSession(sessionID uuid.UUID) error {
	if o.session == nil || o.session.ID != sessionID {
		return ErrNoSession
	}
	if o.session.State != SessionRunning {
		return fmt.Errorf("fixer: run session in state %s: %w", o.session.State, ErrInvalidTransition)
	}
	return nil
}

// emit sends an event without blocking. A nil or full channel drops it.
func (o *Orchestrator) emit(ev Event) {
	if o.events == nil {
		return
	}
	select {
	case o.events <- ev:
	default:
	}
}
