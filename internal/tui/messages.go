package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/testmend/testmend/internal/fixer"
)

// CaseState represents the display state of a test case in the session view.
type CaseState int

const (
	// CasePending means the case has not been attempted yet.
	CasePending CaseState = iota
	// CaseRunning means a fix attempt is in flight for the case.
	CaseRunning
	// CaseFixed means the case was repaired and verified.
	CaseFixed
	// CaseFailed means all fix attempts for the case were exhausted.
	CaseFailed
)

// caseStateStrings maps each CaseState constant to its human-readable label.
var caseStateStrings = []string{
	"pending",
	"running",
	"fixed",
	"failed",
}

// String returns a human-readable label for the CaseState.
// Returns "unknown" for values outside the defined range.
func (s CaseState) String() string {
	if int(s) < 0 || int(s) >= len(caseStateStrings) {
		return "unknown"
	}
	return caseStateStrings[s]
}

// FixEventMsg wraps a session event for dispatch through the Bubble Tea
// runtime.
type FixEventMsg struct {
	Event fixer.Event
}

// StreamClosedMsg signals that the session event channel was closed: the
// orchestrator has finished and no further events will arrive.
type StreamClosedMsg struct{}

// TickMsg is sent periodically to drive the elapsed-time display.
type TickMsg struct {
	// Time is the wall-clock time at which the tick fired.
	Time time.Time
}

// TickEvery returns a tea.Cmd that sends a TickMsg after duration d.
// The caller's Update handler should call TickEvery again upon receiving a
// TickMsg to create recurring ticks via the recursive scheduling pattern:
//
//	case TickMsg:
//	    // update state...
//	    return m, TickEvery(interval)
func TickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
