package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/testmend/testmend/internal/fixer"
)

// KeyMap defines the key bindings for the session view.
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap returns the default session key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "stop session"),
		),
	}
}

// caseRow tracks the display state of one failing test case.
type caseRow struct {
	function    string
	file        string
	state       CaseState
	attempt     int
	temperature float64
}

// SessionConfig holds configuration for the session view.
type SessionConfig struct {
	// Version is the testmend semantic version string (e.g. "0.3.0").
	Version string
	// Cases are the failing test cases the session will work through,
	// in run order.
	Cases []*fixer.TestCase
	// Events is the orchestrator event channel the view consumes.
	Events <-chan fixer.Event
	// OnStop is invoked when the user requests a stop. May be nil.
	OnStop func()
}

// SessionModel is the top-level Bubble Tea model for a fix session. It
// implements tea.Model (Init, Update, View) and renders per-case progress
// plus a scrolling event log.
type SessionModel struct {
	theme  Theme
	keys   KeyMap
	bridge EventBridge
	ctx    context.Context
	cfg    SessionConfig

	rows  []caseRow
	index map[string]int

	log   viewport.Model
	lines []string

	width     int
	height    int
	ready     bool // true after first WindowSizeMsg
	done      bool
	outcome   fixer.EventType
	startedAt time.Time
	elapsed   time.Duration
	quitting  bool
}

// NewSessionModel constructs a SessionModel over the given cases and event
// channel. The context cancels the channel reads when the caller shuts the
// session down externally.
func NewSessionModel(ctx context.Context, cfg SessionConfig) SessionModel {
	rows := make([]caseRow, 0, len(cfg.Cases))
	index := make(map[string]int, len(cfg.Cases))
	for i, tc := range cfg.Cases {
		rows = append(rows, caseRow{
			function: tc.TestFunction,
			file:     tc.TestFile,
			state:    CasePending,
		})
		index[tc.TestFunction] = i
	}

	return SessionModel{
		theme:     DefaultTheme(),
		keys:      DefaultKeyMap(),
		bridge:    NewEventBridge(),
		ctx:       ctx,
		cfg:       cfg,
		rows:      rows,
		index:     index,
		startedAt: time.Now(),
	}
}

// Init starts the event bridge and the elapsed-time ticker.
func (m SessionModel) Init() tea.Cmd {
	return tea.Batch(
		m.bridge.FixEventCmd(m.ctx, m.cfg.Events),
		TickEvery(time.Second),
	)
}

// Update dispatches incoming messages and returns the updated model plus any
// follow-up command.
func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logHeight := msg.Height - len(m.rows) - 7
		if logHeight < 3 {
			logHeight = 3
		}
		if !m.ready {
			m.log = viewport.New(msg.Width-4, logHeight)
			m.log.SetContent(strings.Join(m.lines, "\n"))
			m.ready = true
		} else {
			m.log.Width = msg.Width - 4
			m.log.Height = logHeight
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.cfg.OnStop != nil && !m.done {
				m.cfg.OnStop()
			}
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case FixEventMsg:
		m.applyEvent(msg.Event)
		return m, m.bridge.FixEventCmd(m.ctx, m.cfg.Events)

	case StreamClosedMsg:
		m.done = true
		return m, tea.Quit

	case TickMsg:
		if !m.startedAt.IsZero() {
			m.elapsed = msg.Time.Sub(m.startedAt)
		}
		if m.done {
			return m, nil
		}
		return m, TickEvery(time.Second)
	}

	return m, nil
}

// applyEvent folds an orchestrator event into the display state and appends
// a line to the event log.
func (m *SessionModel) applyEvent(ev fixer.Event) {
	switch ev.Type {
	case fixer.EventSessionStarted:
		m.startedAt = ev.Timestamp

	case fixer.EventCaseStarted:
		if i, ok := m.index[ev.Case]; ok {
			m.rows[i].state = CaseRunning
		}

	case fixer.EventAttemptStarted:
		if i, ok := m.index[ev.Case]; ok {
			m.rows[i].attempt = ev.Attempt
			m.rows[i].temperature = ev.Temperature
		}

	case fixer.EventCaseFixed:
		if i, ok := m.index[ev.Case]; ok {
			m.rows[i].state = CaseFixed
		}

	case fixer.EventCaseFailed:
		if i, ok := m.index[ev.Case]; ok {
			m.rows[i].state = CaseFailed
		}

	case fixer.EventSessionCompleted, fixer.EventSessionFailed, fixer.EventSessionError:
		m.outcome = ev.Type
		m.done = true
	}

	m.lines = append(m.lines, m.formatLogLine(ev))
	if m.ready {
		m.log.SetContent(strings.Join(m.lines, "\n"))
		m.log.GotoBottom()
	}
}

// formatLogLine renders one event as a timestamped log line.
func (m *SessionModel) formatLogLine(ev fixer.Event) string {
	ts := m.theme.LogTimestamp.Render(ev.Timestamp.Format("15:04:05"))

	text := ev.Message
	if text == "" {
		text = string(ev.Type)
		if ev.Case != "" {
			text += " " + ev.Case
		}
	}
	if ev.Type == fixer.EventAttemptStarted {
		text = fmt.Sprintf("%s (attempt %d, temperature %.2f)", text, ev.Attempt, ev.Temperature)
	}
	return ts + " " + m.theme.LogMessage.Render(text)
}

// fixedCount returns how many cases have reached the fixed state.
func (m SessionModel) fixedCount() int {
	n := 0
	for _, r := range m.rows {
		if r.state == CaseFixed {
			n++
		}
	}
	return n
}

// View renders the complete session UI as a string.
func (m SessionModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting fix session..."
	}

	var sb strings.Builder

	title := "testmend"
	if m.cfg.Version != "" {
		title += " " + m.cfg.Version
	}
	sb.WriteString(m.theme.TitleBar.Render(title))
	sb.WriteString("\n\n")

	fixed := m.fixedCount()
	total := len(m.rows)
	var ratio float64
	if total > 0 {
		ratio = float64(fixed) / float64(total)
	}
	barWidth := m.width - 20
	if barWidth > 40 {
		barWidth = 40
	}
	sb.WriteString(m.theme.ProgressBar(ratio, barWidth))
	sb.WriteString(" ")
	sb.WriteString(m.theme.ProgressPercent.Render(fmt.Sprintf("%d/%d fixed", fixed, total)))
	sb.WriteString(" ")
	sb.WriteString(m.theme.ProgressLabel.Render(formatElapsed(m.elapsed)))
	sb.WriteString("\n\n")

	for _, r := range m.rows {
		sb.WriteString(" ")
		sb.WriteString(m.theme.StatusIndicator(r.state))
		sb.WriteString(" ")
		sb.WriteString(m.theme.CaseFunction.Render(r.function))
		sb.WriteString(" ")
		sb.WriteString(m.theme.CaseFile.Render(r.file))
		if r.state == CaseRunning && r.attempt > 0 {
			sb.WriteString(" ")
			sb.WriteString(m.theme.CaseAttempt.Render(
				fmt.Sprintf("attempt %d @ %.2f", r.attempt, r.temperature)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(m.theme.LogContainer.Render(m.log.View()))
	sb.WriteString("\n")

	help := lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.HelpKey.Render("q"),
		m.theme.HelpDesc.Render(" stop session  "),
		m.theme.HelpKey.Render("↑/↓"),
		m.theme.HelpDesc.Render(" scroll log"),
	)
	sb.WriteString(help)

	return sb.String()
}

// formatElapsed renders a duration as m:ss for the status line.
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", mins, secs)
}
