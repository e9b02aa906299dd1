package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ---------------------------------------------------------------------------
// Color Palette
// ---------------------------------------------------------------------------

// ColorPrimary is the main accent color used for titles and highlights.
var ColorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7B78FF"}

// ColorAccent is a green-teal accent for active states.
var ColorAccent = lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"}

// ColorSuccess represents fixed tests (green).
var ColorSuccess = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#4ADE80"}

// ColorWarning represents retries and escalation (amber/yellow).
var ColorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// ColorError represents failures (red).
var ColorError = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}

// ColorMuted is a subdued foreground color for secondary text.
var ColorMuted = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

// ColorSubtle provides very low-contrast borders and dividers.
var ColorSubtle = lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#4B5563"}

// ColorBorder is the standard panel border color.
var ColorBorder = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#374151"}

// ---------------------------------------------------------------------------
// Theme
// ---------------------------------------------------------------------------

// Theme holds all Lipgloss styles for the session view. Every field is a
// pre-built lipgloss.Style value. Width and Height are NOT set on any theme
// style; those are applied dynamically at render time.
type Theme struct {
	// Title bar
	TitleBar     lipgloss.Style
	TitleVersion lipgloss.Style

	// Test case list
	CaseFunction lipgloss.Style
	CaseFile     lipgloss.Style
	CaseAttempt  lipgloss.Style

	// Event log
	LogContainer lipgloss.Style
	LogTimestamp lipgloss.Style
	LogMessage   lipgloss.Style

	// Progress bar
	ProgressFilled  lipgloss.Style
	ProgressEmpty   lipgloss.Style
	ProgressLabel   lipgloss.Style
	ProgressPercent lipgloss.Style

	// Status indicators
	StatusRunning lipgloss.Style
	StatusFixed   lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusPending lipgloss.Style

	// General
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
}

// DefaultTheme returns the default theme with adaptive colors for automatic
// light/dark terminal support.
func DefaultTheme() Theme {
	return Theme{
		TitleBar: lipgloss.NewStyle().
			Bold(true).
			Background(ColorPrimary).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1),

		TitleVersion: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#E0DFFF", Dark: "#C4C2FF"}),

		CaseFunction: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F9FAFB"}),

		CaseFile: lipgloss.NewStyle().
			Foreground(ColorMuted),

		CaseAttempt: lipgloss.NewStyle().
			Foreground(ColorWarning),

		LogContainer: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1),

		LogTimestamp: lipgloss.NewStyle().
			Foreground(ColorMuted),

		LogMessage: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#E5E7EB"}),

		ProgressFilled: lipgloss.NewStyle().
			Foreground(ColorAccent),

		ProgressEmpty: lipgloss.NewStyle().
			Foreground(ColorSubtle),

		ProgressLabel: lipgloss.NewStyle().
			Foreground(ColorMuted),

		ProgressPercent: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent),

		StatusRunning: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent),

		StatusFixed: lipgloss.NewStyle().
			Foreground(ColorSuccess),

		StatusFailed: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError),

		StatusPending: lipgloss.NewStyle().
			Foreground(ColorMuted),

		HelpKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		HelpDesc: lipgloss.NewStyle().
			Foreground(ColorMuted),
	}
}

// StatusIndicator returns a styled Unicode symbol string for the given
// case state, ready to embed in a view.
//
// Symbol mapping:
//   - CasePending → "○" (open circle, muted)
//   - CaseRunning → "●" (filled circle, accent)
//   - CaseFixed   → "✓" (check mark, success green)
//   - CaseFailed  → "✗" (cross, red)
func (t Theme) StatusIndicator(state CaseState) string {
	switch state {
	case CaseRunning:
		return t.StatusRunning.Render("●")
	case CaseFixed:
		return t.StatusFixed.Render("✓")
	case CaseFailed:
		return t.StatusFailed.Render("✗")
	default: // CasePending and any unknown value
		return t.StatusPending.Render("○")
	}
}

// ProgressBar renders a text-based progress bar of the given total width.
// filled is clamped to [0.0, 1.0]; width <= 0 returns an empty string.
// Uses U+2588 (FULL BLOCK) for filled cells and U+2591 (LIGHT SHADE) for
// empty cells.
func (t Theme) ProgressBar(filled float64, width int) string {
	if width <= 0 {
		return ""
	}

	if filled < 0.0 {
		filled = 0.0
	}
	if filled > 1.0 {
		filled = 1.0
	}

	filledCount := int(filled * float64(width))
	emptyCount := width - filledCount

	var sb strings.Builder
	if filledCount > 0 {
		sb.WriteString(t.ProgressFilled.Render(strings.Repeat("█", filledCount)))
	}
	if emptyCount > 0 {
		sb.WriteString(t.ProgressEmpty.Render(strings.Repeat("░", emptyCount)))
	}
	return sb.String()
}
