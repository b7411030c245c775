package tui

import "github.com/charmbracelet/lipgloss"

// Layout constants.
const (
	defaultWidth  = 100
	defaultHeight = 30
	minHeight     = 5
	borderPadding = 4

	// chromeHeight is the lines used by the header, banner and status bar.
	chromeHeight = 6
)

// Color palette.
//
//nolint:gochecknoglobals // Read-only style definitions.
var (
	colorAccent  = lipgloss.Color("39")
	colorSubtle  = lipgloss.Color("241")
	colorUp      = lipgloss.Color("42")
	colorDown    = lipgloss.Color("196")
	colorWarning = lipgloss.Color("214")
	colorInfoBg  = lipgloss.Color("236")
)

// Shared styles.
//
//nolint:gochecknoglobals // Read-only style definitions.
var (
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	LabelStyle  = lipgloss.NewStyle().Foreground(colorSubtle)
	ValueStyle  = lipgloss.NewStyle().Bold(true)
	SubtleStyle = lipgloss.NewStyle().Foreground(colorSubtle)
	InfoStyle   = lipgloss.NewStyle().Background(colorInfoBg).Foreground(colorAccent)

	WarningStyle  = lipgloss.NewStyle().Foreground(colorWarning)
	CriticalStyle = lipgloss.NewStyle().Foreground(colorDown).Bold(true)
	UpStyle       = lipgloss.NewStyle().Foreground(colorUp)
	DownStyle     = lipgloss.NewStyle().Foreground(colorDown)

	ActiveTabStyle   = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorAccent)
	InactiveTabStyle = lipgloss.NewStyle().Foreground(colorSubtle)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorSubtle)
	TableSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))
)
