package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LoadingState wraps the spinner shown next to the progress banner.
type LoadingState struct {
	spinner spinner.Model
	active  bool
}

// NewLoadingState returns an idle spinner.
func NewLoadingState() *LoadingState {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)
	return &LoadingState{spinner: s}
}

// Start returns the first tick if the spinner was idle.
func (l *LoadingState) Start() tea.Cmd {
	if l.active {
		return nil
	}
	l.active = true
	return l.spinner.Tick
}

// Stop lets the tick chain lapse.
func (l *LoadingState) Stop() {
	l.active = false
}

// Active reports whether the spinner is ticking.
func (l *LoadingState) Active() bool {
	return l.active
}

// Update advances the spinner while active.
func (l *LoadingState) Update(msg spinner.TickMsg) tea.Cmd {
	if !l.active {
		return nil
	}
	var cmd tea.Cmd
	l.spinner, cmd = l.spinner.Update(msg)
	return cmd
}

// View renders the spinner frame.
func (l *LoadingState) View() string {
	return l.spinner.View()
}
