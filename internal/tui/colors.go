package tui

import "github.com/charmbracelet/lipgloss"

// Painter colors text with lipgloss styles.
type Painter interface {
	On(string, lipgloss.Color) string // Sets background color
	As(string, lipgloss.Color) string // Sets foreground color
}

var (
	colorOK    = lipgloss.Color("42")
	colorWarn  = lipgloss.Color("214")
	colorErr   = lipgloss.Color("196")
	colorMuted = lipgloss.Color("243")
)

var styles = struct {
	title   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	muted   lipgloss.Style
	section lipgloss.Style
}{
	title:   lipgloss.NewStyle().Bold(true),
	ok:      lipgloss.NewStyle().Foreground(colorOK),
	warn:    lipgloss.NewStyle().Foreground(colorWarn),
	err:     lipgloss.NewStyle().Foreground(colorErr).Bold(true),
	muted:   lipgloss.NewStyle().Foreground(colorMuted),
	section: lipgloss.NewStyle().Bold(true).Underline(true),
}
