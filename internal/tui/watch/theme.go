// Package watch implements the toolfleet job watch TUI.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the watch TUI.
// Even with a single default theme, this keeps all colors in one place
// and makes future theme support trivial.
type Theme struct {
	// Status colors
	StatusSucceeded  lipgloss.Style
	StatusRunning    lipgloss.Style
	StatusFailed     lipgloss.Style
	StatusQueued     lipgloss.Style
	StatusCancelled  lipgloss.Style
	StatusCancelling lipgloss.Style

	// UI elements
	Border    lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StatusSucceeded:  lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusRunning:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		StatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		StatusQueued:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		StatusCancelled:  lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
		StatusCancelling: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
	}
}
