// Package tui renders the live progress view shown while treesum hashes a
// tree. It uses Bubble Tea for the event loop, Bubbles for the spinner and
// progress bar, and Lip Gloss for styling.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette for the progress view.
var (
	primaryColor = lipgloss.Color("#7D56F4")
	successColor = lipgloss.Color("#28A745")
	dangerColor  = lipgloss.Color("#DC3545")
	mutedColor   = lipgloss.Color("#666666")
)

var (
	// boxStyle frames the whole view.
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	mutedTextStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(dangerColor)

	successTextStyle = lipgloss.NewStyle().
				Foreground(successColor)
)
