package output

import "github.com/charmbracelet/lipgloss"

// Color constants using ANSI 256-color palette.
const (
	// ColorPrimary is used for headers (bright blue).
	ColorPrimary = lipgloss.Color("39")

	// ColorSuccess is used for a clean result (green).
	ColorSuccess = lipgloss.Color("42")

	// ColorWarning is used for skipped files (orange/yellow).
	ColorWarning = lipgloss.Color("214")

	// ColorDanger is used for discrepancies (red).
	ColorDanger = lipgloss.Color("196")

	// ColorMuted is used for secondary text (gray).
	ColorMuted = lipgloss.Color("245")
)

// Box styles for containing grouped content.
var (
	// HeaderBox holds the run description.
	HeaderBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	// FooterBox holds the counts and totals.
	FooterBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)
)

// Text styles for various content types.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorDanger)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	PathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	SizeStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	// KindStyle renders the MISSING / MISMATCH column.
	KindStyle = lipgloss.NewStyle().
			Foreground(ColorDanger).
			Bold(true)
)
