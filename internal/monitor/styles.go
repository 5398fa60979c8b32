package monitor

import "github.com/charmbracelet/lipgloss"

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#36A3D9") // Blue
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF5555") // Red
	SubtleColor    = lipgloss.Color("#626262") // Gray
	TextColor      = lipgloss.Color("#FFFFFF") // White
)

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(0, 1)

	DeviceStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true).
			PaddingLeft(1)

	StatusConnectedStyle = lipgloss.NewStyle().
				Foreground(SecondaryColor).
				Bold(true)

	StatusWaitingStyle = lipgloss.NewStyle().
				Foreground(WarningColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 2).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Width(22)

	ValueStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true)

	StaleValueStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	HelpStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			PaddingTop(1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)
)
