package ui

import "github.com/charmbracelet/lipgloss"

var (
	accent     = lipgloss.Color("#FF8C42")
	accentSoft = lipgloss.Color("#FFB84D")
	muted      = lipgloss.Color("#6B7280")
	white      = lipgloss.Color("#FFFFFF")
	danger     = lipgloss.Color("#FF4757")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			MarginTop(1)

	LinkStyle = lipgloss.NewStyle().
			Foreground(accentSoft).
			Underline(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(muted).
			MarginBottom(1)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	UnselectedStyle = lipgloss.NewStyle().
			Foreground(white)

	CheckedStyle = lipgloss.NewStyle().
			Foreground(accentSoft).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(danger).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(accentSoft).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(muted).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(accentSoft).
			Bold(true)

	CodeStyle = lipgloss.NewStyle().
			Foreground(white).
			Background(lipgloss.Color("#282C34")).
			Padding(0, 1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)
)
