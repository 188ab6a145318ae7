package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#7C3AED")
	mutedColor   = lipgloss.Color("#6B7280")
	errorColor   = lipgloss.Color("#EF4444")
	warnColor    = lipgloss.Color("#F59E0B")
	okColor      = lipgloss.Color("#10B981")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	focusedPaneStyle = paneStyle.
				BorderForeground(primaryColor)

	paneHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	selectedItemStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(primaryColor)

	activeItemStyle = lipgloss.NewStyle().
			Foreground(okColor)

	normalItemStyle = lipgloss.NewStyle()

	dimStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(warnColor)

	okStyle = lipgloss.NewStyle().
		Foreground(okColor)

	currentPageStyle = lipgloss.NewStyle().
				Bold(true).
				Reverse(true)

	disabledStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Faint(true)
)
