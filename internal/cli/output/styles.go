package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles groups the lipgloss styles used by text output.
type Styles struct {
	Header1  lipgloss.Style
	Header2  lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Table    lipgloss.Style
	Current  lipgloss.Style
	Disabled lipgloss.Style
	Null     lipgloss.Style
}

// NewStyles builds styles bound to w. The Ascii profile renders every style
// as plain text.
func NewStyles(w io.Writer, profile termenv.Profile) Styles {
	lr := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	return Styles{
		Header1:  lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:  lr.NewStyle().Bold(true),
		Bold:     lr.NewStyle().Bold(true),
		Muted:    lr.NewStyle().Foreground(lipgloss.Color("8")),
		Success:  lr.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:  lr.NewStyle().Foreground(lipgloss.Color("11")),
		Error:    lr.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Table:    lr.NewStyle().Foreground(lipgloss.Color("14")),
		Current:  lr.NewStyle().Reverse(true).Bold(true),
		Disabled: lr.NewStyle().Faint(true).Strikethrough(true),
		Null:     lr.NewStyle().Italic(true).Foreground(lipgloss.Color("8")),
	}
}
