package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/leapadmin/internal/browser"
	"github.com/leapstack-labs/leapadmin/internal/cli/output"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderTitle())
	b.WriteString("\n")

	catalogPane := m.renderCatalogPane()
	gridPane := m.renderGridPane()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, catalogPane, gridPane))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderTitle() string {
	title := titleStyle.Render("leapadmin") + "  " + dimStyle.Render("data explorer")
	if m.opts.Server != "" {
		title += dimStyle.Render("  " + m.opts.Server)
	}
	switch {
	case m.healthErr != nil:
		title += "  " + errorStyle.Render("● unreachable")
	case m.health != "":
		title += "  " + okStyle.Render("● "+m.health)
	}
	return title
}

func (m *Model) renderCatalogPane() string {
	style := paneStyle
	if m.focus == FocusTables {
		style = focusedPaneStyle
	}

	var content strings.Builder
	content.WriteString(paneHeaderStyle.Render("Tables"))
	content.WriteString("\n")

	cat := m.catalog
	switch {
	case m.catalogLoading:
		content.WriteString(m.spinner.View() + " loading tables")
	case cat.Err != nil && !cat.Fallback:
		content.WriteString(errorStyle.Render("Table list unavailable"))
		content.WriteString("\n")
		content.WriteString(dimStyle.Render(cat.Err.Error()))
		content.WriteString("\n")
		content.WriteString(dimStyle.Render("press r to retry"))
	case len(cat.Tables) == 0:
		content.WriteString(dimStyle.Render("No tables"))
	default:
		if cat.Fallback {
			content.WriteString(warnStyle.Render("offline: placeholder list"))
			content.WriteString("\n")
		}
		st := m.ctrl.State()
		for i, t := range cat.Tables {
			line := t.Name
			switch {
			case i == m.cursor && m.focus == FocusTables:
				line = selectedItemStyle.Render("> " + line)
			case st.HasSelection && st.SelectedTable == t.Name:
				line = activeItemStyle.Render("• " + line)
			default:
				line = normalItemStyle.Render("  " + line)
			}
			content.WriteString(line)
			content.WriteString(dimStyle.Render("  " + output.FormatCount(t.ApproxRowCount)))
			content.WriteString("\n")
		}
	}

	height := max(m.height-4, 5)
	return style.Width(m.catalogWidth()).Height(height).Render(content.String())
}

func (m *Model) renderGridPane() string {
	style := paneStyle
	if m.focus == FocusGrid {
		style = focusedPaneStyle
	}
	width := max(m.width-m.catalogWidth()-6, 20)
	height := max(m.height-4, 5)

	st := m.ctrl.State()
	var content strings.Builder

	if !st.HasSelection {
		content.WriteString(dimStyle.Render("Select a table to browse its rows."))
		return style.Width(width).Height(height).Render(content.String())
	}

	content.WriteString(paneHeaderStyle.Render(st.SelectedTable))
	content.WriteString("\n")

	switch {
	case st.IsLoading && len(st.Rows) == 0:
		content.WriteString(m.spinner.View() + " loading page " + strconv.Itoa(st.CurrentPage))
	case st.Err != nil:
		content.WriteString(errorStyle.Render(st.LastError))
		content.WriteString("\n")
		content.WriteString(dimStyle.Render("press r to retry"))
	case st.Empty():
		content.WriteString(dimStyle.Render(output.EmptyTableText))
	default:
		content.WriteString(m.grid.View())
		content.WriteString("\n")
		footer := output.Footer(st.Result(), browser.PageSize)
		if st.IsLoading {
			footer = m.spinner.View() + " " + footer
		}
		content.WriteString(dimStyle.Render(footer))
	}

	if !st.IsLoading || len(st.Rows) > 0 {
		content.WriteString("\n")
		content.WriteString(m.renderPagination(st))
	}

	return style.Width(width).Height(height).Render(content.String())
}

func (m *Model) renderPagination(st browser.State) string {
	return output.PaginationLine(st.CurrentPage, st.TotalPages,
		func(s string) string { return currentPageStyle.Render(" " + s + " ") },
		func(s string) string { return disabledStyle.Render(s) },
	)
}

func (m *Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("leapadmin - keys"))
	b.WriteString("\n\n")
	full := m.help
	full.ShowAll = true
	b.WriteString(full.View(m.keys))
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("press ? or esc to close"))
	return b.String()
}
