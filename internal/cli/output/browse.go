package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/leapstack-labs/leapadmin/internal/browser"
)

// EmptyTableText is printed for a page with no rows.
const EmptyTableText = "(table has no data)"

var numbers = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators.
func FormatCount(n int64) string {
	return numbers.Sprintf("%d", n)
}

// FormatSizeMB renders an approximate size in megabytes.
func FormatSizeMB(mb float64) string {
	return numbers.Sprintf("%.2f MB", mb)
}

// CatalogOutput is the JSON form of a catalog.
type CatalogOutput struct {
	Tables   []browser.TableSummary `json:"tables"`
	Fallback bool                   `json:"fallback,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// PageOutput is the JSON form of one page.
type PageOutput struct {
	Table      string                     `json:"table_name"`
	Columns    []browser.ColumnDescriptor `json:"columns"`
	Data       []browser.RowRecord        `json:"data"`
	Page       int                        `json:"page"`
	TotalPages int                        `json:"total_pages"`
	Total      int64                      `json:"total"`
}

// Catalog renders the table catalog. A catalog error without a fallback
// list is rendered as an unavailable notice rather than an empty table.
func (r *Renderer) Catalog(cat browser.Catalog) error {
	mode := r.EffectiveMode()
	if mode == ModeJSON {
		out := CatalogOutput{Tables: cat.Tables, Fallback: cat.Fallback}
		if out.Tables == nil {
			out.Tables = []browser.TableSummary{}
		}
		if cat.Err != nil {
			out.Error = cat.Err.Error()
		}
		return r.JSON(out)
	}

	if cat.Err != nil {
		if !cat.Fallback {
			r.Error("table catalog unavailable: " + cat.Err.Error())
			return nil
		}
		r.Warning("backend unavailable, showing placeholder tables (dev mode): " + cat.Err.Error())
	}

	if len(cat.Tables) == 0 && mode != ModeCSV {
		r.Println("(no tables)")
		return nil
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"Table", "Rows", "Size", "Description"})
	for _, s := range cat.Tables {
		t.AppendRow(table.Row{s.Name, FormatCount(s.ApproxRowCount), FormatSizeMB(s.ApproxSizeMB), s.Description})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	r.renderTable(t, mode)

	if mode != ModeCSV {
		r.Muted(fmt.Sprintf("(%d tables)", len(cat.Tables)))
	}
	return nil
}

// Page renders one page of table with its footer and pagination window.
func (r *Renderer) Page(tableName string, res browser.PageResult) error {
	res = res.Normalize()
	mode := r.EffectiveMode()

	if mode == ModeJSON {
		out := PageOutput{
			Table:      tableName,
			Columns:    res.Columns,
			Data:       res.Rows,
			Page:       res.CurrentPage,
			TotalPages: res.TotalPages,
			Total:      res.TotalRows,
		}
		if out.Columns == nil {
			out.Columns = []browser.ColumnDescriptor{}
		}
		if out.Data == nil {
			out.Data = []browser.RowRecord{}
		}
		return r.JSON(out)
	}

	if mode == ModeCSV {
		t := r.newTable()
		t.AppendHeader(columnNames(res.Columns, false))
		for _, row := range res.Rows {
			t.AppendRow(r.cells(res.Columns, row, false))
		}
		t.RenderCSV()
		return nil
	}

	if mode == ModeMarkdown {
		r.Println(FormatHeader(2, tableName))
		r.Println("")
	} else {
		r.Println(r.styles.Table.Render(tableName))
	}

	if len(res.Rows) == 0 {
		r.Println(EmptyTableText)
		return nil
	}

	t := r.newTable()
	t.AppendHeader(columnNames(res.Columns, true))
	for _, row := range res.Rows {
		t.AppendRow(r.cells(res.Columns, row, mode == ModeText))
	}
	r.renderTable(t, mode)

	r.Println("")
	r.Muted(Footer(res, browser.PageSize))
	r.Println(r.Pagination(res.CurrentPage, res.TotalPages))
	return nil
}

// Footer describes which rows a page holds.
func Footer(res browser.PageResult, pageSize int) string {
	first := int64(res.CurrentPage-1)*int64(pageSize) + 1
	last := first + int64(len(res.Rows)) - 1
	if len(res.Rows) == 0 {
		first, last = 0, 0
	}
	return fmt.Sprintf("showing %s-%s of %s rows (page %d of %d)",
		FormatCount(first), FormatCount(last), FormatCount(res.TotalRows), res.CurrentPage, res.TotalPages)
}

// Pagination renders the window line with styling for the current mode.
func (r *Renderer) Pagination(current, total int) string {
	switch {
	case r.EffectiveMode() == ModeText && r.isTTY:
		return PaginationLine(current, total,
			func(s string) string { return r.styles.Current.Render(s) },
			func(s string) string { return r.styles.Disabled.Render(s) },
		)
	default:
		return PaginationLine(current, total, bracket, strike)
	}
}

func bracket(s string) string { return "[" + s + "]" }
func strike(s string) string  { return "~~" + s + "~~" }

// PaginationLine renders "‹ prev  1 [2] 3  next ›". current marks the
// selected page; disabled marks a control that cannot be used.
func PaginationLine(current, total int, currentFn, disabledFn func(string) string) string {
	window := browser.WindowOf(current, total)

	prev := "‹ prev"
	if browser.PrevDisabled(current) {
		prev = disabledFn(prev)
	}
	next := "next ›"
	if browser.NextDisabled(current, max(total, 1)) {
		next = disabledFn(next)
	}

	buttons := make([]string, len(window))
	for i, p := range window {
		label := strconv.Itoa(p)
		if p == current {
			label = currentFn(label)
		}
		buttons[i] = label
	}
	return prev + "  " + strings.Join(buttons, " ") + "  " + next
}

func (r *Renderer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	// Column names are data; keep their case.
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	return t
}

func (r *Renderer) renderTable(t table.Writer, mode Mode) {
	switch mode {
	case ModeMarkdown:
		t.RenderMarkdown()
	case ModeCSV:
		t.RenderCSV()
	default:
		t.Render()
	}
}

func columnNames(cols []browser.ColumnDescriptor, withType bool) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		if withType && c.Type != "" {
			row[i] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
			continue
		}
		row[i] = c.Name
	}
	return row
}

// cells formats one record in column order. Null values use the NULL
// placeholder; empty strings stay empty.
func (r *Renderer) cells(cols []browser.ColumnDescriptor, rec browser.RowRecord, styled bool) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		v := rec.Get(c.Name)
		if v.IsNull() && styled {
			row[i] = r.styles.Null.Render(browser.NullText)
			continue
		}
		row[i] = v.Display()
	}
	return row
}
