// Package tui is the full-screen table browser. It drives a
// browser.Controller from the bubbletea event loop; page fetches run as
// commands and come back as sequence-stamped messages.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/leapstack-labs/leapadmin/internal/api"
	"github.com/leapstack-labs/leapadmin/internal/browser"
)

// DefaultHealthInterval is how often the server health is polled.
const DefaultHealthInterval = 30 * time.Second

// maxColumnWidth caps the width of a grid column.
const maxColumnWidth = 32

// Focus represents which pane is focused.
type Focus int

const (
	FocusTables Focus = iota
	FocusGrid
)

// HealthChecker reports server health.
type HealthChecker interface {
	Health(ctx context.Context) (api.Health, error)
}

// Options configures a Model.
type Options struct {
	Catalog *browser.CatalogLoader
	Pages   browser.PageSource
	// Health is optional; without it no status is shown.
	Health         HealthChecker
	HealthInterval time.Duration
	// InitialTable opens a table at InitialPage on start.
	InitialTable string
	InitialPage  int
	// Server is shown in the title bar.
	Server string
	Logger *slog.Logger
}

// Model is the bubbletea model of the browser.
type Model struct {
	ctx  context.Context
	opts Options
	ctrl *browser.Controller

	catalog        browser.Catalog
	catalogLoading bool
	cursor         int

	focus    Focus
	grid     table.Model
	spinner  spinner.Model
	help     help.Model
	showHelp bool
	keys     KeyMap

	health    string
	healthErr error

	width, height int
}

// New creates the browser model. ctx bounds every request it issues.
func New(ctx context.Context, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = DefaultHealthInterval
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	grid := table.New(table.WithFocused(false))
	st := table.DefaultStyles()
	st.Header = st.Header.Bold(true).BorderBottom(true).BorderForeground(mutedColor)
	st.Selected = st.Selected.Foreground(primaryColor).Bold(true)
	grid.SetStyles(st)

	return &Model{
		ctx:            ctx,
		opts:           opts,
		ctrl:           browser.NewController(opts.Logger),
		catalogLoading: true,
		grid:           grid,
		spinner:        sp,
		help:           help.New(),
		keys:           DefaultKeyMap(),
		width:          100,
		height:         30,
	}
}

// State returns the controller state. It is used by tests and the view.
func (m *Model) State() browser.State {
	return m.ctrl.State()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadCatalog, m.spinner.Tick}
	if m.opts.Health != nil {
		cmds = append(cmds, m.checkHealth)
	}
	if m.opts.InitialTable != "" {
		req := m.ctrl.SelectTableAt(m.opts.InitialTable, m.opts.InitialPage)
		m.focus = FocusGrid
		m.grid.Focus()
		cmds = append(cmds, m.fetch(req))
	}
	return tea.Batch(cmds...)
}

func (m *Model) loadCatalog() tea.Msg {
	return catalogLoadedMsg{Catalog: m.opts.Catalog.Load(m.ctx)}
}

func (m *Model) checkHealth() tea.Msg {
	h, err := m.opts.Health.Health(m.ctx)
	return healthMsg{Health: h, Error: err}
}

func (m *Model) scheduleHealth() tea.Cmd {
	return tea.Tick(m.opts.HealthInterval, func(t time.Time) tea.Msg {
		return healthTickMsg(t)
	})
}

// fetch runs req off the event loop.
func (m *Model) fetch(req browser.Request) tea.Cmd {
	ctx, src := m.ctx, m.opts.Pages
	return func() tea.Msg {
		return pageLoadedMsg{Response: browser.Run(ctx, src, req)}
	}
}

// load issues req and keeps the spinner turning while it is in flight.
func (m *Model) load(req browser.Request) tea.Cmd {
	return tea.Batch(m.fetch(req), m.spinner.Tick)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizeGrid()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case catalogLoadedMsg:
		m.catalogLoading = false
		m.catalog = msg.Catalog
		m.cursor = min(m.cursor, max(len(m.catalog.Tables)-1, 0))
		return m, nil

	case pageLoadedMsg:
		if m.ctrl.Apply(msg.Response) {
			m.syncGrid()
		}
		return m, nil

	case healthMsg:
		if msg.Error != nil {
			m.health, m.healthErr = "", msg.Error
		} else {
			m.health, m.healthErr = msg.Health.Status, nil
		}
		return m, m.scheduleHealth()

	case healthTickMsg:
		return m, m.checkHealth

	case spinner.TickMsg:
		if !m.catalogLoading && !m.ctrl.State().IsLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Clear) {
			m.showHelp = false
		}
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		m.toggleFocus()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.ctrl.ClearSelection()
		m.syncGrid()
		m.setFocus(FocusTables)
		return m, nil

	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
		if m.focus == FocusGrid {
			var cmd tea.Cmd
			m.grid, cmd = m.grid.Update(msg)
			return m, cmd
		}
		if key.Matches(msg, m.keys.Up) && m.cursor > 0 {
			m.cursor--
		}
		if key.Matches(msg, m.keys.Down) && m.cursor < len(m.catalog.Tables)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.focus != FocusTables || len(m.catalog.Tables) == 0 {
			return m, nil
		}
		req := m.ctrl.SelectTable(m.catalog.Tables[m.cursor].Name)
		m.syncGrid()
		m.setFocus(FocusGrid)
		return m, m.load(req)

	case key.Matches(msg, m.keys.NextPage):
		return m.navigate(m.ctrl.NextPage())

	case key.Matches(msg, m.keys.PrevPage):
		return m.navigate(m.ctrl.PrevPage())

	case key.Matches(msg, m.keys.FirstPage):
		return m.navigate(m.ctrl.GoToPage(1))

	case key.Matches(msg, m.keys.LastPage):
		return m.navigate(m.ctrl.GoToPage(m.ctrl.State().TotalPages))

	case key.Matches(msg, m.keys.Refresh):
		if !m.ctrl.State().HasSelection {
			m.catalogLoading = true
			return m, tea.Batch(m.loadCatalog, m.spinner.Tick)
		}
		return m.navigate(m.ctrl.Refresh())
	}

	return m, nil
}

func (m *Model) navigate(req browser.Request, ok bool) (tea.Model, tea.Cmd) {
	if !ok {
		return m, nil
	}
	return m, m.load(req)
}

func (m *Model) toggleFocus() {
	if m.focus == FocusTables {
		m.setFocus(FocusGrid)
		return
	}
	m.setFocus(FocusTables)
}

func (m *Model) setFocus(f Focus) {
	m.focus = f
	if f == FocusGrid {
		m.grid.Focus()
	} else {
		m.grid.Blur()
	}
}

// syncGrid copies the controller's rows into the grid widget. Rows are
// cleared before the columns change so the widget never renders rows
// against a mismatched column set.
func (m *Model) syncGrid() {
	st := m.ctrl.State()

	cols := make([]table.Column, len(st.Columns))
	for i, c := range st.Columns {
		title := c.Name
		if c.Type != "" {
			title = fmt.Sprintf("%s (%s)", c.Name, c.Type)
		}
		cols[i] = table.Column{Title: title, Width: len([]rune(title))}
	}

	rows := make([]table.Row, len(st.Rows))
	for r, rec := range st.Rows {
		row := make(table.Row, len(st.Columns))
		for i, c := range st.Columns {
			cell := rec.Get(c.Name).Display()
			row[i] = cell
			cols[i].Width = max(cols[i].Width, len([]rune(cell)))
		}
		rows[r] = row
	}
	for i := range cols {
		cols[i].Width = min(cols[i].Width, maxColumnWidth)
	}

	m.grid.SetRows(nil)
	m.grid.SetColumns(cols)
	m.grid.SetRows(rows)
	m.grid.GotoTop()
	m.resizeGrid()
}

func (m *Model) resizeGrid() {
	// Title bar, pane borders, table title, footer lines and help.
	m.grid.SetHeight(max(m.height-12, 3))
	m.grid.SetWidth(max(m.width-m.catalogWidth()-8, 20))
}

func (m *Model) catalogWidth() int {
	return min(max(m.width/4, 18), 32)
}
