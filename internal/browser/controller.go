package browser

import (
	"context"
	"log/slog"
)

// Request identifies one page fetch. Seq is stamped by the Controller and
// increases with every request it issues.
type Request struct {
	Seq   uint64
	Table string
	Page  int
}

// Response carries the outcome of a Request back to the Controller.
type Response struct {
	Request Request
	Result  PageResult
	Err     error
}

// State is the browser's selection and last-fetched data. It is a value
// snapshot; mutating it does not affect the Controller.
type State struct {
	SelectedTable string
	HasSelection  bool
	CurrentPage   int
	IsLoading     bool
	LastError     string
	Err           error

	Rows       []RowRecord
	Columns    []ColumnDescriptor
	TotalPages int
	TotalRows  int64
}

// Empty reports whether a loaded page has no rows. A failed or pending
// fetch is not considered empty.
func (s State) Empty() bool {
	return s.HasSelection && !s.IsLoading && s.Err == nil && len(s.Rows) == 0
}

// Window returns the pagination buttons for the current position.
func (s State) Window() []int {
	return WindowOf(s.CurrentPage, s.TotalPages)
}

// Result returns the displayed page as a PageResult.
func (s State) Result() PageResult {
	return PageResult{
		Rows:        s.Rows,
		Columns:     s.Columns,
		CurrentPage: s.CurrentPage,
		TotalPages:  s.TotalPages,
		TotalRows:   s.TotalRows,
	}
}

// Controller owns the browser State and decides which fetch results apply.
//
// A Controller must be driven from a single event loop. Every transition
// into loading issues a new sequence number; Apply drops any response whose
// sequence is not the latest, so a slow reply for an old selection can never
// overwrite a newer one.
type Controller struct {
	state  State
	seq    uint64
	logger *slog.Logger
}

// NewController returns a Controller with no table selected.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		state:  State{CurrentPage: 1, TotalPages: 1},
		logger: logger,
	}
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	return c.state
}

// SelectTable switches to table and requests its first page.
func (c *Controller) SelectTable(table string) Request {
	return c.SelectTableAt(table, 1)
}

// SelectTableAt switches to table and requests the given page directly.
// It is meant for deep links from the command line; interactive table
// changes go through SelectTable.
func (c *Controller) SelectTableAt(table string, page int) Request {
	if page < 1 {
		page = 1
	}
	if !c.state.HasSelection || c.state.SelectedTable != table {
		c.state.Rows = nil
		c.state.Columns = nil
		c.state.TotalPages = 1
		c.state.TotalRows = 0
	}
	c.state.SelectedTable = table
	c.state.HasSelection = true
	return c.begin(page)
}

// GoToPage requests page of the selected table. It reports false when no
// table is selected or page lies outside [1, TotalPages].
func (c *Controller) GoToPage(page int) (Request, bool) {
	if !c.state.HasSelection || page < 1 || page > c.state.TotalPages {
		return Request{}, false
	}
	return c.begin(page), true
}

// NextPage requests the page after the current one unless "next" is disabled.
func (c *Controller) NextPage() (Request, bool) {
	if NextDisabled(c.state.CurrentPage, c.state.TotalPages) {
		return Request{}, false
	}
	return c.GoToPage(c.state.CurrentPage + 1)
}

// PrevPage requests the page before the current one unless "previous" is disabled.
func (c *Controller) PrevPage() (Request, bool) {
	if PrevDisabled(c.state.CurrentPage) {
		return Request{}, false
	}
	return c.GoToPage(c.state.CurrentPage - 1)
}

// Refresh re-requests the current page of the selected table.
func (c *Controller) Refresh() (Request, bool) {
	if !c.state.HasSelection {
		return Request{}, false
	}
	return c.begin(c.state.CurrentPage), true
}

// ClearSelection returns to the initial state. Responses still in flight
// become stale.
func (c *Controller) ClearSelection() {
	c.seq++
	c.state = State{CurrentPage: 1, TotalPages: 1}
}

func (c *Controller) begin(page int) Request {
	c.seq++
	c.state.CurrentPage = page
	c.state.LastError = ""
	c.state.Err = nil
	c.state.IsLoading = true

	req := Request{Seq: c.seq, Table: c.state.SelectedTable, Page: page}
	c.logger.Debug("page requested", "table", req.Table, "page", req.Page, "seq", req.Seq)
	return req
}

// Apply stores the outcome of resp and reports whether it was applied.
// Responses for superseded requests are discarded untouched.
func (c *Controller) Apply(resp Response) bool {
	if resp.Request.Seq != c.seq || !c.state.HasSelection {
		c.logger.Debug("discarding stale page response",
			"table", resp.Request.Table,
			"page", resp.Request.Page,
			"seq", resp.Request.Seq,
			"latest", c.seq,
		)
		return false
	}

	c.state.IsLoading = false

	if resp.Err != nil {
		c.state.Err = resp.Err
		c.state.LastError = resp.Err.Error()
		c.state.Rows = nil
		c.state.Columns = nil
		c.logger.Debug("page fetch failed", "table", resp.Request.Table, "error", resp.Err)
		return true
	}

	res := resp.Result.Normalize()
	c.state.Rows = res.Rows
	c.state.Columns = res.Columns
	c.state.CurrentPage = res.CurrentPage
	c.state.TotalPages = res.TotalPages
	c.state.TotalRows = res.TotalRows
	return true
}

// Run performs req against src and wraps the outcome for Apply. It does not
// touch Controller state, so it is safe to call from a background goroutine.
func Run(ctx context.Context, src PageSource, req Request) Response {
	res, err := src.FetchPage(ctx, req.Table, req.Page, PageSize)
	return Response{Request: req, Result: res, Err: err}
}
