// Package browser implements the data explorer core: the table catalog,
// page fetching, the pagination window and the selection state machine that
// ties them together. It knows nothing about HTTP or terminals; front ends
// drive a Controller and sources are injected.
package browser

import (
	"context"
	"encoding/json"
)

// PageSize is the number of rows requested per page.
const PageSize = 20

// TableSummary is one entry of the table catalog. Counts and sizes are
// informational and may be stale.
type TableSummary struct {
	Name           string  `json:"name"`
	ApproxRowCount int64   `json:"rows"`
	ApproxSizeMB   float64 `json:"size_mb"`
	Description    string  `json:"description"`
}

// ColumnDescriptor describes one column of a fetched page. Type is a
// server-defined label and is never interpreted.
type ColumnDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// PageResult is one page of a table as returned by the server.
type PageResult struct {
	Rows        []RowRecord
	Columns     []ColumnDescriptor
	CurrentPage int
	TotalPages  int
	TotalRows   int64
}

type pageWire struct {
	Data       []RowRecord        `json:"data"`
	Columns    []ColumnDescriptor `json:"columns"`
	Page       int                `json:"page"`
	TotalPages int                `json:"total_pages"`
	Total      int64              `json:"total"`
}

// UnmarshalJSON decodes the {data, columns, page, total_pages, total}
// envelope and normalises the pagination fields.
func (p *PageResult) UnmarshalJSON(data []byte) error {
	var w pageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = PageResult{
		Rows:        w.Data,
		Columns:     w.Columns,
		CurrentPage: w.Page,
		TotalPages:  w.TotalPages,
		TotalRows:   w.Total,
	}.Normalize()
	return nil
}

// MarshalJSON encodes p using the same envelope the server sends.
func (p PageResult) MarshalJSON() ([]byte, error) {
	rows := p.Rows
	if rows == nil {
		rows = []RowRecord{}
	}
	cols := p.Columns
	if cols == nil {
		cols = []ColumnDescriptor{}
	}
	return json.Marshal(pageWire{
		Data:       rows,
		Columns:    cols,
		Page:       p.CurrentPage,
		TotalPages: p.TotalPages,
		Total:      p.TotalRows,
	})
}

// Normalize clamps pagination metadata to its documented ranges: the page
// and page count are at least 1 and the row total is never negative.
func (p PageResult) Normalize() PageResult {
	if p.TotalPages < 1 {
		p.TotalPages = 1
	}
	if p.CurrentPage < 1 {
		p.CurrentPage = 1
	}
	if p.TotalRows < 0 {
		p.TotalRows = 0
	}
	return p
}

// CatalogSource lists the browsable tables.
type CatalogSource interface {
	ListTables(ctx context.Context) ([]TableSummary, error)
}

// PageSource fetches one page of a table.
type PageSource interface {
	FetchPage(ctx context.Context, table string, page, limit int) (PageResult, error)
}
