package browser

import (
	"context"
	"log/slog"
)

// FallbackTables is the placeholder catalog offered in development mode when
// the backend cannot be reached. Counts are zero because nothing is known
// about the real tables.
var FallbackTables = []TableSummary{
	{Name: "users", ApproxSizeMB: 0.1, Description: "User accounts"},
	{Name: "jobs", ApproxSizeMB: 0.1, Description: "Job processing records"},
	{Name: "files", ApproxSizeMB: 0.1, Description: "File upload records"},
	{Name: "sessions", ApproxSizeMB: 0.1, Description: "User session data"},
	{Name: "permissions", ApproxSizeMB: 0.1, Description: "Permission settings"},
	{Name: "email_logs", ApproxSizeMB: 0.1, Description: "Email delivery log"},
	{Name: "audit_logs", ApproxSizeMB: 0.1, Description: "System audit log"},
}

// Catalog is the result of loading the table list.
type Catalog struct {
	Tables []TableSummary
	// Err is the catalog-level failure, if any. It is kept even when a
	// fallback list was substituted.
	Err error
	// Fallback is true when Tables is FallbackTables rather than server data.
	Fallback bool
}

// CatalogLoader fetches the table catalog once per mount.
//
// Production builds surface a failed load as an explicit unavailable state:
// the catalog is empty and Err is set. The fixed placeholder list is only
// substituted when devMode is on, so demo sessions stay usable without a
// backend and real sessions never show fabricated tables.
type CatalogLoader struct {
	src     CatalogSource
	devMode bool
	logger  *slog.Logger
}

// NewCatalogLoader creates a loader. A nil logger discards output.
func NewCatalogLoader(src CatalogSource, devMode bool, logger *slog.Logger) *CatalogLoader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CatalogLoader{src: src, devMode: devMode, logger: logger}
}

// Load issues a single catalog request. There are no retries.
func (l *CatalogLoader) Load(ctx context.Context) Catalog {
	tables, err := l.src.ListTables(ctx)
	if err != nil {
		l.logger.Warn("table catalog unavailable", "error", err, "dev_mode", l.devMode)
		cat := Catalog{Err: err}
		if l.devMode {
			cat.Tables = append([]TableSummary(nil), FallbackTables...)
			cat.Fallback = true
		}
		return cat
	}

	if tables == nil {
		tables = []TableSummary{}
	}
	l.logger.Debug("table catalog loaded", "tables", len(tables))
	return Catalog{Tables: tables}
}
