package devserver

import (
	"math"

	"github.com/leapstack-labs/leapadmin/internal/browser"
)

// Table describes one browsable table. Only the listed columns are ever
// selected, so columns such as users.password_hash stay on the server.
type Table struct {
	Name        string
	Description string
	// KBPerRow drives the approximate size shown in the catalog.
	KBPerRow float64
	Columns  []browser.ColumnDescriptor
}

func col(name, typ string) browser.ColumnDescriptor {
	return browser.ColumnDescriptor{Name: name, Type: typ}
}

// Tables is the whitelist of browsable tables in catalog order.
var Tables = []Table{
	{
		Name: "users", Description: "User accounts", KBPerRow: 0.5,
		Columns: []browser.ColumnDescriptor{
			col("id", "integer"), col("username", "string"), col("email", "string"),
			col("created_at", "timestamp"), col("updated_at", "timestamp"),
		},
	},
	{
		Name: "jobs", Description: "Job processing records", KBPerRow: 1.0,
		Columns: []browser.ColumnDescriptor{
			col("id", "integer"), col("user_id", "integer"), col("status", "string"),
			col("job_type", "string"), col("created_at", "timestamp"), col("updated_at", "timestamp"),
		},
	},
	{
		Name: "files", Description: "File upload records", KBPerRow: 0.3,
		Columns: []browser.ColumnDescriptor{
			col("id", "integer"), col("user_id", "integer"), col("filename", "string"),
			col("file_size", "integer"), col("created_at", "timestamp"),
		},
	},
	{
		Name: "sessions", Description: "User session data", KBPerRow: 0.2,
		Columns: []browser.ColumnDescriptor{
			col("id", "integer"), col("user_id", "integer"), col("token", "string"),
			col("expires_at", "timestamp"), col("created_at", "timestamp"),
		},
	},
	{
		Name: "permissions", Description: "Permission settings", KBPerRow: 0.1,
		Columns: []browser.ColumnDescriptor{
			col("id", "integer"), col("name", "string"), col("resource", "string"),
			col("action", "string"), col("created_at", "timestamp"),
		},
	},
	{
		Name: "user_roles", Description: "User to role assignments", KBPerRow: 0.05,
		Columns: []browser.ColumnDescriptor{
			col("id", "integer"), col("user_id", "integer"), col("role_id", "integer"),
			col("created_at", "timestamp"),
		},
	},
	{
		Name: "roles", Description: "Role definitions", KBPerRow: 0.1,
		Columns: []browser.ColumnDescriptor{
			col("id", "integer"), col("name", "string"), col("description", "string"),
			col("created_at", "timestamp"),
		},
	},
	{
		Name: "audit_logs", Description: "System audit log", KBPerRow: 0.8,
		Columns: []browser.ColumnDescriptor{
			col("id", "integer"), col("user_id", "integer"), col("action", "string"),
			col("resource", "string"), col("created_at", "timestamp"),
		},
	},
	{
		Name: "email_logs", Description: "Email delivery log",
		Columns: []browser.ColumnDescriptor{
			col("id", "integer"), col("user_id", "integer"), col("email_type", "string"),
			col("status", "string"), col("created_at", "timestamp"),
		},
	},
}

// defaultKBPerRow applies to tables without their own estimate.
const defaultKBPerRow = 0.5

// minSizeMB is the floor of every size estimate.
const minSizeMB = 0.1

// LookupTable returns the whitelisted table called name.
func LookupTable(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// ColumnNames returns the selectable column names of t.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether name is a selectable column of t.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// EstimateSizeMB approximates the on-disk size of rows rows, rounded to two
// decimals and never below 0.1 MB.
func (t Table) EstimateSizeMB(rows int64) float64 {
	perRow := t.KBPerRow
	if perRow == 0 {
		perRow = defaultKBPerRow
	}
	mb := float64(rows) * perRow / 1024
	if mb < minSizeMB {
		mb = minSizeMB
	}
	return math.Round(mb*100) / 100
}

// Paginate resolves the requested page against total rows. The returned
// page is clamped into [1, totalPages] and totalPages is at least 1.
func Paginate(total int64, page, limit int) (clamped, totalPages, offset int) {
	totalPages = int((total + int64(limit) - 1) / int64(limit))
	totalPages = max(totalPages, 1)
	clamped = min(max(page, 1), totalPages)
	return clamped, totalPages, (clamped - 1) * limit
}
