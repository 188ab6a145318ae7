package devserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTables_Whitelist(t *testing.T) {
	require.Len(t, Tables, 9)
	for _, tbl := range Tables {
		assert.True(t, tbl.HasColumn("id"), "%s has an id column", tbl.Name)
		assert.False(t, tbl.HasColumn("password_hash"), "%s must not expose password hashes", tbl.Name)
		assert.NotEmpty(t, tbl.Description)
	}

	_, ok := LookupTable("users")
	assert.True(t, ok)
	_, ok = LookupTable("sqlite_master")
	assert.False(t, ok)
}

func TestEstimateSizeMB(t *testing.T) {
	users, _ := LookupTable("users")
	emails, _ := LookupTable("email_logs")

	assert.Equal(t, 0.1, users.EstimateSizeMB(0), "floor")
	assert.Equal(t, 0.1, users.EstimateSizeMB(3), "floor")
	assert.Equal(t, 4.88, users.EstimateSizeMB(10000))
	assert.Equal(t, 0.49, emails.EstimateSizeMB(1000), "default per-row estimate")
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name                string
		total               int64
		page, limit         int
		wantPage, wantPages int
		wantOffset          int
	}{
		{"empty", 0, 1, 20, 1, 1, 0},
		{"empty beyond end", 0, 5, 20, 1, 1, 0},
		{"exact pages", 40, 2, 20, 2, 2, 20},
		{"partial last page", 41, 3, 20, 3, 3, 40},
		{"clamped", 41, 9, 20, 3, 3, 40},
		{"below one", 41, 0, 20, 1, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, pages, offset := Paginate(tt.total, tt.page, tt.limit)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPages, pages)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
