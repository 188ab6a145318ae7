package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapadmin/internal/testutil"
)

type catalogFunc func(ctx context.Context) ([]TableSummary, error)

func (f catalogFunc) ListTables(ctx context.Context) ([]TableSummary, error) { return f(ctx) }

func TestCatalogLoader_Success(t *testing.T) {
	calls := 0
	src := catalogFunc(func(context.Context) ([]TableSummary, error) {
		calls++
		return []TableSummary{
			{Name: "users", ApproxRowCount: 3, ApproxSizeMB: 0.1, Description: "User accounts"},
			{Name: "jobs", ApproxRowCount: 0, ApproxSizeMB: 0.1},
		}, nil
	})

	cat := NewCatalogLoader(src, false, testutil.NewTestLogger(t)).Load(context.Background())

	assert.Equal(t, 1, calls, "exactly one request per load")
	require.NoError(t, cat.Err)
	assert.False(t, cat.Fallback)
	require.Len(t, cat.Tables, 2)
	assert.Equal(t, "users", cat.Tables[0].Name)
}

func TestCatalogLoader_FailureShowsUnavailable(t *testing.T) {
	boom := errors.New("could not reach server")
	src := catalogFunc(func(context.Context) ([]TableSummary, error) { return nil, boom })

	cat := NewCatalogLoader(src, false, testutil.NewTestLogger(t)).Load(context.Background())

	assert.ErrorIs(t, cat.Err, boom)
	assert.False(t, cat.Fallback)
	assert.Empty(t, cat.Tables)
}

func TestCatalogLoader_DevModeFallback(t *testing.T) {
	boom := errors.New("server returned an error (status 502)")
	src := catalogFunc(func(context.Context) ([]TableSummary, error) { return nil, boom })

	cat := NewCatalogLoader(src, true, testutil.NewTestLogger(t)).Load(context.Background())

	assert.ErrorIs(t, cat.Err, boom, "the catalog error stays visible next to the placeholder list")
	assert.True(t, cat.Fallback)
	assert.Equal(t, FallbackTables, cat.Tables)

	cat.Tables[0].Name = "mutated"
	assert.Equal(t, "users", FallbackTables[0].Name, "callers get a copy")
}

func TestCatalogLoader_NilListIsEmpty(t *testing.T) {
	src := catalogFunc(func(context.Context) ([]TableSummary, error) { return nil, nil })
	cat := NewCatalogLoader(src, false, nil).Load(context.Background())

	require.NoError(t, cat.Err)
	assert.NotNil(t, cat.Tables)
	assert.Empty(t, cat.Tables)
}
