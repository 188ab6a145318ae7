package devserver

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapadmin/internal/testutil"
)

func newMockStore(t *testing.T, monitorPings bool) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(monitorPings))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, DialectPostgres, testutil.NewTestLogger(t)), mock
}

func TestStore_SQLite(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, "", testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(ctx))
	fx, err := DefaultFixtures()
	require.NoError(t, err)
	require.NoError(t, store.LoadFixtures(ctx, fx))

	audit, _ := LookupTable("audit_logs")
	n, err := store.Count(ctx, audit)
	require.NoError(t, err)
	assert.Equal(t, int64(137), n)

	rows, err := store.Page(ctx, audit, 20, 120)
	require.NoError(t, err)
	require.Len(t, rows, 17)
	assert.Equal(t, int64(121), rows[0]["id"])
	assert.Len(t, rows[0], len(audit.Columns))

	u, err := store.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.ID)
	assert.True(t, checkPassword(u.PasswordHash, "alice123"))
	assert.False(t, checkPassword(u.PasswordHash, "admin123"))

	_, err = store.UserByID(ctx, 404)
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Reloading replaces rather than appends.
	require.NoError(t, store.LoadFixtures(ctx, fx))
	n, err = store.Count(ctx, audit)
	require.NoError(t, err)
	assert.Equal(t, int64(137), n)
}

func TestStore_CountError(t *testing.T) {
	store, mock := newMockStore(t, false)
	jobs, _ := LookupTable("jobs")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM jobs")).WillReturnError(errors.New("connection reset"))

	_, err := store.Count(context.Background(), jobs)
	assert.ErrorContains(t, err, "count jobs: connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PageQueryAndNormalisation(t *testing.T) {
	store, mock := newMockStore(t, false)
	jobs, _ := LookupTable("jobs")
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, user_id, status, job_type, created_at, updated_at FROM jobs ORDER BY id LIMIT 20 OFFSET 40",
	)).WillReturnRows(sqlmock.NewRows(jobs.ColumnNames()).
		AddRow(int64(41), nil, []byte("running"), "export", created, nil))

	rows, err := store.Page(context.Background(), jobs, 20, 40)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{
		"id":         int64(41),
		"user_id":    nil,
		"status":     "running",
		"job_type":   "export",
		"created_at": "2024-05-01T10:00:00Z",
		"updated_at": nil,
	}, rows[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UserPlaceholders(t *testing.T) {
	store, mock := newMockStore(t, false)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, username, email, role, password_hash FROM users WHERE email = $1",
	)).WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "role", "password_hash"}))

	_, err := store.UserByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadFixturesRollsBack(t *testing.T) {
	store, mock := newMockStore(t, false)
	fx := &Fixtures{Users: []FixtureUser{{ID: 1, Email: "a@example.com", Password: "pw"}}}

	mock.ExpectBegin()
	for i := len(Tables) - 1; i >= 0; i-- {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + Tables[i].Name)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.LoadFixtures(context.Background(), fx)
	assert.ErrorContains(t, err, "insert users: disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlers_StoreFailures(t *testing.T) {
	store, mock := newMockStore(t, true)
	s := &Server{
		store:   store,
		tokens:  newTokenIssuer("test-secret", time.Hour),
		metrics: newMetrics(),
		logger:  testutil.NewTestLogger(t),
	}
	s.handler = s.routes()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	token, err := s.tokens.Issue(UserRecord{ID: 1})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).WillReturnError(sql.ErrConnDone)
	var body map[string]string
	assert.Equal(t, http.StatusInternalServerError, get(t, ts, "/api/admin/data-explorer/tables", token, &body))
	assert.Equal(t, "Failed to list tables", body["error"])

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	var h healthResponse
	assert.Equal(t, http.StatusServiceUnavailable, get(t, ts, "/health", "", &h))
	assert.Equal(t, "error", h.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}
