package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/leapstack-labs/leapadmin/internal/testutil"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts.Secret == "" {
		opts.Secret = testutil.TokenSecret
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = time.Hour
	}
	opts.Logger = testutil.NewTestLogger(t)

	s, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func login(t *testing.T, ts *httptest.Server, email, password string) (*http.Response, loginResponse) {
	t.Helper()
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/api/admin/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out loginResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func get(t *testing.T, ts *httptest.Server, path, token string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func adminToken(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, out := login(t, ts, "admin@example.com", "admin123")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	var h healthResponse
	assert.Equal(t, http.StatusOK, get(t, ts, "/health", "", &h))
	assert.Equal(t, "ok", h.Status)
	assert.Contains(t, h.Message, "sqlite")
}

func TestLogin(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, out := login(t, ts, "admin@example.com", "admin123")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, userJSON{ID: 1, Username: "admin", Email: "admin@example.com", Role: "admin"}, out.User)

	resp, _ = login(t, ts, "admin@example.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = login(t, ts, "nobody@example.com", "admin123")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = login(t, ts, "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	s, ts := newTestServer(t, Options{})

	var body map[string]string
	assert.Equal(t, http.StatusUnauthorized, get(t, ts, "/api/admin/data-explorer/tables", "", &body))
	assert.Equal(t, "Authorization header required", body["error"])

	assert.Equal(t, http.StatusUnauthorized, get(t, ts, "/api/admin/data-explorer/tables", "garbage", &body))
	assert.Equal(t, "Invalid token", body["error"])

	other := newTokenIssuer("other-secret", time.Hour)
	forged, err := other.Issue(UserRecord{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(t, ts, "/api/admin/profile", forged, nil))

	past := newTokenIssuer(string(s.tokens.secret), time.Hour)
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := past.Issue(UserRecord{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(t, ts, "/api/admin/profile", stale, &body))
	assert.Equal(t, "Token expired", body["error"])

	external := testutil.SignedToken(t, "1", time.Now().Add(time.Hour))
	assert.Equal(t, http.StatusOK, get(t, ts, "/api/admin/profile", external, nil))

	badSubject := testutil.SignedToken(t, "admin", time.Time{})
	assert.Equal(t, http.StatusUnauthorized, get(t, ts, "/api/admin/profile", badSubject, &body))
	assert.Equal(t, "Invalid token", body["error"])
}

func TestProfile(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	token := adminToken(t, ts)

	var out map[string]userJSON
	assert.Equal(t, http.StatusOK, get(t, ts, "/api/admin/profile", token, &out))
	assert.Equal(t, "admin", out["user"].Username)
}

func TestListTables(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	token := adminToken(t, ts)

	var tables []struct {
		Name        string  `json:"name"`
		Rows        int64   `json:"rows"`
		SizeMB      float64 `json:"size_mb"`
		Description string  `json:"description"`
	}
	require.Equal(t, http.StatusOK, get(t, ts, "/api/admin/data-explorer/tables", token, &tables))
	require.Len(t, tables, len(Tables))

	byName := map[string]int64{}
	for i, tbl := range tables {
		assert.Equal(t, Tables[i].Name, tbl.Name, "catalog keeps whitelist order")
		assert.GreaterOrEqual(t, tbl.SizeMB, 0.1)
		assert.NotEmpty(t, tbl.Description)
		byName[tbl.Name] = tbl.Rows
	}
	assert.Equal(t, int64(3), byName["users"])
	assert.Equal(t, int64(45), byName["jobs"])
	assert.Equal(t, int64(137), byName["audit_logs"])
}

type dataBody struct {
	TableName  string           `json:"table_name"`
	Columns    []map[string]any `json:"columns"`
	Data       []map[string]any `json:"data"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"total_pages"`
	Error      string           `json:"error"`
}

func TestTableData_Pagination(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	token := adminToken(t, ts)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantPage   int
		wantLimit  int
		wantRows   int
		wantFirst  float64
	}{
		{"defaults", "", 200, 1, 20, 20, 1},
		{"second page", "?page=2", 200, 2, 20, 20, 21},
		{"last page", "?page=7", 200, 7, 20, 17, 121},
		{"page beyond end is clamped", "?page=99", 200, 7, 20, 17, 121},
		{"page below one", "?page=-3", 200, 1, 20, 20, 1},
		{"unparseable page", "?page=abc", 200, 1, 20, 20, 1},
		{"limit too large falls back", "?limit=500", 200, 1, 20, 20, 1},
		{"limit zero falls back", "?limit=0", 200, 1, 20, 20, 1},
		{"max limit", "?limit=100", 200, 1, 100, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body dataBody
			status := get(t, ts, "/api/admin/data-explorer/tables/audit_logs/data"+tt.query, token, &body)
			require.Equal(t, tt.wantStatus, status)
			assert.Equal(t, "audit_logs", body.TableName)
			assert.Equal(t, tt.wantPage, body.Page)
			assert.Equal(t, tt.wantLimit, body.Limit)
			assert.Equal(t, int64(137), body.Total)
			assert.Equal(t, (137+tt.wantLimit-1)/tt.wantLimit, body.TotalPages)
			require.Len(t, body.Data, tt.wantRows)
			assert.InDelta(t, tt.wantFirst, body.Data[0]["id"], 0)
		})
	}
}

func TestTableData_ColumnsAndValues(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	token := adminToken(t, ts)

	var users dataBody
	require.Equal(t, http.StatusOK, get(t, ts, "/api/admin/data-explorer/tables/users/data", token, &users))
	require.Len(t, users.Data, 3)
	for _, row := range users.Data {
		assert.NotContains(t, row, "password_hash")
		assert.NotContains(t, row, "role")
	}
	assert.Len(t, users.Columns, 5)
	assert.Equal(t, "admin", users.Data[0]["username"])
	assert.Contains(t, users.Data[0]["created_at"], "2024-01-01")

	var sessions dataBody
	require.Equal(t, http.StatusOK, get(t, ts, "/api/admin/data-explorer/tables/sessions/data", token, &sessions))
	require.Len(t, sessions.Data, 2)
	assert.Contains(t, sessions.Data[1], "token")
	assert.Nil(t, sessions.Data[1]["token"], "NULL stays null on the wire")

	var roles dataBody
	require.Equal(t, http.StatusOK, get(t, ts, "/api/admin/data-explorer/tables/roles/data", token, &roles))
	assert.Equal(t, "", roles.Data[2]["description"], "empty string stays empty")
}

func TestTableData_EmptyTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`users:
  - {id: 1, username: admin, email: admin@example.com, password: admin123, role: admin}
`), 0o600))
	_, ts := newTestServer(t, Options{Fixtures: path})
	token := adminToken(t, ts)

	var body dataBody
	require.Equal(t, http.StatusOK, get(t, ts, "/api/admin/data-explorer/tables/jobs/data?page=4", token, &body))
	assert.Empty(t, body.Data)
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, 1, body.TotalPages, "total_pages is at least one")
	assert.Equal(t, int64(0), body.Total)
}

func TestTableData_UnknownTable(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	token := adminToken(t, ts)

	var body dataBody
	assert.Equal(t, http.StatusBadRequest, get(t, ts, "/api/admin/data-explorer/tables/sqlite_master/data", token, &body))
	assert.Equal(t, "Invalid table name", body.Error)
}

func TestTableData_EscapedNames(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	token := adminToken(t, ts)

	tests := []struct {
		path string
		want int
	}{
		{"/api/admin/data-explorer/tables/us%65rs/data", http.StatusOK},
		{"/api/admin/data-explorer/tables/audit%5Flogs/data", http.StatusOK},
		{"/api/admin/data-explorer/tables/user%2573/data", http.StatusBadRequest},
		{"/api/admin/data-explorer/tables/users%2Fx/data", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, get(t, ts, tt.path, token, nil))
		})
	}
}

func TestMetrics(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	get(t, ts, "/api/admin/data-explorer/tables", "", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body),
		`leapadmin_devserver_requests_total{method="GET",route="/api/admin/data-explorer/tables",status="401"} 1`)
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.ErrorContains(t, err, "secret")
}

func TestServe_GracefulShutdown(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestWatch_ReloadsFixtures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.yaml")
	base := "users:\n  - {id: 1, username: admin, email: admin@example.com, password: admin123}\n"
	require.NoError(t, os.WriteFile(path, []byte(base), 0o600))

	s, _ := newTestServer(t, Options{Fixtures: path, Watch: true})
	jobs, _ := LookupTable("jobs")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	updated := []byte(base + "generate:\n  jobs: 5\n")
	assert.Eventually(t, func() bool {
		// Rewrite on every tick: the watcher may not be registered yet.
		_ = os.WriteFile(path, updated, 0o600)
		n, err := s.Store().Count(context.Background(), jobs)
		return err == nil && n == 5
	}, 5*time.Second, 250*time.Millisecond)
}

func reloadCount(t *testing.T, s *Server) float64 {
	t.Helper()
	families, err := s.metrics.registry.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != "leapadmin_devserver_fixture_reloads_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestWatch_NoReloadAfterServeReturns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.yaml")
	base := "users:\n  - {id: 1, username: admin, email: admin@example.com, password: admin123}\n"
	require.NoError(t, os.WriteFile(path, []byte(base), 0o600))

	s, _ := newTestServer(t, Options{Fixtures: path, Watch: true})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	// Change the file and stop inside the debounce window.
	require.NoError(t, os.WriteFile(path, []byte(base+"generate:\n  jobs: 3\n"), 0o600))
	time.Sleep(reloadDebounce / 4)
	cancel()
	require.NoError(t, <-done)

	settled := reloadCount(t, s)
	time.Sleep(3 * reloadDebounce)
	assert.Equal(t, settled, reloadCount(t, s), "no reload may run after Serve returns")
}
