package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapadmin/internal/api"
	"github.com/leapstack-labs/leapadmin/internal/auth"
	clitest "github.com/leapstack-labs/leapadmin/internal/cli/testutil"
)

type result struct {
	out, errOut string
	err         error
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func login(t *testing.T, url string) {
	t.Helper()
	res := execute(t, "", "login", "--api-url", url, "-e", "admin@example.com", "--password", "admin123", "-o", "text")
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "Logged in as admin")
}

func TestRoot_LoginBrowseLogout(t *testing.T) {
	home := clitest.Isolate(t)
	_, ts := clitest.StartBackend(t)
	login(t, ts.URL)

	sessionFile := filepath.Join(home, ".leapadmin", "session.json")
	info, err := os.Stat(sessionFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	res := execute(t, "", "tables", "--api-url", ts.URL, "-o", "json")
	require.NoError(t, res.err, res.errOut)
	var cat struct {
		Tables []struct {
			Name string `json:"name"`
			Rows int64  `json:"rows"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.out), &cat))
	require.Len(t, cat.Tables, 9)
	assert.Equal(t, "users", cat.Tables[0].Name)

	res = execute(t, "", "browse", "audit_logs", "--page", "99", "--api-url", ts.URL, "-o", "markdown")
	require.NoError(t, res.err, res.errOut)
	clitest.AssertNoANSI(t, res.out)
	clitest.AssertValidMarkdown(t, res.out)
	assert.Contains(t, res.out, "## audit_logs")
	assert.Contains(t, res.out, "showing 121-137 of 137 rows (page 7 of 7)")
	assert.Contains(t, res.out, "next ›")

	res = execute(t, "", "logout")
	require.NoError(t, res.err)
	assert.NoFileExists(t, sessionFile)
}

func TestRoot_LoginPasswordFromStdin(t *testing.T) {
	clitest.Isolate(t)
	_, ts := clitest.StartBackend(t)

	res := execute(t, "alice123\n", "login", "--api-url", ts.URL, "-e", "alice@example.com", "--password-stdin", "-o", "json")
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, `"email": "alice@example.com"`)
	assert.NotContains(t, res.out, "token")
}

func TestRoot_LoginBadCredentials(t *testing.T) {
	home := clitest.Isolate(t)
	_, ts := clitest.StartBackend(t)

	res := execute(t, "", "login", "--api-url", ts.URL, "-e", "admin@example.com", "--password", "nope")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "Invalid credentials")
	assert.NoFileExists(t, filepath.Join(home, ".leapadmin", "session.json"))
}

func TestRoot_NotLoggedIn(t *testing.T) {
	clitest.Isolate(t)
	_, ts := clitest.StartBackend(t)

	res := execute(t, "", "tables", "--api-url", ts.URL)
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, api.ErrUnauthenticated)

	res = execute(t, "", "browse", "users", "--api-url", ts.URL)
	assert.ErrorIs(t, res.err, api.ErrUnauthenticated)
}

func TestRoot_RejectedTokenClearsSession(t *testing.T) {
	home := clitest.Isolate(t)
	_, ts := clitest.StartBackend(t)
	login(t, ts.URL)
	sessionFile := filepath.Join(home, ".leapadmin", "session.json")

	res := execute(t, "", "whoami", "--api-url", ts.URL, "--token", "not-a-valid-token")
	require.Error(t, res.err)
	assert.True(t, api.IsUnauthorized(res.err))
	assert.FileExists(t, sessionFile, "an explicit --token does not touch the saved session")

	t.Setenv("LEAPADMIN_TOKEN", "not-a-valid-token")
	res = execute(t, "", "whoami", "--api-url", ts.URL)
	assert.True(t, api.IsUnauthorized(res.err))
	assert.FileExists(t, sessionFile)
	_ = os.Unsetenv("LEAPADMIN_TOKEN")

	require.NoError(t, auth.NewFileStore(sessionFile, nil).Save(auth.NewSession("forged", nil)))
	res = execute(t, "", "whoami", "--api-url", ts.URL)
	require.Error(t, res.err)
	assert.True(t, api.IsUnauthorized(res.err))
	assert.NoFileExists(t, sessionFile)
}

func TestRoot_Whoami(t *testing.T) {
	clitest.Isolate(t)
	_, ts := clitest.StartBackend(t)
	login(t, ts.URL)

	res := execute(t, "", "whoami", "--api-url", ts.URL, "-o", "markdown")
	require.NoError(t, res.err, res.errOut)
	assert.Contains(t, res.out, "- **Email:** admin@example.com")
	assert.Contains(t, res.out, "- **Role:** admin")
}

func TestRoot_DevModeFallback(t *testing.T) {
	clitest.Isolate(t)

	res := execute(t, "", "tables", "--api-url", "http://127.0.0.1:1", "--token", "x", "--dev-mode", "--timeout", "2s", "-o", "markdown")
	require.NoError(t, res.err)
	assert.Contains(t, res.errOut, "placeholder tables")
	assert.Contains(t, res.out, "audit_logs")

	res = execute(t, "", "tables", "--api-url", "http://127.0.0.1:1", "--token", "x", "--timeout", "2s")
	require.Error(t, res.err)
	assert.True(t, api.IsUnreachable(res.err), res.err)
}

func TestRoot_Status(t *testing.T) {
	clitest.Isolate(t)
	_, ts := clitest.StartBackend(t)

	res := execute(t, "", "status", "--api-url", ts.URL, "-o", "json")
	require.NoError(t, res.err, res.errOut)
	var st struct {
		Reachable bool   `json:"reachable"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.out), &st))
	assert.True(t, st.Reachable)
	assert.Equal(t, "ok", st.Status)
}

func TestRoot_InvalidConfig(t *testing.T) {
	clitest.Isolate(t)

	res := execute(t, "", "tables", "-o", "yaml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown output mode")

	t.Setenv("LEAPADMIN_API_URL", "ftp://example.com")
	res = execute(t, "", "tables")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "not a valid http(s) URL")
}

func TestRoot_VersionAndCompletion(t *testing.T) {
	clitest.Isolate(t)

	res := execute(t, "", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "leapadmin v"+Version)

	res = execute(t, "", "completion", "bash")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "leapadmin")
}

func TestRoot_Subcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"tables", "browse", "shell", "tui", "login", "logout", "whoami", "status", "devserver", "version", "completion"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	for _, flag := range []string{"api-url", "api-prefix", "token", "session-file", "timeout", "dev-mode", "verbose", "log-level", "log-file", "output"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}
