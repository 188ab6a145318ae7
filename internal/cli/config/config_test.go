package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory with an empty HOME so no
// stray config, .env or session file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	ResetConfig()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultAPIPrefix, cfg.APIPrefix)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultDevAddr, cfg.DevServer.Addr)
	assert.Equal(t, DefaultDevTokenTTL, cfg.DevServer.TokenTTL)
	assert.Equal(t, filepath.Join(dir, ".leapadmin", "session.json"), cfg.SessionFile)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	dir := isolate(t)
	cfgPath := writeFile(t, filepath.Join(dir, "leapadmin.yaml"), `api_url: https://admin.example.com
timeout: 5s
dev_mode: true
output: json
session_file: ~/sessions/admin.json
devserver:
  addr: 0.0.0.0:9090
  watch: true
  token_ttl: 1h
`)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Equal(t, "https://admin.example.com", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, filepath.Join(dir, "sessions", "admin.json"), cfg.SessionFile)
	assert.Equal(t, "0.0.0.0:9090", cfg.DevServer.Addr)
	assert.True(t, cfg.DevServer.Watch)
	assert.Equal(t, time.Hour, cfg.DevServer.TokenTTL)
}

func TestLoadConfig_UpwardSearch(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "leapadmin.yml"), "api_url: http://upward:1\n")
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://upward:1", cfg.APIURL)
}

// TestLoadConfig_FlagPrecedence tests that flags override env vars, .env and config file.
func TestLoadConfig_FlagPrecedence(t *testing.T) {
	dir := isolate(t)
	cfgPath := writeFile(t, filepath.Join(dir, "leapadmin.yaml"), "api_url: http://from-file\n")
	writeFile(t, filepath.Join(dir, ".env"), "LEAPADMIN_API_URL=http://from-dotenv\n")
	t.Setenv("LEAPADMIN_API_URL", "http://from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("api-url", "", "API base URL")
	require.NoError(t, flags.Set("api-url", "http://from-flag"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag", cfg.APIURL, "flag value should override everything")
}

func TestLoadConfig_EnvOverDotEnvOverFile(t *testing.T) {
	dir := isolate(t)
	cfgPath := writeFile(t, filepath.Join(dir, "leapadmin.yaml"), "api_url: http://from-file\ntoken: file-token\n")
	writeFile(t, filepath.Join(dir, ".env"), "LEAPADMIN_API_URL=http://from-dotenv\nLEAPADMIN_TOKEN=dotenv-token\nOTHER=ignored\n")
	t.Setenv("LEAPADMIN_TOKEN", "env-token")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://from-dotenv", cfg.APIURL, ".env should override config file")
	assert.Equal(t, "env-token", cfg.Token, "environment should override .env")
}

// TestLoadConfig_FlagNotSetUsesEnv tests that unset flags fall back to env vars.
func TestLoadConfig_FlagNotSetUsesEnv(t *testing.T) {
	isolate(t)
	t.Setenv("LEAPADMIN_DEVSERVER_ADDR", "127.0.0.1:7000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", DefaultDevAddr, "listen address")

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.DevServer.Addr)

	require.NoError(t, flags.Set("addr", "127.0.0.1:7001"))
	cfg, err = LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7001", cfg.DevServer.Addr, "--addr maps onto devserver.addr")
}

func TestLoadConfig_DurationFlag(t *testing.T) {
	isolate(t)
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Duration("timeout", DefaultTimeout, "request timeout")
	flags.BoolP("verbose", "v", false, "verbose")
	require.NoError(t, flags.Set("timeout", "750ms"))
	require.NoError(t, flags.Set("verbose", "true"))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, slog.LevelDebug, cfg.EffectiveLogLevel())
}

func TestLoadConfig_ExpandsEnvReferences(t *testing.T) {
	dir := isolate(t)
	t.Setenv("ADMIN_TOKEN", "secret-from-env")
	cfgPath := writeFile(t, filepath.Join(dir, "leapadmin.yaml"), "token: ${ADMIN_TOKEN}\n")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Token)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad scheme", "api_url: ftp://example.com\n", "not a valid http(s) URL"},
		{"zero timeout", "timeout: 0s\n", "timeout must be positive"},
		{"unknown output", "output: xml\n", "unknown output mode"},
		{"unknown log level", "log_level: loud\n", "unknown log_level"},
		{"unparseable duration", "timeout: soon\n", "unable to decode config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			cfgPath := writeFile(t, filepath.Join(dir, "leapadmin.yaml"), tt.yaml)
			_, err := LoadConfig(cfgPath, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	lvl, err = ParseLogLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLogLevel("trace")
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "api_url", envKey("LEAPADMIN_API_URL"))
	assert.Equal(t, "devserver.token_ttl", envKey("LEAPADMIN_DEVSERVER_TOKEN_TTL"))
	assert.Equal(t, "dev_mode", envKey("LEAPADMIN_DEV_MODE"))
}

func TestGetLogger_Fallback(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	l := slog.New(slog.DiscardHandler)
	ctx := context.WithValue(context.Background(), LoggerKey(), l)
	assert.Same(t, l, GetLogger(ctx))
}
