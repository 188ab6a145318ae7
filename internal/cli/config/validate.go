package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/leapstack-labs/leapadmin/internal/cli/output"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url %q is not a valid http(s) URL", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return err
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.DevServer.TokenTTL < 0 {
		return fmt.Errorf("devserver.token_ttl must not be negative")
	}
	return nil
}

// ParseLogLevel maps a level name to a slog level. The empty string is warn.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log_level %q (want debug, info, warn or error)", s)
}

// EffectiveLogLevel returns the configured level, lowered to debug when
// verbose output is requested.
func (c *Config) EffectiveLogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	lvl, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return lvl
}
