// Package config provides configuration management for the leapadmin CLI.
//
// Values are layered, lowest to highest precedence: built-in defaults, the
// leapadmin.yaml config file, a .env file in the working directory,
// LEAPADMIN_* environment variables, and explicitly set command-line flags.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	APIURL       string          `koanf:"api_url"`
	APIPrefix    string          `koanf:"api_prefix"`
	Token        string          `koanf:"token"`
	SessionFile  string          `koanf:"session_file"`
	Timeout      time.Duration   `koanf:"timeout"`
	DevMode      bool            `koanf:"dev_mode"`
	Verbose      bool            `koanf:"verbose"`
	LogLevel     string          `koanf:"log_level"`
	LogFile      string          `koanf:"log_file"`
	OutputFormat string          `koanf:"output"`
	DevServer    DevServerConfig `koanf:"devserver"`
}

// DevServerConfig configures the local development backend.
type DevServerConfig struct {
	Addr     string        `koanf:"addr"`
	DSN      string        `koanf:"dsn"`
	Fixtures string        `koanf:"fixtures"`
	Watch    bool          `koanf:"watch"`
	Secret   string        `koanf:"secret"`
	TokenTTL time.Duration `koanf:"token_ttl"`
}

// Default configuration values.
const (
	DefaultAPIURL      = "http://localhost:8080"
	DefaultAPIPrefix   = "/api/admin"
	DefaultTimeout     = 30 * time.Second
	DefaultLogLevel    = "warn"
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultDevAddr     = "127.0.0.1:8080"
	DefaultDevDSN      = ":memory:"
	DefaultDevSecret   = "leapadmin-dev-secret"
	DefaultDevTokenTTL = 24 * time.Hour
)

// EnvPrefix is the prefix of environment variables read by the loader.
const EnvPrefix = "LEAPADMIN_"
