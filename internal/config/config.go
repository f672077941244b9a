// Package config loads textconv settings from environment variables.
// Every field has an env tag and most have defaults; Load validates the
// result so that a misconfigured server fails at startup.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Convert  ConvertConfig
	Sink     SinkConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for
	// running conversions to finish.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// ConvertConfig holds settings for load and convert requests.
type ConvertConfig struct {
	// MaxFileSize caps an uploaded file, in bytes (default: 100MB).
	MaxFileSize int64 `env:"CONVERT_MAX_FILE_SIZE" default:"104857600"`

	// MaxLineBytes caps a single line of an input file (default: 1MB).
	MaxLineBytes int `env:"CONVERT_MAX_LINE_BYTES" default:"1048576"`

	// MaxConcurrent is the number of conversions that may run at once.
	MaxConcurrent int `env:"CONVERT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a free slot.
	MaxWaitTime time.Duration `env:"CONVERT_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds one request's load and save runs.
	Timeout time.Duration `env:"CONVERT_TIMEOUT" default:"10m"`

	// WorkDir receives uploaded and converted files. Empty means the OS
	// temp directory.
	WorkDir string `env:"CONVERT_WORK_DIR"`

	// SchemaDir holds column-definition files registered at startup.
	// Empty disables the registry.
	SchemaDir string `env:"CONVERT_SCHEMA_DIR" envAlt:"SCHEMA_DIR"`
}

// SinkConfig selects the optional SQL database that loaded tables can be
// exported to.
type SinkConfig struct {
	// Driver is sqlite, postgres or mysql. Empty disables export.
	Driver string `env:"SINK_DRIVER"`

	// DSN is the driver-specific data source name.
	DSN string `env:"SINK_DSN" envAlt:"DATABASE_URL"`

	// TablePrefix is prepended to exported table names.
	TablePrefix string `env:"SINK_TABLE_PREFIX"`
}

// SecurityConfig holds request filtering settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP and X-Forwarded-For headers are honored.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json.
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Enabled reports whether a sink driver is configured.
func (c *SinkConfig) Enabled() bool {
	return c.Driver != ""
}
