// Package config provides centralized configuration management for the application.
// Settings come from struct-tag defaults, an optional YAML file named by
// REPAIRDESK_CONFIG, and environment variables, in increasing precedence.
// Everything is validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Remote   RemoteConfig    `yaml:"remote"`
	Upload   UploadConfig    `yaml:"upload"`
	Rate     RateLimitConfig `yaml:"rate"`
	Security SecurityConfig  `yaml:"security"`
	Audit    AuditConfig     `yaml:"audit"`
	Logging  LoggingConfig   `yaml:"logging"`
	Session  SessionConfig   `yaml:"session"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0" yaml:"host"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080" yaml:"port"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s" yaml:"readTimeout"`

	// WriteTimeout must cover a full repair round trip (default: 0, no limit)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s" yaml:"writeTimeout"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s" yaml:"idleTimeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" yaml:"shutdownTimeout"`

	// RequestTimeout is the middleware timeout for ordinary requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s" yaml:"requestTimeout"`
}

// RemoteConfig points at the repair backend.
type RemoteConfig struct {
	// BaseURL of the backend serving /model/, /index/ and /repair/
	BaseURL string `env:"REMOTE_URL" envAlt:"BACKEND_URL" default:"http://localhost:8000" yaml:"baseURL"`

	// RepairTimeout bounds one repair call (default: 5m)
	RepairTimeout time.Duration `env:"REMOTE_REPAIR_TIMEOUT" default:"5m" yaml:"repairTimeout"`

	// CatalogTimeout bounds the model and index catalog calls (default: 30s)
	CatalogTimeout time.Duration `env:"REMOTE_CATALOG_TIMEOUT" default:"30s" yaml:"catalogTimeout"`
}

// UploadConfig holds dataset upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600" yaml:"maxFileSize"`

	// Timeout is the maximum duration for parsing one upload (default: 2m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"2m" yaml:"timeout"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100" yaml:"requestsPerMinute"`

	// UploadLimit is requests per minute for upload and repair endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10" yaml:"uploadLimit"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES" yaml:"trustedProxies"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true" yaml:"enableCSP"`
}

// AuditConfig selects where committed batches are recorded.
type AuditConfig struct {
	// Sinks is a comma-separated list of remote, postgres, sqlite (default: remote)
	Sinks string `env:"AUDIT_SINK" default:"remote" yaml:"sinks"`

	// DatabaseURL is the PostgreSQL connection string for the postgres sink
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL" yaml:"databaseURL"`

	// MaxConns is the postgres pool size (default: 4)
	MaxConns int `env:"AUDIT_DB_MAX_CONNS" default:"4" yaml:"maxConns"`

	// MaxConnLifetime is the maximum lifetime of a pooled connection (default: 1h)
	MaxConnLifetime time.Duration `env:"AUDIT_DB_MAX_CONN_LIFETIME" default:"1h" yaml:"maxConnLifetime"`

	// SQLitePath is the journal file for the sqlite sink
	SQLitePath string `env:"AUDIT_SQLITE_PATH" default:"data/repair_history.db" yaml:"sqlitePath"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" yaml:"level"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" yaml:"format"`
}

// SessionConfig holds repair session settings.
type SessionConfig struct {
	// ScratchColumn holds proposals until commit (default: repaired_value)
	ScratchColumn string `env:"SESSION_SCRATCH_COLUMN" default:"repaired_value" yaml:"scratchColumn"`

	// LoadCatalog fetches the model and index catalogs at startup (default: true)
	LoadCatalog bool `env:"SESSION_LOAD_CATALOG" default:"true" yaml:"loadCatalog"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
