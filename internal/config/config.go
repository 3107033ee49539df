// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Editor   EditorConfig
	Lookup   LookupConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig selects and configures the catalog backend used for code
// lookups and record loads.
type DatabaseConfig struct {
	// Driver is postgres, sqlite or none (default: none)
	Driver string `env:"DB_DRIVER" default:"none"`

	// URL is the connection string: a PostgreSQL URL or a SQLite DSN.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// Migrate creates the catalog tables on startup (default: false)
	Migrate bool `env:"DB_MIGRATE" default:"false"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// EditorConfig holds per-session editing behavior.
type EditorConfig struct {
	// Debounce coalesces outbound snapshots (default: 120ms)
	Debounce time.Duration `env:"EDITOR_DEBOUNCE" default:"120ms"`

	// SuppressionWindow defers snapshots while a bulk lookup runs (default: 3s)
	SuppressionWindow time.Duration `env:"EDITOR_SUPPRESSION_WINDOW" default:"3s"`

	// BulkThreshold is the code count above which a lookup is bulk (default: 50)
	BulkThreshold int `env:"EDITOR_BULK_THRESHOLD" default:"50"`

	// BulkDelay is the pause before a bulk batch is sent (default: 500ms)
	BulkDelay time.Duration `env:"EDITOR_BULK_DELAY" default:"500ms"`

	// SeedRows is the number of blank rows a new or cleared table gets (default: 20)
	SeedRows int `env:"EDITOR_SEED_ROWS" default:"20"`

	// AdvisoryTTL is how long an advisory stays listed (default: 6s)
	AdvisoryTTL time.Duration `env:"EDITOR_ADVISORY_TTL" default:"6s"`

	// MaxSessions caps open sessions; 0 means unlimited (default: 200)
	MaxSessions int `env:"EDITOR_MAX_SESSIONS" default:"200"`

	// IdleTimeout closes sessions nobody watches (default: 30m)
	IdleTimeout time.Duration `env:"EDITOR_IDLE_TIMEOUT" default:"30m"`

	// ReapInterval is how often idle sessions are checked (default: 1m)
	ReapInterval time.Duration `env:"EDITOR_REAP_INTERVAL" default:"1m"`
}

// LookupConfig holds catalog lookup settings shared by all sessions.
type LookupConfig struct {
	// MaxConcurrent is the maximum number of parallel backend calls (default: 8)
	MaxConcurrent int `env:"LOOKUP_MAX_CONCURRENT" default:"8"`

	// MaxWaitTime is how long a lookup waits for a slot (default: 10s)
	MaxWaitTime time.Duration `env:"LOOKUP_MAX_WAIT_TIME" default:"10s"`

	// Timeout bounds one backend call (default: 15s)
	Timeout time.Duration `env:"LOOKUP_TIMEOUT" default:"15s"`

	// CacheTTL is how long resolved codes are reused (default: 5m)
	CacheTTL time.Duration `env:"LOOKUP_CACHE_TTL" default:"5m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// MessageLimit is requests per minute for the surface message endpoint,
	// which sees one call per edit (default: 1200)
	MessageLimit int `env:"RATE_LIMIT_MESSAGES" default:"1200"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey gates /api behind an X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
