package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Provider    ProviderConfig   `mapstructure:"provider"`
	Gateway     GatewayConfig    `mapstructure:"gateway"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Audit       AuditConfig      `mapstructure:"audit"`
	Letterhead  LetterheadConfig `mapstructure:"letterhead"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	MCP         MCPConfig        `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// ProviderConfig represents the text generation provider configuration.
// The API key itself is read per call through ConfigManager.APIKey.
type ProviderConfig struct {
	Name    string `mapstructure:"name"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	// ClientCacheSize bounds the number of provider clients kept per credential
	ClientCacheSize int `mapstructure:"client_cache_size"`
}

// GatewayConfig represents rewrite gateway behaviour
type GatewayConfig struct {
	Timeout        time.Duration        `mapstructure:"timeout"`
	Dedupe         bool                 `mapstructure:"dedupe"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// RateLimitConfig represents per-client request throttling
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxClients        int     `mapstructure:"max_clients"`
}

// AuditConfig selects where gateway and render events are recorded
type AuditConfig struct {
	Driver      string `mapstructure:"driver"` // "sqlite", "postgres", "none"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// LetterheadConfig is the practice identity printed on every letter
type LetterheadConfig struct {
	ClinicName        string `mapstructure:"clinic_name"`
	PractitionerName  string `mapstructure:"practitioner_name"`
	PractitionerTitle string `mapstructure:"practitioner_title"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}
