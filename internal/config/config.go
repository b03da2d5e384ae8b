package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/endo-report-server/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. ENDO_REPORT_SERVER_PORT
const EnvPrefix = "ENDO_REPORT"

// APIKeyEnv holds the provider credential
const APIKeyEnv = "GEMINI_API_KEY"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager.
// An empty configFile searches the default locations for config.yaml.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(configFile); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig(configFile string) error {
	v := m.v

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/endo-report/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// the credential keeps its conventional unprefixed name
	if err := v.BindEnv("provider.api_key", APIKeyEnv, EnvPrefix+"_PROVIDER_API_KEY"); err != nil {
		return fmt.Errorf("error binding %s: %w", APIKeyEnv, err)
	}

	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 25<<20) // two inline x-rays
	v.SetDefault("server.cors_origins", []string{"*"})

	// Provider defaults
	v.SetDefault("provider.name", "gemini")
	v.SetDefault("provider.model", "gemini-1.5-flash")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.client_cache_size", 4)

	// Gateway defaults
	v.SetDefault("gateway.timeout", "60s")
	v.SetDefault("gateway.dedupe", true)
	v.SetDefault("gateway.circuit_breaker.enabled", false)
	v.SetDefault("gateway.circuit_breaker.max_requests", 1)
	v.SetDefault("gateway.circuit_breaker.interval", "60s")
	v.SetDefault("gateway.circuit_breaker.timeout", "30s")
	v.SetDefault("gateway.circuit_breaker.failure_threshold", 5)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_second", 1.0)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("rate_limit.max_clients", 1024)

	// Audit defaults
	v.SetDefault("audit.driver", "sqlite")
	v.SetDefault("audit.sqlite_path", "data/audit.db")
	v.SetDefault("audit.postgres_url", "")

	// Letterhead defaults
	v.SetDefault("letterhead.clinic_name", "CLINIQUE ENDODONTIQUE")
	v.SetDefault("letterhead.practitioner_name", "Dr. [VOTRE NOM]")
	v.SetDefault("letterhead.practitioner_title", "Endodontiste Certifié")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "endo-report")
	v.SetDefault("mcp.server_version", "1.0.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetGatewayConfig returns rewrite gateway configuration
func (m *Manager) GetGatewayConfig() *domain.GatewayConfig {
	return &m.config.Gateway
}

// APIKey returns the provider credential. It is resolved on every call so
// a credential set or removed after startup is honored.
func (m *Manager) APIKey() string {
	return strings.TrimSpace(m.v.GetString("provider.api_key"))
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server max_body_bytes must be positive")
	}

	if config.Provider.Model == "" {
		return fmt.Errorf("provider model is required")
	}
	if config.Gateway.Timeout < 0 {
		return fmt.Errorf("gateway timeout must not be negative: %s", config.Gateway.Timeout)
	}
	if cb := config.Gateway.CircuitBreaker; cb.Enabled && cb.FailureThreshold == 0 {
		return fmt.Errorf("circuit breaker failure_threshold must be positive")
	}

	if rl := config.RateLimit; rl.Enabled {
		if rl.RequestsPerSecond <= 0 || rl.Burst <= 0 {
			return fmt.Errorf("rate limit requires positive requests_per_second and burst")
		}
	}

	switch strings.ToLower(config.Audit.Driver) {
	case "", "none":
	case "sqlite":
		if config.Audit.SQLitePath == "" {
			return fmt.Errorf("audit sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if config.Audit.PostgresURL == "" {
			return fmt.Errorf("audit postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid audit driver: %s", config.Audit.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	if f := strings.ToLower(config.Logging.Format); f != "json" && f != "text" {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
