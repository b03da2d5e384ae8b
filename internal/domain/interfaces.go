package domain

import (
	"context"
)

// Generator sends one prompt to a text generation provider and returns its text
type Generator interface {
	Generate(ctx context.Context, apiKey, model, prompt string) (string, error)
}

// NotesRewriter turns rough clinical notes into formal report prose
type NotesRewriter interface {
	Rewrite(ctx context.Context, notes, patientName string) (string, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetGatewayConfig() *GatewayConfig
	// APIKey returns the provider credential as currently configured
	APIKey() string
	Validate() error
}
