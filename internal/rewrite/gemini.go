package rewrite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/genai"

	"github.com/endo-report-server/internal/domain"
)

const defaultClientCacheSize = 4

// GeminiGenerator implements domain.Generator on the Gemini API.
// One client is kept per credential so a rotated key takes effect on the next call.
type GeminiGenerator struct {
	baseURL string
	mu      sync.Mutex
	clients *lru.Cache[string, *genai.Client]
}

// NewGeminiGenerator creates a generator from provider configuration
func NewGeminiGenerator(cfg domain.ProviderConfig) (*GeminiGenerator, error) {
	size := cfg.ClientCacheSize
	if size <= 0 {
		size = defaultClientCacheSize
	}

	clients, err := lru.New[string, *genai.Client](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create client cache: %w", err)
	}

	return &GeminiGenerator{
		baseURL: cfg.BaseURL,
		clients: clients,
	}, nil
}

// Generate sends prompt to model and returns the text of the first candidate
func (g *GeminiGenerator) Generate(ctx context.Context, apiKey, model, prompt string) (string, error) {
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text candidates")
	}
	return text, nil
}

func (g *GeminiGenerator) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	sum := sha256.Sum256([]byte(apiKey))
	key := hex.EncodeToString(sum[:])

	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients.Get(key); ok {
		return c, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.clients.Add(key, c)
	return c, nil
}

// NewGeminiGateway wires a Gemini-backed gateway from configuration.
// opts are applied after the configured ones.
func NewGeminiGateway(cfg *domain.Config, creds CredentialSource, opts ...Option) (*Gateway, error) {
	generator, err := NewGeminiGenerator(cfg.Provider)
	if err != nil {
		return nil, err
	}

	all := append(ConfigOptions(cfg.Gateway), WithModel(cfg.Provider.Model))
	return NewGateway(generator, creds, append(all, opts...)...), nil
}
