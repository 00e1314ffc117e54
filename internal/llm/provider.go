package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ppiankov/factcheck/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a single prompt (optionally with images) and returns the raw reply
	Complete(ctx context.Context, req Request) (*Response, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Request is one completion call
type Request struct {
	// Prompt is the user message
	Prompt string

	// System is an optional system instruction
	System string

	// Model overrides the configured model
	Model string

	// Temperature overrides the configured temperature when non-nil
	Temperature *float64

	// MaxTokens overrides the configured limit when > 0
	MaxTokens int

	// JSON asks the provider for a JSON object reply
	JSON bool

	// Images are attached to the user message (vision models only)
	Images []Image
}

// Image is an inline image attachment
type Image struct {
	MIMEType string
	Data     []byte
}

// Base64 returns the standard base64 encoding of the image bytes
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL
func (i Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, i.Base64())
}

// Response is the provider's reply
type Response struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "groq", "openai", "anthropic", "google", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	Timeout     time.Duration
	MaxTokens   int
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return ConfigFromModel(model.DefaultConfig().LLM, model.HTTPConfig{})
}

// ConfigFromModel converts the text-model configuration to llm.Config
func ConfigFromModel(cfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		HTTPProxy:   httpCfg.HTTPProxy,
		HTTPSProxy:  httpCfg.HTTPSProxy,
		NoProxy:     httpCfg.NoProxy,
	}
}

// VisionConfigFromModel builds the vision provider configuration.
// Provider, key and base URL fall back to the text model when unset.
func VisionConfigFromModel(cfg *model.Config) Config {
	c := ConfigFromModel(cfg.LLM, cfg.HTTP)
	if cfg.Vision.Provider != "" && cfg.Vision.Provider != cfg.LLM.Provider {
		c.Provider = cfg.Vision.Provider
		c.APIKey = ""
		c.BaseURL = ""
	}
	if cfg.Vision.APIKey != "" {
		c.APIKey = cfg.Vision.APIKey
	}
	if cfg.Vision.BaseURL != "" {
		c.BaseURL = cfg.Vision.BaseURL
	}
	c.Model = cfg.Vision.Model
	if cfg.Vision.MaxTokens > 0 {
		c.MaxTokens = cfg.Vision.MaxTokens
	}
	return c
}

// APIKeyEnv returns the conventional environment variable holding the provider's key
func APIKeyEnv(provider string) string {
	switch normalizeProvider(provider) {
	case "groq":
		return "GROQ_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "google":
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

func (c Config) maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1024
}

func (c Config) temperature(req Request) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return c.Temperature
}

func (c Config) model(req Request, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 60 * time.Second
}
