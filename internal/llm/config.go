package llm

import (
	"errors"
	"fmt"
	"time"
)

// Provider names accepted by NewProvider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// ErrNoCredentials is returned when a hosted provider has no API key.
var ErrNoCredentials = errors.New("LLM API key is not configured")

// Config selects and configures one provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL points the OpenAI provider at a compatible endpoint such as
	// Ollama or OpenRouter. Ignored by other providers.
	BaseURL string
	Timeout time.Duration
	Retry   RetryConfig
}

// RetryConfig configures backoff for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-haiku",
	ProviderGemini:    "gemini-flash",
	ProviderMock:      "mock",
}

// DefaultConfig returns a Config for provider with its default model.
func DefaultConfig(provider string) Config {
	return Config{
		Provider: provider,
		Model:    defaultModels[provider],
		Timeout:  60 * time.Second,
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
	}
}

// Validate reports configuration that cannot produce a working provider.
// A missing key wraps ErrNoCredentials; an OpenAI-compatible endpoint with
// a custom BaseURL may run without one.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.APIKey == "" && c.BaseURL == "" {
			return fmt.Errorf("%w for provider %s", ErrNoCredentials, c.Provider)
		}
	case ProviderAnthropic, ProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("%w for provider %s", ErrNoCredentials, c.Provider)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// resolveModel maps a short name to a provider model id. Unknown names are
// passed through so full ids work too.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
