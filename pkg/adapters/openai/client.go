// Package openai adapts OpenAI-compatible APIs (OpenRouter by default) to the
// engine's Generator and KnowledgeBase ports.
package openai

import (
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL        = "https://openrouter.ai/api/v1"
	DefaultModel          = "google/gemini-2.0-flash-exp:free"
	DefaultEmbeddingModel = openai.SmallEmbedding3
	DefaultTimeout        = 60 * time.Second
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: API key is required")

// Config holds the connection settings shared by the adapters.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = string(DefaultEmbeddingModel)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

func newClient(cfg Config) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	return openai.NewClientWithConfig(config), nil
}
