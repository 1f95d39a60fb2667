// Package config loads the application configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/dialogtree/pkg/adapters/openai"
	"github.com/aretw0/dialogtree/pkg/adapters/redis"
	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/persistence/middleware"
	"gopkg.in/yaml.v3"
)

// Environment variables holding the generator API key, in lookup order.
const (
	EnvAPIKey         = "DIALOGTREE_API_KEY"
	EnvAPIKeyFallback = "OPENROUTER_API_KEY"
)

// EnvEncryptionKey overrides store.encryption.key.
const EnvEncryptionKey = "DIALOGTREE_ENCRYPTION_KEY"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Retrieval kinds.
const (
	RetrievalKeyword   = "keyword"
	RetrievalEmbedding = "embedding"
	RetrievalNone      = "none"
)

// DefaultHTTPAddr is the listen address of the serve command.
const DefaultHTTPAddr = ":8080"

// Config is the root of the YAML document.
type Config struct {
	// Graph is a YAML graph definition; empty selects the built-in thermostat flow.
	Graph     string          `yaml:"graph"`
	Generator GeneratorConfig `yaml:"generator"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Store     StoreConfig     `yaml:"store"`
	HTTP      HTTPConfig      `yaml:"http"`
	Chat      ChatConfig      `yaml:"chat"`
	Log       LogConfig       `yaml:"log"`
}

type LogConfig struct {
	// Format is "text" (default) or "json".
	Format string `yaml:"format"`
}

type GeneratorConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type RetrievalConfig struct {
	Kind           string `yaml:"kind"`
	EmbeddingModel string `yaml:"embedding_model"`
	TopK           int    `yaml:"top_k"`
	// Knowledge is a YAML document list; empty selects the built-in thermostat facts.
	Knowledge string `yaml:"knowledge"`
}

type StoreConfig struct {
	Kind       string           `yaml:"kind"`
	Path       string           `yaml:"path"`
	Redis      RedisConfig      `yaml:"redis"`
	Encryption EncryptionConfig `yaml:"encryption"`
}

// EncryptionConfig holds base64 encoded AES-256 keys. An empty Key stores
// sessions in clear text.
type EncryptionConfig struct {
	Key          string   `yaml:"key"`
	FallbackKeys []string `yaml:"fallback_keys"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type ChatConfig struct {
	// Knowledge prepends retrieved snippets to free chat turns. Defaults to true.
	Knowledge *bool `yaml:"knowledge"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Generator: GeneratorConfig{
			BaseURL: openai.DefaultBaseURL,
			Model:   openai.DefaultModel,
			Timeout: openai.DefaultTimeout,
		},
		Retrieval: RetrievalConfig{
			Kind:           RetrievalKeyword,
			EmbeddingModel: string(openai.DefaultEmbeddingModel),
			TopK:           1,
		},
		Store: StoreConfig{
			Kind: StoreMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: redis.DefaultPrefix,
			},
		},
		HTTP: HTTPConfig{Addr: DefaultHTTPAddr},
		Log:  LogConfig{Format: "text"},
	}
}

// Load reads path over the defaults and applies the environment.
// An empty path yields the defaults plus the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEncryptionKey); v != "" {
		c.Store.Encryption.Key = v
	}
	for _, key := range []string{EnvAPIKey, EnvAPIKeyFallback} {
		if v := os.Getenv(key); v != "" {
			c.Generator.APIKey = v
			return
		}
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("store.kind: unknown %q", c.Store.Kind))
	}
	switch c.Retrieval.Kind {
	case RetrievalKeyword, RetrievalEmbedding, RetrievalNone:
	default:
		errs = append(errs, fmt.Errorf("retrieval.kind: unknown %q", c.Retrieval.Kind))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown %q", c.Log.Format))
	}
	if c.Retrieval.TopK < 1 {
		errs = append(errs, fmt.Errorf("retrieval.top_k: must be at least 1, got %d", c.Retrieval.TopK))
	}
	if c.Generator.Timeout < 0 {
		errs = append(errs, errors.New("generator.timeout: must not be negative"))
	}
	if c.Store.Encryption.Key != "" {
		if _, err := c.Encryption(); err != nil {
			errs = append(errs, fmt.Errorf("store.encryption: %w", err))
		}
	} else if len(c.Store.Encryption.FallbackKeys) > 0 {
		errs = append(errs, errors.New("store.encryption: fallback_keys require a key"))
	}
	return errors.Join(errs...)
}

// Encryption decodes the store keys.
func (c *Config) Encryption() (middleware.EncryptionConfig, error) {
	var out middleware.EncryptionConfig
	key, err := middleware.ParseKey(c.Store.Encryption.Key)
	if err != nil {
		return out, err
	}
	out.ActiveKey = key
	for i, s := range c.Store.Encryption.FallbackKeys {
		k, err := middleware.ParseKey(s)
		if err != nil {
			return out, fmt.Errorf("fallback key %d: %w", i, err)
		}
		out.FallbackKeys = append(out.FallbackKeys, k)
	}
	return out, nil
}

// ChatKnowledge reports whether free chat turns use retrieval.
func (c *Config) ChatKnowledge() bool {
	return c.Chat.Knowledge == nil || *c.Chat.Knowledge
}

// OpenAI converts the generator and retrieval sections into an adapter config.
func (c *Config) OpenAI() openai.Config {
	return openai.Config{
		APIKey:         c.Generator.APIKey,
		BaseURL:        c.Generator.BaseURL,
		Model:          c.Generator.Model,
		EmbeddingModel: c.Retrieval.EmbeddingModel,
		Timeout:        c.Generator.Timeout,
	}
}

// LoadKnowledge reads a YAML list of documents:
//
//	- id: doc_0
//	  text: "..."
//	  metadata: {source: manual}
func LoadKnowledge(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge file: %w", err)
	}
	var docs []domain.Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge file %s: %w", path, err)
	}
	for i, d := range docs {
		if d.Text == "" {
			return nil, fmt.Errorf("knowledge file %s: document #%d has no text", path, i)
		}
		if d.ID == "" {
			docs[i].ID = fmt.Sprintf("doc_%d", i)
		}
	}
	return docs, nil
}
