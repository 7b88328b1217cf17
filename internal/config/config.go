package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".medicrypt.yml"

const envPrefix = "MEDICRYPT_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (MEDICRYPT_*). Nested keys use a double
// underscore, e.g. MEDICRYPT_CHAT__TOP_K sets chat.top_k.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// envKey maps MEDICRYPT_CHAT__TOP_K to chat.top_k. List-valued keys are
// split on commas.
func envKey(key, value string) (string, interface{}) {
	k := strings.ToLower(strings.TrimPrefix(key, envPrefix))
	k = strings.ReplaceAll(k, "__", ".")
	switch k {
	case "chat.probe_patterns", "ingest.include", "ingest.exclude":
		return k, splitAndTrim(value)
	}
	return k, value
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderAnthropic: true,
	ProviderOpenAI:    true,
	ProviderGoogle:    true,
	ProviderOllama:    true,
}

var validEmbeddingProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderGoogle: true,
	ProviderOllama: true,
	ProviderHash:   true,
}

var validQualityTiers = map[QualityTier]bool{
	QualityLite:   true,
	QualityNormal: true,
	QualityMax:    true,
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of anthropic, openai, google, ollama", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.EmbeddingProvider != "" && !validEmbeddingProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q", c.EmbeddingProvider)
	}

	if c.Quality != "" && !validQualityTiers[c.Quality] {
		return fmt.Errorf("invalid quality %q: must be one of lite, normal, max", c.Quality)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch strings.ToLower(c.DefaultRole) {
	case "researcher":
	case "patient":
		if strings.TrimSpace(c.PatientID) == "" {
			return fmt.Errorf("patient_id is required when default_role is patient")
		}
	default:
		return fmt.Errorf("invalid default_role %q: must be one of patient, researcher", c.DefaultRole)
	}

	if c.Chat.TopK < 1 {
		return fmt.Errorf("chat.top_k must be at least 1")
	}
	if c.Chat.MaxTokens < 0 {
		return fmt.Errorf("chat.max_tokens must be non-negative")
	}
	if c.Chat.RetrievalTimeout <= 0 {
		return fmt.Errorf("chat.retrieval_timeout must be positive")
	}
	if c.Chat.CompletionTimeout <= 0 {
		return fmt.Errorf("chat.completion_timeout must be positive")
	}

	if c.RateLimitRPM < 0 {
		return fmt.Errorf("rate_limit_rpm must be non-negative")
	}

	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	if c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}

// APIKey returns the chat provider's key from the environment.
func (c *Config) APIKey() string {
	return apiKeyFor(c.Provider)
}

// EmbeddingAPIKey returns the embedding provider's key from the environment.
func (c *Config) EmbeddingAPIKey() string {
	return apiKeyFor(c.EmbeddingProvider)
}

func apiKeyFor(p ProviderType) string {
	if v := APIKeyEnvVar(p); v != "" {
		return os.Getenv(v)
	}
	return ""
}

// OllamaHost returns OLLAMA_HOST, falling back to BaseURL.
func (c *Config) OllamaHost() string {
	if h := os.Getenv("OLLAMA_HOST"); h != "" {
		return h
	}
	return c.BaseURL
}

// splitAndTrim splits a comma-separated string and drops empty entries.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
