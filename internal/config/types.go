package config

import "time"

// QualityTier controls the model selection and trade-off between speed/cost and quality.
type QualityTier string

const (
	QualityLite   QualityTier = "lite"
	QualityNormal QualityTier = "normal"
	QualityMax    QualityTier = "max"
)

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderGoogle    ProviderType = "google"
	ProviderOllama    ProviderType = "ollama"
	// ProviderHash is an offline embedding provider; it has no chat model.
	ProviderHash ProviderType = "hash"
)

// Config is the top-level medicrypt configuration, corresponding to .medicrypt.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	BaseURL           string       `yaml:"base_url,omitempty" koanf:"base_url"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	Quality           QualityTier  `yaml:"quality" koanf:"quality"`
	DataDir           string       `yaml:"data_dir" koanf:"data_dir"`
	DefaultRole       string       `yaml:"default_role" koanf:"default_role"`
	PatientID         string       `yaml:"patient_id,omitempty" koanf:"patient_id"`
	RateLimitRPM      int          `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`
	Chat              ChatConfig   `yaml:"chat" koanf:"chat"`
	Ingest            IngestConfig `yaml:"ingest" koanf:"ingest"`
	Log               LogConfig    `yaml:"log" koanf:"log"`
	Server            ServerConfig `yaml:"server" koanf:"server"`
}

// ChatConfig tunes the conversation session.
type ChatConfig struct {
	TopK              int           `yaml:"top_k" koanf:"top_k"`
	MaxTokens         int           `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature       float64       `yaml:"temperature" koanf:"temperature"`
	RetrievalTimeout  time.Duration `yaml:"retrieval_timeout" koanf:"retrieval_timeout"`
	CompletionTimeout time.Duration `yaml:"completion_timeout" koanf:"completion_timeout"`
	ProbePatterns     []string      `yaml:"probe_patterns,omitempty" koanf:"probe_patterns"`
}

// IngestConfig lists the record files picked up by `medicrypt ingest`.
type IngestConfig struct {
	Include []string `yaml:"include" koanf:"include"`
	Exclude []string `yaml:"exclude,omitempty" koanf:"exclude"`
}

// LogConfig controls the logrus logger.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// ServerConfig holds settings for the HTTP/WebSocket server.
type ServerConfig struct {
	Host            string `yaml:"host" koanf:"host"`
	Port            int    `yaml:"port" koanf:"port"`
	AllowAllOrigins bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	// AuditAPI exposes /api/audit. It is never served to researcher sessions.
	AuditAPI bool `yaml:"audit_api" koanf:"audit_api"`
}
