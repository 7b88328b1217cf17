package config

import "time"

// QualityPreset describes the models to use for a given quality tier.
type QualityPreset struct {
	Model          string
	EmbeddingModel string
}

// qualityPresets maps each provider+quality combination to its model choices.
var qualityPresets = map[ProviderType]map[QualityTier]QualityPreset{
	ProviderAnthropic: {
		QualityLite:   {Model: "claude-haiku-4-5-20251001", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "claude-sonnet-4-5-20250929", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "claude-opus-4-6", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderOpenAI: {
		QualityLite:   {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "gpt-4o", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "gpt-4o", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderGoogle: {
		QualityLite:   {Model: "gemini-1.5-flash", EmbeddingModel: "gemini-embedding-001"},
		QualityNormal: {Model: "gemini-2.0-flash", EmbeddingModel: "gemini-embedding-001"},
		QualityMax:    {Model: "gemini-1.5-pro", EmbeddingModel: "gemini-embedding-001"},
	},
	ProviderOllama: {
		QualityLite:   {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
		QualityNormal: {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
		QualityMax:    {Model: "llama3:70b", EmbeddingModel: "nomic-embed-text"},
	},
}

// DefaultIngestIncludes are the record globs picked up when none are configured.
var DefaultIngestIncludes = []string{
	"records/**/*.json",
	"records/**/*.jsonl",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderGoogle,
		Model:             "gemini-1.5-flash",
		EmbeddingProvider: ProviderGoogle,
		EmbeddingModel:    "gemini-embedding-001",
		Quality:           QualityLite,
		DataDir:           ".medicrypt",
		DefaultRole:       "researcher",
		RateLimitRPM:      60,
		Chat: ChatConfig{
			TopK:              3,
			MaxTokens:         1024,
			Temperature:       0.2,
			RetrievalTimeout:  10 * time.Second,
			CompletionTimeout: 60 * time.Second,
		},
		Ingest: IngestConfig{
			Include: append([]string(nil), DefaultIngestIncludes...),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

// GetPreset returns the quality preset for the given provider and tier.
// Returns the Lite Google preset if the combination is not found.
func GetPreset(provider ProviderType, tier QualityTier) QualityPreset {
	if tiers, ok := qualityPresets[provider]; ok {
		if preset, ok := tiers[tier]; ok {
			return preset
		}
	}
	return qualityPresets[ProviderGoogle][QualityLite]
}
