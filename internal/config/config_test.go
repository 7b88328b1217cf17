package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderGoogle {
		t.Errorf("expected default provider %q, got %q", ProviderGoogle, cfg.Provider)
	}
	if cfg.Model != "gemini-1.5-flash" {
		t.Errorf("expected default model gemini-1.5-flash, got %q", cfg.Model)
	}
	if cfg.EmbeddingModel != "gemini-embedding-001" {
		t.Errorf("expected default embedding model gemini-embedding-001, got %q", cfg.EmbeddingModel)
	}
	if cfg.Chat.TopK != 3 {
		t.Errorf("expected default top_k 3, got %d", cfg.Chat.TopK)
	}
	if cfg.DefaultRole != "researcher" {
		t.Errorf("expected default role researcher, got %q", cfg.DefaultRole)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected server to bind loopback by default, got %q", cfg.Server.Host)
	}
	if cfg.Server.AuditAPI {
		t.Error("expected audit API to be off by default")
	}
}

func TestDefaultConfigDoesNotShareSlices(t *testing.T) {
	a := DefaultConfig()
	a.Ingest.Include[0] = "changed"
	if DefaultIngestIncludes[0] == "changed" {
		t.Fatal("DefaultConfig leaked the package-level include slice")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.medicrypt.yml")

	original := DefaultConfig()
	original.Provider = ProviderOpenAI
	original.Model = "gpt-4o"
	original.Quality = QualityMax
	original.DefaultRole = "patient"
	original.PatientID = "P-100"
	original.Ingest.Include = []string{"data/*.json", "data/**/*.jsonl"}
	original.Chat.TopK = 7
	original.Chat.RetrievalTimeout = 3 * time.Second
	original.Chat.ProbePatterns = []string{`\bwhat model\b`}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.Quality != original.Quality {
		t.Errorf("quality: got %q, want %q", loaded.Quality, original.Quality)
	}
	if loaded.PatientID != "P-100" || loaded.DefaultRole != "patient" {
		t.Errorf("role/patient: got %q/%q", loaded.DefaultRole, loaded.PatientID)
	}
	if loaded.Chat.TopK != 7 {
		t.Errorf("chat.top_k: got %d, want 7", loaded.Chat.TopK)
	}
	if loaded.Chat.RetrievalTimeout != 3*time.Second {
		t.Errorf("chat.retrieval_timeout: got %v, want 3s", loaded.Chat.RetrievalTimeout)
	}
	if len(loaded.Chat.ProbePatterns) != 1 || loaded.Chat.ProbePatterns[0] != `\bwhat model\b` {
		t.Errorf("chat.probe_patterns: got %v", loaded.Chat.ProbePatterns)
	}
	if len(loaded.Ingest.Include) != len(original.Ingest.Include) {
		t.Fatalf("include length: got %d, want %d", len(loaded.Ingest.Include), len(original.Ingest.Include))
	}
	for i, v := range loaded.Ingest.Include {
		if v != original.Ingest.Include[i] {
			t.Errorf("include[%d]: got %q, want %q", i, v, original.Ingest.Include[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Provider != ProviderGoogle {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yml")
	if err := os.WriteFile(path, []byte("chat:\n  top_k: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chat.TopK != 5 {
		t.Errorf("top_k: got %d, want 5", cfg.Chat.TopK)
	}
	if cfg.Chat.CompletionTimeout != 60*time.Second {
		t.Errorf("completion_timeout default lost: got %v", cfg.Chat.CompletionTimeout)
	}
	if cfg.Model != "gemini-1.5-flash" {
		t.Errorf("model default lost: got %q", cfg.Model)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yml")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("MEDICRYPT_PROVIDER", "openai")
	t.Setenv("MEDICRYPT_CHAT__TOP_K", "9")
	t.Setenv("MEDICRYPT_CHAT__COMPLETION_TIMEOUT", "15s")
	t.Setenv("MEDICRYPT_CHAT__PROBE_PATTERNS", `\bwhat model\b, \bare you human\b`)

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderOpenAI {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderOpenAI)
	}
	if loaded.Chat.TopK != 9 {
		t.Errorf("nested env override failed: got %d, want 9", loaded.Chat.TopK)
	}
	if loaded.Chat.CompletionTimeout != 15*time.Second {
		t.Errorf("duration env override failed: got %v", loaded.Chat.CompletionTimeout)
	}
	if len(loaded.Chat.ProbePatterns) != 2 || loaded.Chat.ProbePatterns[1] != `\bare you human\b` {
		t.Errorf("list env override failed: got %v", loaded.Chat.ProbePatterns)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"invalid provider", func(c *Config) { c.Provider = "invalid" }},
		{"empty provider", func(c *Config) { c.Provider = "" }},
		{"hash as chat provider", func(c *Config) { c.Provider = ProviderHash }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"invalid embedding provider", func(c *Config) { c.EmbeddingProvider = "anthropic" }},
		{"invalid quality", func(c *Config) { c.Quality = "ultra" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"unknown role", func(c *Config) { c.DefaultRole = "doctor" }},
		{"patient without id", func(c *Config) { c.DefaultRole = "patient"; c.PatientID = " " }},
		{"zero top_k", func(c *Config) { c.Chat.TopK = 0 }},
		{"zero retrieval timeout", func(c *Config) { c.Chat.RetrievalTimeout = 0 }},
		{"negative completion timeout", func(c *Config) { c.Chat.CompletionTimeout = -time.Second }},
		{"negative rpm", func(c *Config) { c.RateLimitRPM = -1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestValidatePatientWithID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultRole = "Patient"
	cfg.PatientID = "P1"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid patient config, got: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	p := GetPreset(ProviderAnthropic, QualityLite)
	if p.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("expected haiku model, got %q", p.Model)
	}

	p = GetPreset(ProviderGoogle, QualityNormal)
	if p.EmbeddingModel != "gemini-embedding-001" {
		t.Errorf("expected gemini embeddings, got %q", p.EmbeddingModel)
	}

	p = GetPreset("unknown", QualityMax)
	if p.Model != "gemini-1.5-flash" {
		t.Errorf("expected fallback to gemini-1.5-flash, got %q", p.Model)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderAnthropic, "ANTHROPIC_API_KEY"},
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderGoogle, "GOOGLE_API_KEY"},
		{ProviderOllama, ""},
		{ProviderHash, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestAPIKeyResolvesFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "o-key")

	cfg := DefaultConfig()
	if got := cfg.APIKey(); got != "g-key" {
		t.Errorf("APIKey() = %q, want g-key", got)
	}
	cfg.EmbeddingProvider = ProviderOpenAI
	if got := cfg.EmbeddingAPIKey(); got != "o-key" {
		t.Errorf("EmbeddingAPIKey() = %q, want o-key", got)
	}
	cfg.Provider = ProviderOllama
	if got := cfg.APIKey(); got != "" {
		t.Errorf("expected no key for ollama, got %q", got)
	}
}

func TestEmbeddingProviderFor(t *testing.T) {
	if got := embeddingProviderFor(ProviderAnthropic); got != ProviderOpenAI {
		t.Errorf("anthropic: got %q", got)
	}
	if got := embeddingProviderFor(ProviderGoogle); got != ProviderGoogle {
		t.Errorf("google: got %q", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"records/**/*.json", []string{"records/**/*.json"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) len = %d, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i, v := range got {
			if v != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
			}
		}
	}
}
