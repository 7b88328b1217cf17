package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and saves the result
// to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to medicrypt! Let's configure your record assistant.")
	fmt.Println()

	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"google", "openai", "anthropic", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	qualityPrompt := promptui.Select{
		Label: "Select quality tier",
		Items: []string{
			"lite: fast and cheap (gemini flash / gpt-4o-mini / haiku)",
			"normal: balanced",
			"max: highest quality",
		},
	}
	qualityIdx, _, err := qualityPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("quality selection: %w", err)
	}
	tiers := []QualityTier{QualityLite, QualityNormal, QualityMax}
	quality := tiers[qualityIdx]
	preset := GetPreset(provider, quality)

	rolePrompt := promptui.Select{
		Label: "Default chat role",
		Items: []string{"researcher", "patient"},
	}
	_, role, err := rolePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("role selection: %w", err)
	}

	var patientID string
	if role == "patient" {
		idPrompt := promptui.Prompt{
			Label: "Patient ID",
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("patient ID is required")
				}
				return nil
			},
		}
		patientID, err = idPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("patient id: %w", err)
		}
	}

	dataPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: ".medicrypt",
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	includePrompt := promptui.Prompt{
		Label:   "Record files (comma-separated globs)",
		Default: strings.Join(DefaultIngestIncludes, ","),
	}
	includeStr, err := includePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = preset.Model
	cfg.EmbeddingProvider = embeddingProviderFor(provider)
	cfg.EmbeddingModel = preset.EmbeddingModel
	cfg.Quality = quality
	cfg.DefaultRole = role
	cfg.PatientID = strings.TrimSpace(patientID)
	cfg.DataDir = dataDir
	cfg.Ingest.Include = splitAndTrim(includeStr)

	for _, p := range []ProviderType{cfg.Provider, cfg.EmbeddingProvider} {
		if envVar := APIKeyEnvVar(p); envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running medicrypt.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// embeddingProviderFor returns the default embedding provider for a given
// LLM provider. Anthropic has no embedding API, so it pairs with OpenAI.
func embeddingProviderFor(p ProviderType) ProviderType {
	switch p {
	case ProviderOllama, ProviderGoogle:
		return p
	default:
		return ProviderOpenAI
	}
}
