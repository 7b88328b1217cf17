package llm

import "fmt"

const defaultOllamaHost = "http://localhost:11434"

// NewProvider creates a new LLM provider based on the given provider type.
// Supported provider types: "anthropic", "openai", "google", "ollama".
func NewProvider(providerType string, opts Options) (Provider, error) {
	switch providerType {
	case "anthropic":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewAnthropicProvider(opts), nil

	case "openai":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIProvider(opts), nil

	case "google":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("google provider requires an API key")
		}
		return NewGoogleProvider(opts), nil

	case "ollama":
		if opts.BaseURL == "" {
			opts.BaseURL = defaultOllamaHost
		}
		return NewOllamaProvider(opts), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
