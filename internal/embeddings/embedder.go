package embeddings

import (
	"context"
	"fmt"
)

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// Options configures an embedder. The API key is supplied by the caller.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// New creates an embedder for the given provider.
// Supported providers: "openai", "google", "ollama", "hash".
func New(provider string, opts Options) (Embedder, error) {
	switch provider {
	case "openai":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai embeddings require an API key")
		}
		model := OpenAIModel(opts.Model)
		if model == "" {
			model = ModelTextEmbedding3Small
		}
		return NewOpenAIEmbedder(opts.APIKey, model, opts.BaseURL), nil

	case "google":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("google embeddings require an API key")
		}
		model := GoogleModel(opts.Model)
		if model == "" {
			model = ModelGeminiEmbedding001
		}
		return NewGoogleEmbedder(opts.APIKey, model, opts.BaseURL), nil

	case "ollama":
		model := opts.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		dims := opts.Dimensions
		if dims == 0 {
			dims = 768
		}
		return NewOllamaEmbedder(model, dims, opts.BaseURL), nil

	case "hash":
		return NewHashEmbedder(opts.Dimensions), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}
