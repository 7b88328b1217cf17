package embeddings

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

const googleEmbedBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GoogleModel represents a supported Google embedding model.
type GoogleModel string

const (
	ModelGeminiEmbedding001 GoogleModel = "gemini-embedding-001"
	ModelTextEmbedding004   GoogleModel = "text-embedding-004"
)

func (m GoogleModel) dimensions() int {
	switch m {
	case ModelTextEmbedding004:
		return 768
	default:
		return 3072
	}
}

// GoogleEmbedder generates embeddings using Google's Generative AI API.
type GoogleEmbedder struct {
	apiKey  string
	model   GoogleModel
	baseURL string
	client  *resty.Client
}

// NewGoogleEmbedder creates a new Google embedder. baseURL may be empty.
func NewGoogleEmbedder(apiKey string, model GoogleModel, baseURL string) *GoogleEmbedder {
	if baseURL == "" {
		baseURL = googleEmbedBaseURL
	}
	return &GoogleEmbedder{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  resty.New(),
	}
}

func (e *GoogleEmbedder) Name() string {
	return string(e.model)
}

func (e *GoogleEmbedder) Dimensions() int {
	return e.model.dimensions()
}

type googleEmbedRequest struct {
	Content googleContent `json:"content"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for _, text := range texts {
		emb, err := e.embedSingle(ctx, text)
		if err != nil {
			return nil, err
		}
		results = append(results, emb)
	}
	return results, nil
}

func (e *GoogleEmbedder) embedSingle(ctx context.Context, text string) ([]float32, error) {
	var result googleEmbedResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", e.apiKey).
		SetBody(googleEmbedRequest{
			Content: googleContent{Parts: []googlePart{{Text: text}}},
		}).
		SetResult(&result).
		Post(fmt.Sprintf("%s/%s:embedContent", e.baseURL, e.model))
	if err != nil {
		return nil, fmt.Errorf("google embed request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("google embed API error (status %d): %s", resp.StatusCode(), resp.String())
	}

	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("google returned empty embedding")
	}

	return result.Embedding.Values, nil
}
