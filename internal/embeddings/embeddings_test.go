package embeddings

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresKeyForHostedProviders(t *testing.T) {
	for _, p := range []string{"openai", "google"} {
		_, err := New(p, Options{})
		assert.Error(t, err, p)
	}
	_, err := New("word2vec", Options{})
	assert.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	e, err := New("google", Options{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-embedding-001", e.Name())
	assert.Equal(t, 3072, e.Dimensions())

	e, err = New("ollama", Options{})
	require.NoError(t, err)
	assert.Equal(t, "ollama/nomic-embed-text", e.Name())
	assert.Equal(t, 768, e.Dimensions())

	e, err = New("hash", Options{Dimensions: 64})
	require.NoError(t, err)
	assert.Equal(t, 64, e.Dimensions())
}

func TestHashEmbedderIsStableAndNormalised(t *testing.T) {
	e := NewHashEmbedder(32)
	ctx := context.Background()

	a, err := e.Embed(ctx, []string{"Hypertension, stage 2", "hypertension stage 2", ""})
	require.NoError(t, err)
	require.Len(t, a, 3)
	assert.Equal(t, a[0], a[1], "case and punctuation are ignored")

	for _, vec := range a {
		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	}
}

func TestGoogleEmbedder(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/gemini-embedding-001:embedContent", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))

		var req googleEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Content.Parts[0].Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"embedding":{"values":[0.1,0.2,0.3]}}`)
	}))
	defer srv.Close()

	e := NewGoogleEmbedder("k", ModelGeminiEmbedding001, srv.URL)
	out, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, out[0])
}

func TestGoogleEmbedderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"message":"denied"}}`)
	}))
	defer srv.Close()

	e := NewGoogleEmbedder("k", ModelGeminiEmbedding001, srv.URL)
	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestOllamaEmbedderBatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"x", "y"}, req.Input)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"embeddings":[[1,0],[0,1]]}`)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", 2, srv.URL)
	out, err := e.Embed(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)
}

func TestToChromemFunc(t *testing.T) {
	fn := ToChromemFunc(NewHashEmbedder(8))
	vec, err := fn(context.Background(), "asthma")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
}
