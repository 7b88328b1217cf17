package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/audit"
	"github.com/ziadkadry99/medicrypt/internal/chat"
	"github.com/ziadkadry99/medicrypt/internal/config"
	"github.com/ziadkadry99/medicrypt/internal/db"
	"github.com/ziadkadry99/medicrypt/internal/embeddings"
	"github.com/ziadkadry99/medicrypt/internal/llm"
	"github.com/ziadkadry99/medicrypt/internal/logging"
	"github.com/ziadkadry99/medicrypt/internal/recordstore"
	"github.com/ziadkadry99/medicrypt/internal/vectordb"
)

const dbFile = "medicrypt.db"

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `medicrypt init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger and stores it in ctx.
func newLogger(ctx context.Context, cfg *config.Config) (context.Context, *logrus.Logger) {
	log := logging.New(cfg.Log, verbose)
	return logging.WithLogger(ctx, log), log
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = config.GetPreset(provider, cfg.Quality).EmbeddingModel
	}

	opts := embeddings.Options{
		APIKey: cfg.EmbeddingAPIKey(),
		Model:  model,
	}
	if provider == config.ProviderOllama {
		opts.BaseURL = cfg.OllamaHost()
	}
	emb, err := embeddings.New(string(provider), opts)
	if err != nil && opts.APIKey == "" {
		if env := config.APIKeyEnvVar(provider); env != "" {
			return nil, fmt.Errorf("%w (set %s)", err, env)
		}
	}
	return emb, err
}

// createLLMProviderFromConfig creates a rate-limited LLM provider based on config.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	opts := llm.Options{
		APIKey:  cfg.APIKey(),
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}
	if cfg.Provider == config.ProviderOllama {
		opts.BaseURL = cfg.OllamaHost()
	}
	p, err := llm.NewProvider(string(cfg.Provider), opts)
	if err != nil {
		if env := config.APIKeyEnvVar(cfg.Provider); env != "" && opts.APIKey == "" {
			return nil, fmt.Errorf("%w (set %s)", err, env)
		}
		return nil, err
	}
	return llm.NewRateLimitedProvider(p, cfg.RateLimitRPM), nil
}

func vectorDir(cfg *config.Config) string { return filepath.Join(cfg.DataDir, "vectordb") }

// workspace bundles the stores every data command needs.
type workspace struct {
	cfg     *config.Config
	db      *db.DB
	vectors *vectordb.ChromemStore
	records *recordstore.Store
	audit   *audit.Store
}

// openWorkspace opens the SQLite database and the vector index under
// cfg.DataDir. A missing index is only an error when requireIndex is set.
func openWorkspace(ctx context.Context, cfg *config.Config, requireIndex bool) (*workspace, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	vectors, err := vectordb.NewChromemStore(embedder)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	if err := vectors.Load(ctx, vectorDir(cfg)); err != nil {
		if requireIndex && errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no record index in %s: run `medicrypt ingest` first", vectorDir(cfg))
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading vector store from %s: %w", vectorDir(cfg), err)
		}
		logging.FromContext(ctx).WithField("dir", vectorDir(cfg)).Debug("no vector index yet")
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, dbFile))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &workspace{
		cfg:     cfg,
		db:      database,
		vectors: vectors,
		records: recordstore.NewStore(database),
		audit:   audit.NewStore(database),
	}, nil
}

func (w *workspace) Close() error { return w.db.Close() }

func (w *workspace) retriever() *recordstore.Retriever {
	return recordstore.NewRetriever(w.vectors, w.records)
}

// sessionOptions maps the chat config onto chat.Options.
func sessionOptions(cfg *config.Config, role access.Role, patientID string) (chat.Options, error) {
	probe, err := access.NewIdentityProbe(cfg.Chat.ProbePatterns...)
	if err != nil {
		return chat.Options{}, err
	}
	return chat.Options{
		Role:              role,
		PatientID:         patientID,
		Model:             cfg.Model,
		MaxTokens:         cfg.Chat.MaxTokens,
		Temperature:       cfg.Chat.Temperature,
		TopK:              cfg.Chat.TopK,
		RetrievalTimeout:  cfg.Chat.RetrievalTimeout,
		CompletionTimeout: cfg.Chat.CompletionTimeout,
		Probe:             probe,
	}, nil
}

// resolveRole picks the role and patient id from flags, falling back to
// the config defaults.
func resolveRole(cfg *config.Config, roleFlag, patientFlag string) (access.Role, string, error) {
	roleStr := roleFlag
	if roleStr == "" {
		roleStr = cfg.DefaultRole
	}
	role, err := access.ParseRole(roleStr)
	if err != nil {
		return "", "", err
	}
	if role != access.RolePatient {
		return role, "", nil
	}
	pid := patientFlag
	if pid == "" {
		pid = cfg.PatientID
	}
	if pid == "" {
		return "", "", fmt.Errorf("%w: pass --patient-id or set patient_id in %s", chat.ErrPatientIdentityRequired, cfgFile)
	}
	return role, pid, nil
}
