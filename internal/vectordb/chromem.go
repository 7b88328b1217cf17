package vectordb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/medicrypt/internal/embeddings"
)

const (
	collectionName = "records"
	exportFile     = "chromem.gob.gz"
)

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedder:   embedder,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: metadataToMap(doc.Metadata),
		}
	}

	return s.collection.AddDocuments(ctx, chromDocs, 1)
}

func (s *ChromemStore) Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := s.collection.Query(ctx, query, limit, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: mapToMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
		}
	}

	return searchResults, nil
}

func (s *ChromemStore) Has(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	_, err := s.collection.GetByID(ctx, id)
	return err == nil
}

func (s *ChromemStore) DeleteByRecordID(ctx context.Context, recordID string) error {
	return s.collection.Delete(ctx, map[string]string{"record_id": recordID}, nil)
}

func (s *ChromemStore) DeleteByPatientID(ctx context.Context, patientID string) error {
	return s.collection.Delete(ctx, map[string]string{"patient_id": patientID}, nil)
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(filepath.Join(dir, exportFile), true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	path := filepath.Join(dir, exportFile)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}
	err := s.db.ImportFromFile(path, "")
	if err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Import replaces the collection object.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func metadataToMap(m DocumentMetadata) map[string]string {
	return map[string]string{
		"record_id":    m.RecordID,
		"patient_id":   m.PatientID,
		"source":       m.Source,
		"content_hash": m.ContentHash,
		"last_updated": m.LastUpdated.Format(time.RFC3339),
	}
}

func mapToMetadata(m map[string]string) DocumentMetadata {
	lastUpdated, _ := time.Parse(time.RFC3339, m["last_updated"])

	return DocumentMetadata{
		RecordID:    m["record_id"],
		PatientID:   m["patient_id"],
		Source:      m["source"],
		ContentHash: m["content_hash"],
		LastUpdated: lastUpdated,
	}
}

// buildWhereClause converts a SearchFilter to a chromem where clause.
func buildWhereClause(filter *SearchFilter) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	if filter.PatientID != nil {
		where["patient_id"] = *filter.PatientID
	}
	if filter.Source != nil {
		where["source"] = *filter.Source
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
