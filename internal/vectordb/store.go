package vectordb

import "context"

// VectorStore defines the interface for storing and searching record documents by embeddings.
type VectorStore interface {
	// AddDocuments adds or updates documents in the store.
	AddDocuments(ctx context.Context, docs []Document) error

	// Search performs a semantic search using the query text.
	Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error)

	// Has reports whether a document with the given id is indexed.
	Has(ctx context.Context, id string) bool

	// DeleteByRecordID removes the document for a single record.
	DeleteByRecordID(ctx context.Context, recordID string) error

	// DeleteByPatientID removes every document belonging to the patient.
	DeleteByPatientID(ctx context.Context, patientID string) error

	// Persist saves the store's data to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the store's data from the given directory.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of documents in the store.
	Count() int
}
