package recordstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ziadkadry99/medicrypt/internal/medrecord"
	"github.com/ziadkadry99/medicrypt/internal/vectordb"
)

// Retriever answers chat queries from the vector index and loads the
// matching record bodies from the store.
type Retriever struct {
	vectors vectordb.VectorStore
	store   *Store
}

// NewRetriever creates a Retriever.
func NewRetriever(vectors vectordb.VectorStore, store *Store) *Retriever {
	return &Retriever{vectors: vectors, store: store}
}

// RetrieveRecord returns the patient's record that best matches query, or
// nil when the patient has none.
func (r *Retriever) RetrieveRecord(ctx context.Context, query, patientID string) (*medrecord.Record, error) {
	recs, err := r.search(ctx, query, 1, &vectordb.SearchFilter{PatientID: &patientID})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// RetrieveRecords returns up to topK records across all patients, best
// match first.
func (r *Retriever) RetrieveRecords(ctx context.Context, query string, topK int) ([]*medrecord.Record, error) {
	if topK <= 0 {
		return nil, nil
	}
	return r.search(ctx, query, topK, nil)
}

func (r *Retriever) search(ctx context.Context, query string, limit int, filter *vectordb.SearchFilter) ([]*medrecord.Record, error) {
	hits, err := r.vectors.Search(ctx, query, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	recs := make([]*medrecord.Record, 0, len(hits))
	for _, hit := range hits {
		rec, err := r.store.Get(ctx, hit.Document.Metadata.RecordID)
		if errors.Is(err, ErrNotFound) {
			// The index can outlive a deleted row; drop the stale entry.
			_ = r.vectors.DeleteByRecordID(ctx, hit.Document.Metadata.RecordID)
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
