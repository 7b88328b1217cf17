package vectordb

import "time"

// Document is the searchable form of one medical record.
type Document struct {
	ID       string
	Content  string
	Metadata DocumentMetadata
}

// DocumentMetadata holds structured information about a document.
// RecordID points back at the canonical row in the record store.
type DocumentMetadata struct {
	RecordID    string
	PatientID   string
	Source      string
	ContentHash string
	LastUpdated time.Time
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// SearchFilter allows narrowing search results by metadata fields.
type SearchFilter struct {
	PatientID *string
	Source    *string
}
