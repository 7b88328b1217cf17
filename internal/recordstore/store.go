// Package recordstore keeps the canonical medical records in SQLite, loads
// them from disk and serves them to chat sessions through a vector index.
package recordstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ziadkadry99/medicrypt/internal/db"
	"github.com/ziadkadry99/medicrypt/internal/medrecord"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Store persists records in the records table.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// PutResult reports what Put did.
type PutResult struct {
	ID          string
	ContentHash string
	Inserted    bool
}

// Put stores rec unless a record with the same content already exists.
// The record must carry a patient_id. On return rec.ID is set.
func (s *Store) Put(ctx context.Context, rec *medrecord.Record, source string) (PutResult, error) {
	pid, ok := rec.PatientID()
	if !ok || strings.TrimSpace(pid) == "" {
		return PutResult{}, fmt.Errorf("record has no %s", medrecord.FieldPatientID)
	}

	body, err := rec.MarshalJSON()
	if err != nil {
		return PutResult{}, fmt.Errorf("encoding record: %w", err)
	}
	hash := ContentHash(body)

	var existing string
	err = s.db.QueryRowContext(ctx, "SELECT id FROM records WHERE content_hash = ?", hash).Scan(&existing)
	switch {
	case err == nil:
		rec.ID = existing
		return PutResult{ID: existing, ContentHash: hash}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return PutResult{}, fmt.Errorf("looking up record: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, patient_id, source, body, content_hash)
		VALUES (?, ?, ?, ?, ?)`,
		id, pid, source, string(body), hash,
	)
	if err != nil {
		return PutResult{}, fmt.Errorf("inserting record: %w", err)
	}

	rec.ID = id
	return PutResult{ID: id, ContentHash: hash, Inserted: true}, nil
}

// Get loads one record by id.
func (s *Store) Get(ctx context.Context, id string) (*medrecord.Record, error) {
	var body string
	err := s.db.QueryRowContext(ctx, "SELECT body FROM records WHERE id = ?", id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading record %s: %w", id, err)
	}

	rec, err := medrecord.Parse([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", id, err)
	}
	rec.ID = id
	return rec, nil
}

// Delete removes the records with the given ids.
func (s *Store) Delete(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("deleting records: %w", err)
	}
	return res.RowsAffected()
}

// DeletePatient removes every record belonging to the patient and
// returns how many were removed.
func (s *Store) DeletePatient(ctx context.Context, patientID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE patient_id = ?", patientID)
	if err != nil {
		return 0, fmt.Errorf("deleting records: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// ContentHash is the SHA-256 hex digest used to dedupe records.
func ContentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
