package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/db"
)

// Store persists access log entries.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts a new entry. Empty ID and zero Timestamp are filled in.
func (s *Store) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.RecordIDs == nil {
		entry.RecordIDs = []string{}
	}

	ids, err := json.Marshal(entry.RecordIDs)
	if err != nil {
		return fmt.Errorf("marshalling record ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO access_log (
			id, timestamp, session_id, role, actor_id, action, record_ids, detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UTC().Format(time.DateTime),
		entry.SessionID,
		string(entry.Role),
		entry.ActorID,
		string(entry.Action),
		string(ids),
		entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting access log entry: %w", err)
	}
	return nil
}

// GetByID retrieves a single entry.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, session_id, role, actor_id, action, record_ids, detail
		FROM access_log WHERE id = ?`, id)
	return scanInto(row)
}

// QueryFilter controls which entries are returned by Query.
type QueryFilter struct {
	SessionID string
	Role      access.Role
	ActorID   string
	Action    Action
	Since     *time.Time
	Limit     int
	Offset    int
}

// Query returns entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Role != "" {
		clauses = append(clauses, "role = ?")
		args = append(args, string(filter.Role))
	}
	if filter.ActorID != "" {
		clauses = append(clauses, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}

	query := "SELECT id, timestamp, session_id, role, actor_id, action, record_ids, detail FROM access_log"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying access log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteBefore removes all entries older than the given time.
// Returns the number of deleted rows.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM access_log WHERE timestamp < ?",
		before.UTC().Format(time.DateTime),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old access log entries: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

var _ scanner = (*sql.Row)(nil)

func scanInto(sc scanner) (*Entry, error) {
	var (
		e            Entry
		ts           string
		role, action string
		idsJSON      string
	)

	if err := sc.Scan(&e.ID, &ts, &e.SessionID, &role, &e.ActorID, &action, &idsJSON, &e.Detail); err != nil {
		return nil, err
	}

	e.Role = access.Role(role)
	e.Action = Action(action)

	if t, parseErr := time.Parse(time.DateTime, ts); parseErr == nil {
		e.Timestamp = t
	} else if t, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
		e.Timestamp = t
	}

	if err := json.Unmarshal([]byte(idsJSON), &e.RecordIDs); err != nil {
		e.RecordIDs = nil
	}

	return &e, nil
}
