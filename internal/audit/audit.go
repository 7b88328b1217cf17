// Package audit records who was shown which records, and when.
package audit

import (
	"time"

	"github.com/ziadkadry99/medicrypt/internal/access"
)

// Action describes the outcome of a turn from a disclosure point of view.
type Action string

const (
	ActionRecordsDisclosed     Action = "records_disclosed"
	ActionNoRecords            Action = "no_records"
	ActionProbeRefused         Action = "probe_refused"
	ActionRetrievalUnavailable Action = "retrieval_unavailable"
	ActionPatientMismatch      Action = "patient_mismatch"
	ActionCompletionFailed     Action = "completion_failed"
)

// ResearcherActor is the actor id written for researcher sessions.
const ResearcherActor = "researcher"

// Entry is a single access log row. RecordIDs are storage keys, never
// patient identifiers.
type Entry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	SessionID string      `json:"session_id"`
	Role      access.Role `json:"role"`
	ActorID   string      `json:"actor_id"`
	Action    Action      `json:"action"`
	RecordIDs []string    `json:"record_ids"`
	Detail    string      `json:"detail,omitempty"`
}
