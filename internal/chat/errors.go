package chat

import "errors"

var (
	// ErrCompletionFailed wraps every completion engine failure returned
	// from HandleTurn. History is left unchanged when it is returned.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrRetrievalUnavailable marks retriever errors and timeouts. It never
	// escapes HandleTurn; the turn continues with no records.
	ErrRetrievalUnavailable = errors.New("record retrieval unavailable")

	// ErrPatientIdentityRequired is returned when a patient session is
	// created without a patient id.
	ErrPatientIdentityRequired = errors.New("patient session requires a patient id")
)
