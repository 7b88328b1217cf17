// Package access holds the role model and the redaction rules that guard
// the anonymization boundary between patients and researchers.
package access

import "github.com/ziadkadry99/medicrypt/internal/medrecord"

// RedactionMarker replaces identifying values in researcher views.
const RedactionMarker = "[ANONYMIZED]"

// Level selects how much of a record is redacted for researchers.
type Level string

// LevelFull replaces the patient identifier and the name.
const LevelFull Level = "full"

// identifyingFields are overwritten at LevelFull.
var identifyingFields = []string{medrecord.FieldPatientID, medrecord.FieldName}

// Policy applies role-based redaction to records.
type Policy struct {
	Level Level
}

// DefaultPolicy redacts at LevelFull.
var DefaultPolicy = Policy{Level: LevelFull}

// Sanitize applies DefaultPolicy.
func Sanitize(rec *medrecord.Record, role Role) *medrecord.Record {
	return DefaultPolicy.Apply(rec, role)
}

// Apply returns the view of rec that role may see. Patients get rec itself.
// Every other role gets a copy with the identifying fields set to
// RedactionMarker. The input is never modified.
func (p Policy) Apply(rec *medrecord.Record, role Role) *medrecord.Record {
	if rec == nil {
		return nil
	}
	if role == RolePatient {
		return rec
	}

	out := rec.Clone()
	switch p.Level {
	case LevelFull:
		redact(out, identifyingFields)
	default:
		// Unknown levels fail closed.
		redact(out, identifyingFields)
	}
	return out
}

// redact writes the marker into each field, including absent ones.
func redact(rec *medrecord.Record, fields []string) {
	for _, f := range fields {
		rec.Set(f, RedactionMarker)
	}
}
