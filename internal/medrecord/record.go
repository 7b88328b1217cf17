package medrecord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Well-known field names. Every other field is opaque to the assistant.
const (
	FieldPatientID = "patient_id"
	FieldName      = "name"
)

// Record is one patient's medical data as an ordered set of fields.
// Values decoded from JSON are kept as json.RawMessage so nested
// structures survive a round trip unchanged.
type Record struct {
	// ID is the storage key assigned by the record store. It is not a
	// field of the record and is never rendered.
	ID string

	fields *orderedmap.OrderedMap[string, any]
}

// New returns an empty record.
func New() *Record {
	return &Record{fields: orderedmap.New[string, any]()}
}

// Parse decodes a single JSON object into a Record.
func Parse(data []byte) (*Record, error) {
	r := New()
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Record) ensure() {
	if r.fields == nil {
		r.fields = orderedmap.New[string, any]()
	}
}

// Set stores value under key. Existing keys keep their position.
func (r *Record) Set(key string, value any) *Record {
	r.ensure()
	r.fields.Set(key, value)
	return r
}

// Get returns the raw value stored under key.
func (r *Record) Get(key string) (any, bool) {
	if r == nil || r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Delete removes key from the record.
func (r *Record) Delete(key string) {
	if r == nil || r.fields == nil {
		return
	}
	r.fields.Delete(key)
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil || r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	if r == nil || r.fields == nil {
		return nil
	}
	keys := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// PatientID returns the patient identifier as text.
func (r *Record) PatientID() (string, bool) {
	return r.Text(FieldPatientID)
}

// Name returns the patient name as text.
func (r *Record) Name() (string, bool) {
	return r.Text(FieldName)
}

// Text returns the value under key as plain text. JSON strings are
// unquoted, other scalars are returned in their JSON form. A missing key
// or a JSON null reports false.
func (r *Record) Text(key string) (string, bool) {
	v, ok := r.Get(key)
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case json.RawMessage:
		trimmed := bytes.TrimSpace(val)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return "", false
		}
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s, true
		}
		return string(trimmed), true
	default:
		return fmt.Sprint(val), true
	}
}

// Clone returns a shallow copy. Field values are shared with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := New()
	out.ID = r.ID
	if r.fields == nil {
		return out
	}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out.fields.Set(pair.Key, pair.Value)
	}
	return out
}

// Equal reports whether both records hold the same fields, in the same
// order, with the same encoded values. The storage ID is ignored.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Len() != other.Len() {
		return false
	}
	a, errA := r.MarshalJSON()
	b, errB := other.MarshalJSON()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// MarshalJSON encodes the record as a JSON object in field order without
// HTML escaping.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r.fields != nil {
		first := true
		for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err := encodeValue(&buf, pair.Key); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			if err := encodeValue(&buf, pair.Value); err != nil {
				return nil, fmt.Errorf("encoding field %q: %w", pair.Key, err)
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping field order and raw values.
func (r *Record) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	raw := orderedmap.New[string, json.RawMessage]()
	if err := raw.UnmarshalJSON(trimmed); err != nil {
		return fmt.Errorf("reading record: %w", err)
	}

	fields := orderedmap.New[string, any](raw.Len())
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		fields.Set(pair.Key, pair.Value)
	}
	r.fields = fields
	return nil
}

// encodeValue writes v without HTML escaping. OrderedMap.MarshalJSON
// escapes <, > and &, which would change content hashes and the text
// shown to the model.
func encodeValue(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// Pretty renders the record as two-space indented JSON.
func (r *Record) Pretty() (string, error) {
	raw, err := r.MarshalJSON()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return "", fmt.Errorf("indenting record: %w", err)
	}
	return out.String(), nil
}

// EmbeddingText flattens the top-level fields into "key: value" lines
// for semantic indexing.
func (r *Record) EmbeddingText() string {
	var b strings.Builder
	for _, key := range r.Keys() {
		v, _ := r.Get(key)
		var text string
		if s, ok := r.Text(key); ok {
			text = s
		}
		if raw, ok := v.(json.RawMessage); ok {
			trimmed := bytes.TrimSpace(raw)
			if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
				var compact bytes.Buffer
				if err := json.Compact(&compact, trimmed); err == nil {
					text = compact.String()
				}
			}
		}
		fmt.Fprintf(&b, "%s: %s\n", key, text)
	}
	return b.String()
}
