package recordstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ziadkadry99/medicrypt/internal/medrecord"
)

// Loader finds record files under Root and decodes them.
type Loader struct {
	Root    string
	Include []string
	Exclude []string
}

// Files expands the include globs relative to Root, drops excluded paths,
// and returns the sorted, de-duplicated list of relative paths.
func (l Loader) Files() ([]string, error) {
	root := l.Root
	if root == "" {
		root = "."
	}
	fsys := os.DirFS(root)

	seen := make(map[string]bool)
	var files []string
	for _, pattern := range l.Include {
		pattern = filepath.ToSlash(pattern)
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || l.excluded(m) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (l Loader) excluded(rel string) bool {
	for _, pattern := range l.Exclude {
		if ok, err := doublestar.Match(filepath.ToSlash(pattern), rel); err == nil && ok {
			return true
		}
	}
	return false
}

// LoadFile reads one file relative to Root.
func (l Loader) LoadFile(rel string) ([]*medrecord.Record, error) {
	data, err := fs.ReadFile(os.DirFS(l.rootOrDot()), filepath.ToSlash(rel))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	recs, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	return recs, nil
}

func (l Loader) rootOrDot() string {
	if l.Root == "" {
		return "."
	}
	return l.Root
}

// Decode accepts a single JSON object, an array of objects, or JSON Lines.
// Every record must carry a non-empty patient_id.
func Decode(data []byte) ([]*medrecord.Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var recs []*medrecord.Record
	switch trimmed[0] {
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("decoding array: %w", err)
		}
		for i, raw := range raws {
			rec, err := medrecord.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			recs = append(recs, rec)
		}
	case '{':
		if json.Valid(trimmed) {
			rec, err := medrecord.Parse(trimmed)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
			break
		}
		var err error
		if recs, err = decodeLines(trimmed); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("expected a JSON object, array or JSON lines")
	}

	for i, rec := range recs {
		if pid, ok := rec.PatientID(); !ok || strings.TrimSpace(pid) == "" {
			return nil, fmt.Errorf("record %d has no %s", i, medrecord.FieldPatientID)
		}
	}
	return recs, nil
}

func decodeLines(data []byte) ([]*medrecord.Record, error) {
	var recs []*medrecord.Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		rec, err := medrecord.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading lines: %w", err)
	}
	return recs, nil
}
