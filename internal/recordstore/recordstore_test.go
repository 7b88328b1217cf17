package recordstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/medicrypt/internal/db"
	"github.com/ziadkadry99/medicrypt/internal/embeddings"
	"github.com/ziadkadry99/medicrypt/internal/medrecord"
	"github.com/ziadkadry99/medicrypt/internal/progress"
	"github.com/ziadkadry99/medicrypt/internal/vectordb"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func newVectors(t *testing.T) *vectordb.ChromemStore {
	t.Helper()
	v, err := vectordb.NewChromemStore(embeddings.NewHashEmbedder(128))
	require.NoError(t, err)
	return v
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDecodeFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"object", `{"patient_id":"P1","name":"Alice"}`, 1},
		{"array", `[{"patient_id":"P1"},{"patient_id":"P2"}]`, 2},
		{"jsonl", "{\"patient_id\":\"P1\"}\n\n{\"patient_id\":\"P2\"}\n{\"patient_id\":\"P3\"}\n", 3},
		{"empty", "  \n", 0},
	}
	for _, tt := range tests {
		recs, err := Decode([]byte(tt.input))
		require.NoError(t, err, tt.name)
		assert.Len(t, recs, tt.want, tt.name)
	}
}

func TestDecodeRejects(t *testing.T) {
	for _, input := range []string{
		`{"name":"Alice"}`,
		`[{"patient_id":"P1"},{"patient_id":""}]`,
		`[1,2]`,
		`"just a string"`,
		"{\"patient_id\":\"P1\"}\n{broken",
	} {
		_, err := Decode([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestDecodeKeepsFieldOrder(t *testing.T) {
	recs, err := Decode([]byte(`{"name":"Alice","patient_id":"P1","bp":"120/80"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "patient_id", "bp"}, recs[0].Keys())
}

func TestLoaderFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "records/a.json", `{"patient_id":"P1"}`)
	writeFile(t, dir, "records/nested/b.jsonl", `{"patient_id":"P2"}`)
	writeFile(t, dir, "records/skip/c.json", `{"patient_id":"P3"}`)
	writeFile(t, dir, "notes.txt", "not a record")

	l := Loader{
		Root:    dir,
		Include: []string{"records/**/*.json", "records/**/*.jsonl", "records/a.json"},
		Exclude: []string{"records/skip/**"},
	}
	files, err := l.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"records/a.json", "records/nested/b.jsonl"}, files)
}

func TestStorePutDedupes(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	rec, err := medrecord.Parse([]byte(`{"patient_id":"P1","diagnosis":"asthma"}`))
	require.NoError(t, err)

	first, err := store.Put(ctx, rec, "a.json")
	require.NoError(t, err)
	assert.True(t, first.Inserted)
	assert.Equal(t, first.ID, rec.ID)

	again, _ := medrecord.Parse([]byte(`{"patient_id":"P1","diagnosis":"asthma"}`))
	second, err := store.Put(ctx, again, "b.json")
	require.NoError(t, err)
	assert.False(t, second.Inserted)
	assert.Equal(t, first.ID, second.ID)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStorePutRequiresPatientID(t *testing.T) {
	_, err := newStore(t).Put(context.Background(), medrecord.New().Set("name", "Alice"), "x")
	assert.Error(t, err)
}

func TestStoreGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	input := `{"patient_id":"P1","name":"Alice","labs":{"hba1c":6.1,"ldl":[120,118]}}`
	rec, _ := medrecord.Parse([]byte(input))
	res, err := store.Put(ctx, rec, "a.json")
	require.NoError(t, err)

	got, err := store.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
	raw, _ := got.MarshalJSON()
	assert.Equal(t, input, string(raw))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIngestAndRetrieve(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "records/clinic.json", `[
		{"patient_id":"P1","name":"Alice","diagnosis":"hypertension","bp":"150/95"},
		{"patient_id":"P2","name":"Bob","diagnosis":"asthma","meds":"albuterol inhaler"}
	]`)
	writeFile(t, dir, "records/labs.jsonl", `{"patient_id":"P1","name":"Alice","hba1c":7.2,"diagnosis":"type 2 diabetes"}`+"\n")
	writeFile(t, dir, "records/bad.json", `{"name":"nobody"}`)

	store := newStore(t)
	vectors := newVectors(t)
	log, hook := test.NewNullLogger()
	var out bytes.Buffer

	in := &Ingester{
		Loader:   Loader{Root: dir, Include: []string{"records/**/*.json", "records/**/*.jsonl"}},
		Store:    store,
		Vectors:  vectors,
		Reporter: progress.NewLineReporter(&out, "Ingesting"),
		Log:      log,
	}

	stats, err := in.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 3, stats.Inserted)
	require.Len(t, stats.Failed, 1)
	assert.Equal(t, "records/bad.json", stats.Failed[0].File)
	assert.Equal(t, 3, vectors.Count())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, out.String(), "[3/3]")

	// Re-ingesting unchanged files is a no-op.
	stats, err = in.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 3, stats.Unchanged)
	assert.Equal(t, 3, vectors.Count())

	r := NewRetriever(vectors, store)

	rec, err := r.RetrieveRecord(ctx, "asthma inhaler", "P1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	pid, _ := rec.PatientID()
	assert.Equal(t, "P1", pid, "patient retrieval never crosses patients")

	rec, err = r.RetrieveRecord(ctx, "anything", "P404")
	require.NoError(t, err)
	assert.Nil(t, rec)

	recs, err := r.RetrieveRecords(ctx, "asthma albuterol inhaler", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	pid, _ = recs[0].PatientID()
	assert.Equal(t, "P2", pid)

	recs, err = r.RetrieveRecords(ctx, "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	n, err := in.Purge(ctx, "P1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 1, vectors.Count())
}

func TestRetrieverSkipsMissingBodies(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	vectors := newVectors(t)

	rec, _ := medrecord.Parse([]byte(`{"patient_id":"P1","diagnosis":"asthma"}`))
	res, err := store.Put(ctx, rec, "a.json")
	require.NoError(t, err)
	require.NoError(t, vectors.AddDocuments(ctx, []vectordb.Document{Document(rec, "a.json", res.ContentHash)}))

	_, err = store.DeletePatient(ctx, "P1")
	require.NoError(t, err)

	recs, err := NewRetriever(vectors, store).RetrieveRecords(ctx, "asthma", 3)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 0, vectors.Count(), "stale index entry should be pruned")
}

// flakyVectors fails the first n AddDocuments calls.
type flakyVectors struct {
	*vectordb.ChromemStore
	failures int
}

func (f *flakyVectors) AddDocuments(ctx context.Context, docs []vectordb.Document) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("embedding service unavailable")
	}
	return f.ChromemStore.AddDocuments(ctx, docs)
}

func TestIngestRollsBackWhenIndexingFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "records/p1.json", `{"patient_id":"P1","name":"Alice","diagnosis":"hypertension","blood_pressure":"150/95"}`)

	store := newStore(t)
	vectors := &flakyVectors{ChromemStore: newVectors(t), failures: 1}
	log, _ := test.NewNullLogger()
	in := &Ingester{
		Loader:  Loader{Root: dir, Include: []string{"records/*.json"}},
		Store:   store,
		Vectors: vectors,
		Log:     log,
	}

	_, err := in.Run(ctx)
	require.Error(t, err)
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "unindexed rows must not stay behind")

	stats, err := in.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 0, stats.Unchanged)
	assert.Equal(t, 1, vectors.Count())

	rec, err := NewRetriever(vectors, store).RetrieveRecord(ctx, "blood pressure", "P1")
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestIngestReindexesStoredRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	body := `{"patient_id":"P1","name":"Alice","diagnosis":"hypertension"}`
	writeFile(t, dir, "records/p1.json", body)

	store := newStore(t)
	vectors := newVectors(t)

	// A stored row whose index entry was never persisted.
	rec, _ := medrecord.Parse([]byte(body))
	_, err := store.Put(ctx, rec, "records/p1.json")
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	in := &Ingester{
		Loader:  Loader{Root: dir, Include: []string{"records/*.json"}},
		Store:   store,
		Vectors: vectors,
		Log:     log,
	}

	stats, err := in.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 1, stats.Reindexed)
	assert.Equal(t, 0, stats.Unchanged)
	assert.True(t, vectors.Has(ctx, rec.ID))

	stats, err = in.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Reindexed)
	assert.Equal(t, 1, stats.Unchanged)
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	var ids []string
	for _, s := range []string{`{"patient_id":"P1","a":1}`, `{"patient_id":"P1","a":2}`, `{"patient_id":"P2","a":3}`} {
		rec, _ := medrecord.Parse([]byte(s))
		res, err := store.Put(ctx, rec, "x.json")
		require.NoError(t, err)
		ids = append(ids, res.ID)
	}

	n, err := store.Delete(ctx, ids[0], ids[2])
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = store.Get(ctx, ids[1])
	assert.NoError(t, err)
	_, err = store.Get(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)

	n, err = store.Delete(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
