package recordstore

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/medicrypt/internal/medrecord"
	"github.com/ziadkadry99/medicrypt/internal/progress"
	"github.com/ziadkadry99/medicrypt/internal/vectordb"
)

// IngestStats summarises one ingest run.
type IngestStats struct {
	Files     int
	Records   int
	Inserted  int
	Unchanged int
	// Reindexed counts stored records that were missing from the index.
	Reindexed int
	Failed    []FileError
}

// FileError is a per-file ingest failure. Other files are still ingested.
type FileError struct {
	File string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.File, e.Err) }

// Ingester writes loaded records to the store and indexes new ones.
// A file's new rows are removed again if indexing it fails, and stored
// records missing from the index are indexed on the next run.
type Ingester struct {
	Loader   Loader
	Store    *Store
	Vectors  vectordb.VectorStore
	Reporter progress.Reporter
	Log      logrus.FieldLogger
}

// Run ingests every file the loader finds.
func (in *Ingester) Run(ctx context.Context) (IngestStats, error) {
	files, err := in.Loader.Files()
	if err != nil {
		return IngestStats{}, err
	}
	return in.IngestFiles(ctx, files)
}

// IngestFiles ingests the given files, relative to the loader root.
func (in *Ingester) IngestFiles(ctx context.Context, files []string) (IngestStats, error) {
	reporter := in.Reporter
	if reporter == nil {
		reporter = progress.Nop{}
	}
	log := in.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	stats := IngestStats{Files: len(files)}
	reporter.Start(len(files))
	defer reporter.Finish()

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		reporter.Update(i+1, file)

		recs, err := in.Loader.LoadFile(file)
		if err != nil {
			log.WithField("file", file).WithError(err).Warn("skipping record file")
			stats.Failed = append(stats.Failed, FileError{File: file, Err: err})
			continue
		}

		docs := make([]vectordb.Document, 0, len(recs))
		var inserted []string
		for _, rec := range recs {
			res, err := in.Store.Put(ctx, rec, file)
			if err != nil {
				in.rollback(ctx, log, file, inserted)
				return stats, fmt.Errorf("%s: %w", file, err)
			}
			stats.Records++
			switch {
			case res.Inserted:
				stats.Inserted++
				inserted = append(inserted, res.ID)
			case in.Vectors.Has(ctx, res.ID):
				stats.Unchanged++
				continue
			default:
				stats.Reindexed++
			}
			docs = append(docs, Document(rec, file, res.ContentHash))
		}

		if err := in.Vectors.AddDocuments(ctx, docs); err != nil {
			in.rollback(ctx, log, file, inserted)
			return stats, fmt.Errorf("indexing %s: %w", file, err)
		}
		log.WithFields(logrus.Fields{"file": file, "records": len(recs), "indexed": len(docs)}).Debug("ingested record file")
	}

	return stats, nil
}

// rollback removes rows inserted for a file that could not be indexed.
// Rows left behind by a failed rollback are reindexed on the next run.
func (in *Ingester) rollback(ctx context.Context, log logrus.FieldLogger, file string, ids []string) {
	if len(ids) == 0 {
		return
	}
	if _, err := in.Store.Delete(context.WithoutCancel(ctx), ids...); err != nil {
		log.WithField("file", file).WithError(err).Warn("removing unindexed records")
	}
}

// Document builds the vector index entry for a stored record.
func Document(rec *medrecord.Record, source, hash string) vectordb.Document {
	pid, _ := rec.PatientID()
	return vectordb.Document{
		ID:      rec.ID,
		Content: rec.EmbeddingText(),
		Metadata: vectordb.DocumentMetadata{
			RecordID:    rec.ID,
			PatientID:   pid,
			Source:      source,
			ContentHash: hash,
			LastUpdated: time.Now(),
		},
	}
}

// Purge removes a patient's records from the store and the index.
func (in *Ingester) Purge(ctx context.Context, patientID string) (int64, error) {
	n, err := in.Store.DeletePatient(ctx, patientID)
	if err != nil {
		return 0, err
	}
	if err := in.Vectors.DeleteByPatientID(ctx, patientID); err != nil {
		return n, fmt.Errorf("removing %s from index: %w", patientID, err)
	}
	return n, nil
}
