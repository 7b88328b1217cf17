package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medicrypt/internal/progress"
	"github.com/ziadkadry99/medicrypt/internal/recordstore"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Load medical record files into the record store and index",
	Long: `Reads record files (a JSON object, an array of objects, or JSON Lines)
matching the ingest.include globs, stores new records in SQLite and adds them
to the vector index. Unchanged records are skipped. Every record must carry a
patient_id.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("root", ".", "directory the include globs are relative to")
	ingestCmd.Flags().StringSlice("include", nil, "include globs (overrides ingest.include)")
	ingestCmd.Flags().StringSlice("exclude", nil, "exclude globs (overrides ingest.exclude)")
	ingestCmd.Flags().String("purge-patient", "", "remove every record of this patient instead of ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	root, _ := cmd.Flags().GetString("root")
	purge, _ := cmd.Flags().GetString("purge-patient")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("include") {
		cfg.Ingest.Include, _ = cmd.Flags().GetStringSlice("include")
	}
	if cmd.Flags().Changed("exclude") {
		cfg.Ingest.Exclude, _ = cmd.Flags().GetStringSlice("exclude")
	}

	ctx, log := newLogger(cmd.Context(), cfg)
	ws, err := openWorkspace(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer ws.Close()

	in := &recordstore.Ingester{
		Loader: recordstore.Loader{
			Root:    root,
			Include: cfg.Ingest.Include,
			Exclude: cfg.Ingest.Exclude,
		},
		Store:    ws.records,
		Vectors:  ws.vectors,
		Reporter: progress.NewReporter("Ingesting records"),
		Log:      log.WithField("component", "ingest"),
	}

	if purge != "" {
		n, err := in.Purge(ctx, purge)
		if err != nil {
			return err
		}
		if err := persistIndex(ctx, ws); err != nil {
			return err
		}
		fmt.Printf("Removed %d record(s) for patient %s.\n", n, purge)
		return nil
	}

	var stats recordstore.IngestStats
	if len(args) > 0 {
		stats, err = in.IngestFiles(ctx, args)
	} else {
		stats, err = in.Run(ctx)
	}
	if err != nil {
		return err
	}
	if stats.Inserted+stats.Reindexed > 0 {
		if err := persistIndex(ctx, ws); err != nil {
			return err
		}
	}

	fmt.Printf("Ingested %d file(s): %d record(s), %d new, %d reindexed, %d unchanged.\n",
		stats.Files, stats.Records, stats.Inserted, stats.Reindexed, stats.Unchanged)
	fmt.Printf("Index now holds %d record(s).\n", ws.vectors.Count())
	for _, f := range stats.Failed {
		fmt.Fprintf(os.Stderr, "  skipped %s\n", f.Error())
	}
	if stats.Files == 0 {
		fmt.Println("No record files matched. Check ingest.include in your config.")
	}
	if len(stats.Failed) > 0 && len(stats.Failed) == stats.Files {
		return fmt.Errorf("all %d file(s) failed to ingest", stats.Files)
	}
	return nil
}

func persistIndex(ctx context.Context, ws *workspace) error {
	dir := vectorDir(ws.cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index dir: %w", err)
	}
	if err := ws.vectors.Persist(ctx, dir); err != nil {
		return fmt.Errorf("saving index to %s: %w", dir, err)
	}
	return nil
}
