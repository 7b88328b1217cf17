package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/audit"
	"github.com/ziadkadry99/medicrypt/internal/db"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the record access log",
	Long:  `Lists which records were disclosed to which role and session, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().String("session", "", "filter by session id")
	auditCmd.Flags().String("role", "", "filter by role: patient or researcher")
	auditCmd.Flags().String("actor", "", "filter by actor (patient id or \"researcher\")")
	auditCmd.Flags().String("action", "", "filter by action, e.g. records_disclosed")
	auditCmd.Flags().Duration("since", 0, "only entries newer than this, e.g. 24h")
	auditCmd.Flags().Int("limit", 50, "maximum number of entries")
	auditCmd.Flags().Bool("json", false, "output entries as JSON")
	auditCmd.Flags().Duration("prune-older-than", 0, "delete entries older than this instead of listing")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, dbFile))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()
	store := audit.NewStore(database)
	ctx := cmd.Context()

	if prune, _ := cmd.Flags().GetDuration("prune-older-than"); prune > 0 {
		n, err := store.DeleteBefore(ctx, time.Now().Add(-prune))
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d access log entries.\n", n)
		return nil
	}

	filter := audit.QueryFilter{}
	filter.SessionID, _ = cmd.Flags().GetString("session")
	filter.ActorID, _ = cmd.Flags().GetString("actor")
	action, _ := cmd.Flags().GetString("action")
	filter.Action = audit.Action(action)
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	if roleStr, _ := cmd.Flags().GetString("role"); roleStr != "" {
		if filter.Role, err = access.ParseRole(roleStr); err != nil {
			return err
		}
	}
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		t := time.Now().Add(-since)
		filter.Since = &t
	}

	entries, err := store.Query(ctx, filter)
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []audit.Entry{}
		}
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No access log entries.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSESSION\tROLE\tACTOR\tACTION\tRECORDS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime),
			shortID(e.SessionID), e.Role, e.ActorID, e.Action, strings.Join(e.RecordIDs, ","))
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
