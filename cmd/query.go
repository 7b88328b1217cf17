package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/audit"
	"github.com/ziadkadry99/medicrypt/internal/medrecord"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Semantically search the records (anonymized)",
	Long: `Searches the record index with a natural language query and prints the
matching records with patient identifiers and names redacted.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Int("limit", 0, "maximum number of records (default chat.top_k)")
	queryCmd.Flags().Bool("json", false, "output records as a JSON array")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	queryText := args[0]
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = cfg.Chat.TopK
	}

	ctx, log := newLogger(cmd.Context(), cfg)
	ws, err := openWorkspace(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer ws.Close()

	recs, err := ws.retriever().RetrieveRecords(ctx, queryText, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	sanitized := make([]*medrecord.Record, 0, len(recs))
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		sanitized = append(sanitized, access.Sanitize(rec, access.RoleResearcher))
		ids = append(ids, rec.ID)
	}

	action := audit.ActionRecordsDisclosed
	if len(recs) == 0 {
		action = audit.ActionNoRecords
	}
	if err := ws.audit.Log(ctx, audit.Entry{
		SessionID: "query-" + uuid.New().String(),
		Role:      access.RoleResearcher,
		ActorID:   audit.ResearcherActor,
		Action:    action,
		RecordIDs: ids,
		Detail:    "medicrypt query",
	}); err != nil {
		log.WithError(err).Warn("writing access log")
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sanitized)
	}

	if len(sanitized) == 0 {
		fmt.Println("No relevant records found.")
		return nil
	}
	fmt.Printf("Found %d record(s):\n\n", len(sanitized))
	for i, rec := range sanitized {
		out, err := rec.Pretty()
		if err != nil {
			return err
		}
		fmt.Printf("%d.\n%s\n\n", i+1, out)
	}
	return nil
}
