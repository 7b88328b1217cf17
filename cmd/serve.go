package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/chat"
	mcpserver "github.com/ziadkadry99/medicrypt/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio exposing anonymized
research tools. Tools always run with the researcher role.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, log := newLogger(cmd.Context(), cfg)

		ws, err := openWorkspace(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer ws.Close()
		if ws.vectors.Count() == 0 {
			log.Warn("record index is empty; run `medicrypt ingest` first")
		}

		provider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			log.WithError(err).Warn("no language model available; ask_research_question is disabled")
			provider = nil
		}
		opts, err := sessionOptions(cfg, access.RoleResearcher, "")
		if err != nil {
			return fmt.Errorf("building session options: %w", err)
		}

		mcpserver.Version = Version
		log.WithField("records", ws.vectors.Count()).Info("medicrypt MCP server started on stdio")

		srv := mcpserver.NewServer(ws.retriever(), provider, opts, log, chat.WithRecorder(ws.audit))
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
