package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medicrypt/internal/chat"
	"github.com/ziadkadry99/medicrypt/internal/metrics"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session over the records",
	Long: `Starts a line-oriented chat session. As a patient you see your own full
record; as a researcher you see aggregated records with patient identifiers
and names redacted. Type 'exit' or 'quit' to end the session.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("role", "", "session role: patient or researcher (default from config)")
	chatCmd.Flags().String("patient-id", "", "patient id for patient sessions (default from config)")
	chatCmd.Flags().Bool("plain", false, "read plain lines from stdin instead of an interactive prompt")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	roleFlag, _ := cmd.Flags().GetString("role")
	patientFlag, _ := cmd.Flags().GetString("patient-id")
	plain, _ := cmd.Flags().GetBool("plain")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	role, patientID, err := resolveRole(cfg, roleFlag, patientFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, log := newLogger(ctx, cfg)

	ws, err := openWorkspace(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer ws.Close()

	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	opts, err := sessionOptions(cfg, role, patientID)
	if err != nil {
		return err
	}

	sess, err := chat.NewSession(opts, ws.retriever(), provider,
		chat.WithRecorder(ws.audit),
		chat.WithMetrics(metrics.New()),
		chat.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	var input chat.LineReader = chat.PromptReader{}
	if plain || !isatty.IsTerminal(os.Stdin.Fd()) {
		input = chat.NewScanReader(os.Stdin, os.Stdout)
	}

	driver := &chat.Driver{
		Handler: sess,
		Input:   input,
		Out:     os.Stdout,
		Label:   role.Label(),
	}
	return driver.Run(ctx)
}
