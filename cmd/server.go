package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medicrypt/internal/access"
	"github.com/ziadkadry99/medicrypt/internal/chat"
	"github.com/ziadkadry99/medicrypt/internal/metrics"
	"github.com/ziadkadry99/medicrypt/internal/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP/WebSocket chat server",
	Long: `Starts the medicrypt server with a WebSocket chat endpoint (/ws/chat) and
Prometheus metrics (/metrics). Every connection gets its own session with the
role given at start-up. The server binds to 127.0.0.1 unless --host is set.

--audit-api also mounts the access log (/api/audit). It is refused for
researcher servers because the log holds patient identifiers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		roleFlag, _ := cmd.Flags().GetString("role")
		patientFlag, _ := cmd.Flags().GetString("patient-id")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("audit-api") {
			cfg.Server.AuditAPI, _ = cmd.Flags().GetBool("audit-api")
		}
		role, patientID, err := resolveRole(cfg, roleFlag, patientFlag)
		if err != nil {
			return err
		}
		if cfg.Server.AuditAPI && role == access.RoleResearcher {
			return fmt.Errorf("--audit-api cannot be used with a researcher server")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, log := newLogger(ctx, cfg)

		ws, err := openWorkspace(ctx, cfg, false)
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

		m := metrics.New()
		retriever := ws.retriever()
		newSession := func() (*chat.Session, error) {
			return chat.NewSession(opts, retriever, provider,
				chat.WithRecorder(ws.audit),
				chat.WithMetrics(m),
				chat.WithLogger(log),
			)
		}

		srv := server.New(server.Config{
			Host:     cfg.Server.Host,
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAllOrigins,
			Role:     role,
			AuditAPI: cfg.Server.AuditAPI,
		}, ws.db, newSession, m, log)

		// Graceful shutdown.
		go func() {
			<-ctx.Done()
			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		log.WithFields(logrus.Fields{
			"version": Version,
			"addr":    srv.Addr(),
			"role":    string(role),
			"records": ws.vectors.Count(),
		}).Info("starting medicrypt server")

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().Int("port", 8080, "port to listen on (default server.port)")
	serverCmd.Flags().String("host", "127.0.0.1", "address to bind (default server.host)")
	serverCmd.Flags().Bool("audit-api", false, "serve the access log at /api/audit (patient servers only)")
	serverCmd.Flags().String("role", "", "role for every session: patient or researcher (default from config)")
	serverCmd.Flags().String("patient-id", "", "patient id for patient sessions (default from config)")
	rootCmd.AddCommand(serverCmd)
}
