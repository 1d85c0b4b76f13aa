package cli

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"semantic-memory/internal/http"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin HTTP API",
	Long: `Serve the admin HTTP API. Knowledge sources are re-ingested in the background at
startup, and archival runs on MEMORY_ARCHIVE_CRON when it is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := openApp(cmd, os.Stdout)
		if err != nil {
			return err
		}
		defer app.Close()
		logger := app.Logger

		if port, _ := cmd.Flags().GetString("port"); port != "" {
			app.Config.APIPort = port
		}
		if app.Config.ArchiveCron != "" {
			if err := app.Trigger.Schedule(app.Config.ArchiveCron); err != nil {
				return err
			}
		}

		if info, err := os.Stat(app.Config.KnowledgeSrc); err == nil && info.IsDir() {
			go func() {
				logger.Info("Starting background knowledge ingestion", "dir", app.Config.KnowledgeSrc)
				report, err := app.Service.ReloadKnowledge(ctx)
				if err != nil {
					logger.Error("Knowledge ingestion failed", "error", err)
					return
				}
				logger.Info("Knowledge ingestion completed",
					"processed", report.SourcesProcessed,
					"unchanged", report.SourcesUnchanged,
					"failed", report.SourcesFailed,
					"index_version", report.IndexVersion)
			}()
		}

		router := http.NewRouter(&http.Deps{
			Service:     app.Service,
			ModelChecks: app.ModelChecks(),
			Logger:      logger,
		})
		srv := &nethttp.Server{
			Addr:              ":" + app.Config.APIPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Starting API server", "addr", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, nethttp.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("API server failed: %w", err)
		case <-ctx.Done():
		}

		logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("port", "", "Listen port (overrides API_PORT)")
	rootCmd.AddCommand(serveCmd)
}
