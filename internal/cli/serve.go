package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ganot/perfscan/internal/analysis"
	"github.com/ganot/perfscan/internal/app"
	"github.com/ganot/perfscan/internal/config"
	"github.com/ganot/perfscan/internal/sqlite"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST and MCP server",
		Long:  "Serve the REST API with MCP mounted at /mcp (transport http), or MCP only over stdin/stdout (transport stdio).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if mode != "" {
				cfg.Transport.Mode = mode
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return runtimeErr(serve(cmd.Context(), cfg))
		},
	}
	cmd.Flags().StringVar(&mode, "transport", "", "transport mode: http or stdio (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, closeLog, err := newLogger(cfg.Log.Level, cfg.Log.Path, cfg.Transport.Mode)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer closeLog()

	db, err := openDB(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DB.Path, "error", err)
		return err
	}
	defer db.Close()

	analyzer, err := analysis.New(cfg.Provider.Name, cfg.Provider.Model, cfg.Provider.BaseURL, cfg.Provider.APIKey, analysis.Options{
		Timeout:         cfg.Provider.Timeout,
		MaxContentChars: cfg.Analysis.MaxContentChars,
		ResultLanguage:  cfg.Analysis.ResultLanguage,
	}, logger)
	if err != nil {
		logger.Error("failed to create analysis provider", "provider", cfg.Provider.Name, "error", err)
		return err
	}

	a := app.New(cfg, db, analyzer, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Transport.Mode == "stdio" {
		err = runStdio(ctx, logger, a.MCP)
	} else {
		err = runHTTP(ctx, logger, a.Router(), fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sErr := a.Shutdown(shutdownCtx); sErr != nil {
		logger.Warn("background processing cancelled", "error", sErr)
	}
	return err
}

func runStdio(ctx context.Context, logger *slog.Logger, server *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or ctx is cancelled.
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stdio server error", "error", err)
		return err
	}
	logger.Info("shutting down")
	return nil
}

func runHTTP(ctx context.Context, logger *slog.Logger, handler http.Handler, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("server error", "error", err)
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	return nil
}

// openDB opens the database at path, creating its directory, and applies
// migrations.
func openDB(path string) (*sqlite.DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, fmt.Errorf("preparing database path: %w", err)
	}
	db, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
