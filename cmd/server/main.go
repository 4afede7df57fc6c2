package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/repairdesk/internal/audit"
	"github.com/JonMunkholm/repairdesk/internal/config"
	"github.com/JonMunkholm/repairdesk/internal/dataset"
	"github.com/JonMunkholm/repairdesk/internal/logging"
	"github.com/JonMunkholm/repairdesk/internal/remote"
	"github.com/JonMunkholm/repairdesk/internal/repair"
	"github.com/JonMunkholm/repairdesk/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"remote", cfg.Remote.BaseURL,
		"audit_sinks", cfg.Audit.Sinks,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	dataset.MaxFileSize = cfg.Upload.MaxFileSize

	client := remote.New(cfg.Remote.BaseURL)

	ctx := context.Background()
	sinks, err := audit.Open(ctx, cfg.Audit, client)
	if err != nil {
		slog.Error("failed to open audit sinks", "error", err)
		os.Exit(1)
	}
	defer sinks.Close()

	session := repair.NewSession(client, sinks, repair.Options{
		ScratchColumn: cfg.Session.ScratchColumn,
	})

	// The catalog can be fetched again from the UI, so a failure here is
	// not fatal.
	if cfg.Session.LoadCatalog {
		catCtx, cancel := context.WithTimeout(ctx, cfg.Remote.CatalogTimeout)
		cat, err := session.LoadCatalog(catCtx)
		cancel()
		if err != nil {
			slog.Warn("failed to load catalog", "error", err)
		} else {
			slog.Info("catalog loaded", "models", len(cat.Models), "indexes", len(cat.Indexes))
		}
	}

	server := web.NewServer(session, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		return
	}
	<-done
}
