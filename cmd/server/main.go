package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/textconv/internal/config"
	"github.com/JonMunkholm/textconv/internal/core"
	"github.com/JonMunkholm/textconv/internal/logging"
	"github.com/JonMunkholm/textconv/internal/schemafile"
	"github.com/JonMunkholm/textconv/internal/sink"
	"github.com/JonMunkholm/textconv/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	schemas := schemafile.NewRegistry()
	if cfg.Convert.SchemaDir != "" {
		n, err := schemas.LoadDir(cfg.Convert.SchemaDir)
		if err != nil {
			logger.Error("failed to load schemas", "dir", cfg.Convert.SchemaDir, "error", err)
			os.Exit(1)
		}
		logger.Info("schemas registered", "dir", cfg.Convert.SchemaDir, "count", n)
		for _, def := range schemas.All() {
			logger.Debug("schema", "name", def.Name, "format", def.Format.String(), "columns", len(def.Columns))
		}
	}

	var (
		sinkDB  *sql.DB
		dialect sink.Dialect
	)
	if cfg.Sink.Enabled() {
		sinkDB, dialect, err = sink.Open(cfg.Sink.Driver, cfg.Sink.DSN)
		if err != nil {
			logger.Error("failed to open sink", "driver", cfg.Sink.Driver, "error", err)
			os.Exit(1)
		}
		defer sinkDB.Close()

		if err := sinkDB.PingContext(context.Background()); err != nil {
			logger.Error("failed to ping sink", "driver", cfg.Sink.Driver, "error", err)
			os.Exit(1)
		}
		logger.Info("connected to sink", "dialect", string(dialect))
	}

	files := core.OSFiles{
		MaxLineBytes: cfg.Convert.MaxLineBytes,
		MaxFileBytes: cfg.Convert.MaxFileSize,
	}
	server := web.NewServer(cfg, web.Deps{
		Service: core.NewService(files, logger),
		Schemas: schemas,
		Limiter: core.NewConvertLimiter(cfg.Convert.MaxConcurrent, cfg.Convert.MaxWaitTime),
		SinkDB:  sinkDB,
		Dialect: dialect,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	logger.Info("server stopped")
}
