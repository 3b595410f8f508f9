// Package main is the entry point for the lifeline API server.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration (.env file, then environment variables)
// 2. Create process-wide dependencies (logger, tracer)
// 3. Start the server and report how it ended
//
// All actual logic lives in internal/server and the packages it wires.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/lifeline/internal/config"
	"github.com/sakif/lifeline/internal/server"
	"github.com/sakif/lifeline/internal/telemetry"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// === 1. READ CONFIGURATION ===
	// A .env file is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	// === 2. SET UP LOGGING ===
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// === 3. TRACING ===
	shutdownTracing, err := telemetry.Init(ctx, "lifeline", cfg.OTLPEndpoint, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flushing traces", slog.String("error", err.Error()))
		}
	}()

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	return srv.Start(ctx)
}
