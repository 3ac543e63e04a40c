package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/use-agent/storyrake/api"
	"github.com/use-agent/storyrake/browser"
	"github.com/use-agent/storyrake/config"
	"github.com/use-agent/storyrake/export"
	"github.com/use-agent/storyrake/run"
)

func main() {
	var (
		configPath = flag.String("config", "storyrake.yaml", "path to the run configuration")
		outputPath = flag.String("o", "", "output workbook path (default: suggested filename)")
		serveAddr  = flag.String("serve", "", "serve the control-surface API on this address instead of running once")
	)
	flag.Parse()

	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyrake: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("storyrake starting",
		"baseURL", cfg.BaseURL,
		"pagination", cfg.PaginationType,
		"maxPages", cfg.MaxPages,
		"maxRetries", cfg.MaxRetries,
	)

	factory := browser.NewRodFactory(cfg.Browser)

	// ── 3a. Serve mode: expose the control surface ──────────────────
	if *serveAddr != "" {
		server := api.NewServer(factory)
		router := server.Router(envOr("STORYRAKE_GIN_MODE", "release"))
		slog.Info("control surface listening", "addr", *serveAddr)
		if err := router.Run(*serveAddr); err != nil {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	// ── 3b. One-shot mode: run once, write the workbook ──────────────
	out := *outputPath
	if out == "" {
		out = export.DefaultFilename
	}

	exitCode := 0
	orch := run.New(cfg, factory)
	orch.Run(context.Background(), run.Callbacks{
		Progress: func(msg string) { fmt.Println(msg) },
		Status:   func(phase string) { slog.Info("phase", "status", phase) },
		Complete: func(success bool, message string, payload []byte, _ string) {
			if !success {
				fmt.Fprintln(os.Stderr, message)
				exitCode = 1
				return
			}
			if err := os.WriteFile(out, payload, 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "could not write %s: %v\n", out, err)
				exitCode = 1
				return
			}
			fmt.Printf("%s Data saved to %s.\n", message, out)
		},
	})
	os.Exit(exitCode)
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
