package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/invoice-extractor/internal/config"
	"github.com/a3tai/invoice-extractor/internal/mcp"
	"github.com/a3tai/invoice-extractor/internal/service"
	"github.com/a3tai/invoice-extractor/internal/web"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// runner is either front end: the MCP stdio server or the web form.
type runner interface {
	Run(ctx context.Context) error
}

// newLogger writes structured logs to w. Logs always go to stderr in main
// so that stdout stays free for the MCP protocol.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsServerMode() {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// newRunner builds the front end selected by the configured mode.
func newRunner(cfg *config.Config, logger *slog.Logger) (runner, error) {
	svc, err := service.NewService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice service: %w", err)
	}

	if cfg.IsServerMode() {
		if !cfg.IsDebug() {
			gin.SetMode(gin.ReleaseMode)
		}
		return web.NewServer(cfg, svc, logger)
	}
	return mcp.NewServer(cfg, svc, logger)
}

// run serves until the front end stops or a shutdown signal arrives.
func run(ctx context.Context, r runner, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("initiating graceful shutdown")
		return <-errCh
	}
}

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	logger.Debug("starting with configuration", "config", cfg.String())

	r, err := newRunner(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := run(context.Background(), r, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("Invoice Extractor\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
