package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/a3tai/invoice-extractor/internal/config"
	"github.com/a3tai/invoice-extractor/internal/mcp"
	"github.com/a3tai/invoice-extractor/internal/web"
)

const testVersion = "1.2.3"

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = originalStdout }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
		w.Close()
	}()

	var buf bytes.Buffer
	io.Copy(&buf, r)
	<-done
	return buf.String()
}

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	defer func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	version = testVersion
	buildTime = "2025-03-01_10:30:00"
	gitCommit = "abc123"

	output := captureStdout(t, printVersion)

	for _, expected := range []string{
		"Invoice Extractor",
		"Version: " + testVersion,
		"Build Time: 2025-03-01_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("printVersion() output missing expected string: %s\nActual output:\n%s", expected, output)
		}
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		level     string
		wantJSON  bool
		wantDebug bool
	}{
		{name: "stdio logs JSON", mode: config.ModeStdio, level: "info", wantJSON: true},
		{name: "server logs text", mode: config.ModeServer, level: "info"},
		{name: "debug level", mode: config.ModeServer, level: "debug", wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Mode = tt.mode
			cfg.LogLevel = tt.level

			var buf bytes.Buffer
			logger := newLogger(cfg, &buf)
			logger.Debug("debug line")
			logger.Info("info line")

			out := buf.String()
			if got := strings.HasPrefix(out, "{"); got != tt.wantJSON {
				t.Errorf("newLogger() JSON output = %v, want %v: %s", got, tt.wantJSON, out)
			}
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("newLogger() debug output = %v, want %v", got, tt.wantDebug)
			}
			if !strings.Contains(out, "info line") {
				t.Errorf("newLogger() output missing info line: %s", out)
			}
		})
	}
}

func TestNewRunner(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.DefaultConfig()
	cfg.InvoiceDirectory = t.TempDir()

	r, err := newRunner(cfg, logger)
	if err != nil {
		t.Fatalf("newRunner() stdio error: %v", err)
	}
	if _, ok := r.(*mcp.Server); !ok {
		t.Errorf("newRunner() stdio = %T, want *mcp.Server", r)
	}

	cfg.Mode = config.ModeServer
	r, err = newRunner(cfg, logger)
	if err != nil {
		t.Fatalf("newRunner() server error: %v", err)
	}
	if _, ok := r.(*web.Server); !ok {
		t.Errorf("newRunner() server = %T, want *web.Server", r)
	}

	cfg.OCREngine = "paddle"
	if _, err := newRunner(cfg, logger); err == nil {
		t.Error("newRunner() expected error for unknown OCR engine")
	}
}

type fakeRunner struct {
	err        error
	waitForCtx bool
}

func (f fakeRunner) Run(ctx context.Context) error {
	if f.waitForCtx {
		<-ctx.Done()
	}
	return f.err
}

func TestRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("returns the runner error", func(t *testing.T) {
		want := errors.New("boom")
		if err := run(context.Background(), fakeRunner{err: want}, logger); !errors.Is(err, want) {
			t.Errorf("run() error = %v, want %v", err, want)
		}
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		if err := run(ctx, fakeRunner{waitForCtx: true}, logger); err != nil {
			t.Errorf("run() error = %v, want nil", err)
		}
	})
}
