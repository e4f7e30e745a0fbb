package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/invoice-extractor/internal/config"
	"github.com/a3tai/invoice-extractor/internal/descriptions"
	"github.com/a3tai/invoice-extractor/internal/service"
	"github.com/a3tai/invoice-extractor/internal/testhelpers"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.InvoiceDirectory = dir
	cfg.MaxFileSize = 1024 * 1024
	cfg.Version = "1.0.0"
	cfg.ServerName = "test-server"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.NewService(cfg, logger)
	require.NoError(t, err)

	server, err := NewServer(cfg, svc, logger)
	require.NoError(t, err)
	return server, dir
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestNewServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.InvoiceDirectory = t.TempDir()

	_, err := NewServer(cfg, nil, nil)
	assert.Error(t, err, "nil service")

	svc, err := service.NewService(cfg, nil)
	require.NoError(t, err)

	_, err = NewServer(nil, svc, nil)
	assert.Error(t, err, "nil config")

	server, err := NewServer(cfg, svc, nil)
	require.NoError(t, err)
	assert.Same(t, cfg, server.config)
	assert.Same(t, svc, server.service)
	assert.NotNil(t, server.mcpServer)
	assert.NotNil(t, server.logger)
}

func TestServer_ToolsRegistered(t *testing.T) {
	server, _ := newTestServer(t)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	response := server.mcpServer.HandleMessage(context.Background(), msg)

	raw, err := json.Marshal(response)
	require.NoError(t, err)
	for _, name := range descriptions.GetAllToolNames() {
		assert.Contains(t, string(raw), `"`+name+`"`)
	}
}

func TestServer_HandleExtractFile(t *testing.T) {
	server, dir := newTestServer(t)
	testhelpers.WriteFile(t, dir, "inv.pdf", testhelpers.BuildPDF(testhelpers.InvoicePages("1300-42")...))
	testhelpers.WriteFile(t, dir, "blank.pdf", testhelpers.BuildPDF([]string{}))

	result, err := server.handleExtractFile(context.Background(), callRequest(map[string]interface{}{"path": "inv.pdf"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Invoice: inv.pdf")
	assert.Contains(t, text, "1300-42")
	assert.Contains(t, text, "Maple Logistics Inc")
	assert.Contains(t, text, "1180.25")
	assert.NotContains(t, text, "Not found:")

	result, err = server.handleExtractFile(context.Background(), callRequest(map[string]interface{}{"path": "blank.pdf"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "Nothing extracted from blank.pdf")
}

func TestServer_HandleExtractDirectory(t *testing.T) {
	server, dir := newTestServer(t)
	testhelpers.WriteFile(t, dir, "a.pdf", testhelpers.BuildPDF(testhelpers.InvoicePages("1300-1")...))
	testhelpers.WriteFile(t, dir, "b.pdf", []byte("garbage"))

	result, err := server.handleExtractDirectory(context.Background(), callRequest(map[string]interface{}{
		"output": "Invoice_Summary.xlsx",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Extracted 1 of 2 invoice(s)")
	assert.Contains(t, text, "Spreadsheet written to: "+filepath.Join(dir, "Invoice_Summary.xlsx"))
	assert.Contains(t, text, "Nothing extracted from b.pdf")

	result, err = server.handleExtractDirectory(context.Background(), callRequest(map[string]interface{}{
		"query": "b",
	}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "No data extracted from any file.")

	result, err = server.handleExtractDirectory(context.Background(), callRequest(map[string]interface{}{
		"directory": "/",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_HandleExtractURL(t *testing.T) {
	server, _ := newTestServer(t)
	doc := testhelpers.BuildPDF(testhelpers.InvoicePages("1300-9")...)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".pdf") {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(doc)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/files/1300-9.pdf">invoice</a>`))
	}))
	defer ts.Close()

	result, err := server.handleExtractURL(context.Background(), callRequest(map[string]interface{}{
		"url":      ts.URL + "/list",
		"discover": true,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "Invoice: 1300-9.pdf")

	result, err = server.handleExtractURL(context.Background(), callRequest(map[string]interface{}{
		"url": ts.URL + "/list",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_HandleValidateFile(t *testing.T) {
	server, dir := newTestServer(t)
	testhelpers.WriteFile(t, dir, "good.pdf", testhelpers.BuildPDF([]string{"hello"}))
	testhelpers.WriteFile(t, dir, "zeros.pdf", make([]byte, 1024))

	result, err := server.handleValidateFile(context.Background(), callRequest(map[string]interface{}{"path": "good.pdf"}))
	require.NoError(t, err)
	text := extractTextFromResult(result)
	assert.Contains(t, text, "is valid and readable")
	assert.Contains(t, text, "Pages: 1")

	result, err = server.handleValidateFile(context.Background(), callRequest(map[string]interface{}{"path": "zeros.pdf"}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "PDF validation failed")
}

func TestServer_HandleServerInfo(t *testing.T) {
	server, dir := newTestServer(t)
	testhelpers.WriteFile(t, dir, "inv.pdf", testhelpers.BuildPDF([]string{"x"}))

	result, err := server.handleServerInfo(context.Background(), callRequest(nil))
	require.NoError(t, err)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "test-server v1.0.0")
	assert.Contains(t, text, dir)
	assert.Contains(t, text, "1. inv.pdf")
	assert.Contains(t, text, descriptions.ToolExtractDirectory)
	assert.Contains(t, text, "OCR Engine: none")
}

func TestServer_InvalidArguments(t *testing.T) {
	server, _ := newTestServer(t)
	emptyRequest := callRequest(map[string]interface{}{})

	handlers := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
	}{
		{"ExtractFile", server.handleExtractFile},
		{"ExtractURL", server.handleExtractURL},
		{"ValidateFile", server.handleValidateFile},
	}

	for _, h := range handlers {
		t.Run(h.name, func(t *testing.T) {
			result, err := h.handler(context.Background(), emptyRequest)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.True(t, result.IsError)
		})
	}
}

func TestServer_Run(t *testing.T) {
	t.Run("stops at end of input", func(t *testing.T) {
		server, _ := newTestServer(t)
		server.stdin = strings.NewReader("")
		server.stdout = &bytes.Buffer{}

		assert.NoError(t, server.Run(context.Background()))
	})

	t.Run("stops when context is canceled", func(t *testing.T) {
		server, _ := newTestServer(t)
		reader, writer := io.Pipe()
		defer writer.Close()
		server.stdin = reader
		server.stdout = &bytes.Buffer{}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- server.Run(ctx) }()
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("server did not stop after cancellation")
		}
	})
}

// Helper function to extract text from a CallToolResult
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
