package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/invoice-extractor/internal/batch"
	"github.com/a3tai/invoice-extractor/internal/config"
	"github.com/a3tai/invoice-extractor/internal/descriptions"
	"github.com/a3tai/invoice-extractor/internal/invoice"
	"github.com/a3tai/invoice-extractor/internal/service"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *service.Service
	mcpServer *server.MCPServer
	logger    *slog.Logger

	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc *service.Service, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		service:   svc,
		mcpServer: mcpServer,
		logger:    logger,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	extractFileTool := mcp.NewTool(
		descriptions.ToolExtractFile,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolExtractFile)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the invoice PDF, absolute or relative to the invoice directory"),
		),
	)
	s.mcpServer.AddTool(extractFileTool, s.handleExtractFile)

	extractDirectoryTool := mcp.NewTool(
		descriptions.ToolExtractDirectory,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolExtractDirectory)),
		mcp.WithString("directory",
			mcp.Description("Directory to process (uses the invoice directory if empty)"),
		),
		mcp.WithString("query",
			mcp.Description("Optional filename filter"),
		),
		mcp.WithString("output",
			mcp.Description("Optional spreadsheet path, e.g. Invoice_Summary.xlsx"),
		),
		mcp.WithString("format",
			mcp.Description("Spreadsheet format when output has no extension"),
			mcp.Enum("xlsx", "csv"),
		),
	)
	s.mcpServer.AddTool(extractDirectoryTool, s.handleExtractDirectory)

	extractURLTool := mcp.NewTool(
		descriptions.ToolExtractURL,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolExtractURL)),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("URL of an invoice PDF or of a page linking to invoices"),
		),
		mcp.WithBoolean("discover",
			mcp.Description("Follow every PDF link when the URL is an HTML page"),
		),
		mcp.WithString("output",
			mcp.Description("Optional spreadsheet path inside the invoice directory"),
		),
		mcp.WithString("format",
			mcp.Description("Spreadsheet format when output has no extension"),
			mcp.Enum("xlsx", "csv"),
		),
	)
	s.mcpServer.AddTool(extractURLTool, s.handleExtractURL)

	validateFileTool := mcp.NewTool(
		descriptions.ToolValidateFile,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolValidateFile)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(validateFileTool, s.handleValidateFile)

	serverInfoTool := mcp.NewTool(
		descriptions.ToolServerInfo,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolServerInfo)),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleExtractFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	record, err := s.service.ExtractFile(ctx, service.ExtractFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Nothing extracted from %s: %v", path, err)), nil
	}

	return mcp.NewToolResultText(formatRecord(record)), nil
}

func (s *Server) handleExtractDirectory(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	args := request.GetArguments()

	req := service.ExtractDirectoryRequest{
		Directory: stringArg(args, "directory"),
		Query:     stringArg(args, "query"),
		Output:    stringArg(args, "output"),
		Format:    stringArg(args, "format"),
	}

	result, err := s.service.ExtractDirectory(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatExtractResult(result)), nil
}

func (s *Server) handleExtractURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	discover, _ := args["discover"].(bool)

	req := service.ExtractURLRequest{
		URL:      url,
		Discover: discover,
		Output:   stringArg(args, "output"),
		Format:   stringArg(args, "format"),
	}

	result, err := s.service.ExtractURL(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatExtractResult(result)), nil
}

func (s *Server) handleValidateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.ValidateFile(service.ValidateFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !result.Valid {
		return mcp.NewToolResultText(fmt.Sprintf("PDF validation failed for %s: %s", result.Path, result.Message)), nil
	}

	text := fmt.Sprintf("PDF file %s is valid and readable\n", result.Path)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	if result.Info != nil {
		text += fmt.Sprintf("Pages: %d\n", result.Info.Pages)
		text += fmt.Sprintf("PDF version: %s\n", result.Info.Version)
		text += fmt.Sprintf("Encrypted: %t\n", result.Info.Encrypted)
	}

	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.service.ServerInfo(ctx, service.ServerInfoRequest{})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatServerInfoResult(result)), nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// Formatting methods
func formatRecord(r *invoice.Record) string {
	text := fmt.Sprintf("Invoice: %s\n", r.Filename())
	text += fmt.Sprintf("Extracted: %s\n", r.Timestamp().Format("2006-01-02 15:04:05"))
	text += fmt.Sprintf("Pages: %d (%s)\n", r.Pages(), r.Source())

	for _, f := range invoice.Fields() {
		text += fmt.Sprintf("  %-17s %s\n", f.Header()+":", r.Value(f))
	}

	if missing := r.Missing(); len(missing) > 0 {
		text += "Not found:"
		for _, f := range missing {
			text += " " + f.Header()
		}
		text += "\n"
	}

	return text
}

func formatExtractResult(result *service.ExtractResult) string {
	text := fmt.Sprintf("Extracted %d of %d invoice(s)\n", len(result.Records), result.Files)
	if result.Output != "" {
		text += fmt.Sprintf("Spreadsheet written to: %s\n", result.Output)
	}

	for i, r := range result.Records {
		text += fmt.Sprintf("\n%d. ", i+1) + formatRecord(r)
	}

	if len(result.Warnings) > 0 {
		text += "\nWarnings:\n"
		text += formatWarnings(result.Warnings)
	}

	if len(result.Records) == 0 {
		text += "\nNo data extracted from any file.\n"
	}

	return text
}

func formatWarnings(warnings []batch.Warning) string {
	text := ""
	for _, w := range warnings {
		text += "  " + w.String() + "\n"
	}
	return text
}

func formatServerInfoResult(result *service.ServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📁 Invoice Directory: %s\n", result.InvoiceDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("🔍 OCR Engine: %s\n\n", result.OCREngine)

	if len(result.DirectoryContents) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d PDF files found):\n", len(result.DirectoryContents))
		for i, file := range result.DirectoryContents {
			if i >= 10 { // Limit to first 10 files for readability
				text += fmt.Sprintf("   ... and %d more files\n", len(result.DirectoryContents)-10)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Name, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No PDF files found in invoice directory\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Description: %s\n", tool.Description)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += "\n" + result.UsageGuidance

	return text
}

// Run serves MCP over stdio until ctx is done or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio",
		"invoice_dir", s.config.InvoiceDirectory,
		"ocr", s.service.OCREngine(),
	)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	if err := stdio.Listen(ctx, s.stdin, s.stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
