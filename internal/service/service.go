// Package service ties the extraction pipeline to the invoice directory and
// exposes the operations offered by the MCP tools and the web form.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/a3tai/invoice-extractor/internal/batch"
	"github.com/a3tai/invoice-extractor/internal/config"
	"github.com/a3tai/invoice-extractor/internal/descriptions"
	"github.com/a3tai/invoice-extractor/internal/export"
	"github.com/a3tai/invoice-extractor/internal/fetch"
	"github.com/a3tai/invoice-extractor/internal/invoice"
	"github.com/a3tai/invoice-extractor/internal/ocr"
	"github.com/a3tai/invoice-extractor/internal/pdf"
	"github.com/a3tai/invoice-extractor/internal/pdf/security"
)

const (
	// maxImagesPerPage bounds OCR work on pages with many embedded images
	maxImagesPerPage = 4

	directoryListingLimit   = 100
	directoryListingTimeout = 5 * time.Second
)

// ErrNoPDFLinks is returned when a discovered page links to no PDF.
var ErrNoPDFLinks = errors.New("no PDF links found")

// Pipeline holds the collaborators shared by every entry point
type Pipeline struct {
	Processor *batch.Processor
	Fetcher   *fetch.Client
	OCREngine string
}

// NewPipeline builds the text reader, parser, OCR fallback and HTTP client
// described by cfg. Extra options are applied to the processor last.
func NewPipeline(cfg *config.Config, logger *slog.Logger, opts ...batch.Option) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	engine, err := ocr.New(cfg.OCRSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	processorOpts := []batch.Option{batch.WithLogger(logger)}
	engineName := ocr.EngineNone
	if engine != nil {
		engineName = engine.Name()
		fallback := ocr.NewFallback(engine, pdf.NewImageSource(maxImagesPerPage), logger)
		processorOpts = append(processorOpts, batch.WithOCR(fallback))
	}
	processorOpts = append(processorOpts, opts...)

	return &Pipeline{
		Processor: batch.NewProcessor(pdf.NewReader(cfg.MaxFileSize), invoice.NewParser(), processorOpts...),
		Fetcher: fetch.NewClient(
			fetch.WithTimeout(cfg.FetchTimeout),
			fetch.WithMaxSize(cfg.MaxFileSize),
		),
		OCREngine: engineName,
	}, nil
}

// Service handles invoice operations confined to the invoice directory
type Service struct {
	config    *config.Config
	logger    *slog.Logger
	pipeline  *Pipeline
	validator *pdf.Validator
	inspector *pdf.Inspector
	search    *pdf.Search
	sandbox   *security.Sandbox
}

// NewService creates a new invoice service with all components
func NewService(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sandbox, err := security.NewSandbox(cfg.InvoiceDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path sandbox: %w", err)
	}

	pipeline, err := NewPipeline(cfg, logger, batch.WithProgress(func(i, total int, name string) {
		logger.Debug("processing invoice", "index", i, "total", total, "file", name)
	}))
	if err != nil {
		return nil, err
	}

	return &Service{
		config:    cfg,
		logger:    logger,
		pipeline:  pipeline,
		validator: pdf.NewValidator(cfg.MaxFileSize),
		inspector: pdf.NewInspector(),
		search:    pdf.NewSearch(cfg.MaxFileSize),
		sandbox:   sandbox,
	}, nil
}

// MaxFileSize returns the per-file size limit.
func (s *Service) MaxFileSize() int64 {
	return s.config.MaxFileSize
}

// OCREngine returns the name of the active OCR engine.
func (s *Service) OCREngine() string {
	return s.pipeline.OCREngine
}

// Extract runs the pipeline over sources, such as uploaded files.
func (s *Service) Extract(ctx context.Context, sources []batch.Source) (*ExtractResult, error) {
	res, err := s.pipeline.Processor.Run(ctx, sources)
	if err != nil {
		return nil, err
	}
	return &ExtractResult{
		Records:  res.Records,
		Warnings: res.Warnings,
		Files:    res.Total,
	}, nil
}

// ExtractFile extracts one invoice from the invoice directory. A file that
// yields nothing is an error here rather than a warning.
func (s *Service) ExtractFile(ctx context.Context, req ExtractFileRequest) (*invoice.Record, error) {
	path, err := s.sandbox.Resolve(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	return s.pipeline.Processor.Process(ctx, batch.FileSource(path))
}

// ExtractDirectory extracts every matching invoice under a directory and
// writes the spreadsheet when an output path is given.
func (s *Service) ExtractDirectory(ctx context.Context, req ExtractDirectoryRequest) (*ExtractResult, error) {
	dir, err := s.sandbox.ResolveDirectory(req.Directory)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	sources, err := batch.DirectorySources(s.search, dir, req.Query)
	if err != nil {
		return nil, err
	}

	result, err := s.Extract(ctx, sources)
	if err != nil {
		return nil, err
	}

	if err := s.writeOutput(result, req.Output, req.Format); err != nil {
		return nil, err
	}
	return result, nil
}

// ExtractURL downloads an invoice, or with Discover every PDF linked from an
// HTML page, and extracts it.
func (s *Service) ExtractURL(ctx context.Context, req ExtractURLRequest) (*ExtractResult, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}

	d, err := s.pipeline.Fetcher.Get(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	var sources []batch.Source
	switch {
	case d.IsPDF():
		sources = []batch.Source{batch.BytesSource(d.Name, d.Data)}
	case req.Discover && d.IsHTML():
		links, err := fetch.Links(d)
		if err != nil {
			return nil, err
		}
		if len(links) == 0 {
			return nil, fmt.Errorf("%w on %s", ErrNoPDFLinks, req.URL)
		}
		s.logger.Info("discovered invoice links", "page", d.URL, "links", len(links))
		sources = batch.URLSources(s.pipeline.Fetcher, links)
	default:
		hint := ""
		if d.IsHTML() {
			hint = " (set discover to follow PDF links on the page)"
		}
		return nil, fmt.Errorf("%w: %s%s", pdf.ErrNotPDF, req.URL, hint)
	}

	result, err := s.Extract(ctx, sources)
	if err != nil {
		return nil, err
	}

	if err := s.writeOutput(result, req.Output, req.Format); err != nil {
		return nil, err
	}
	return result, nil
}

// ValidateFile checks that a file in the invoice directory can be extracted
// and reports its structure.
func (s *Service) ValidateFile(req ValidateFileRequest) (*ValidateFileResult, error) {
	path, err := s.sandbox.Resolve(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	v, err := s.validator.ValidateFile(path)
	if err != nil {
		return nil, err
	}

	result := &ValidateFileResult{
		Path:    path,
		Valid:   v.Valid,
		Size:    v.Size,
		Message: v.Message,
	}
	if !v.Valid {
		return result, nil
	}

	// An inspection failure only drops Info
	if info, err := s.inspectFile(path); err != nil {
		s.logger.Debug("inspection failed", "file", path, "error", err)
	} else {
		result.Info = info
	}
	return result, nil
}

// ServerInfo returns server information, directory contents and usage guidance
func (s *Service) ServerInfo(ctx context.Context, _ ServerInfoRequest) (*ServerInfoResult, error) {
	root := s.sandbox.Root()

	return &ServerInfoResult{
		ServerName:        s.config.ServerName,
		Version:           s.config.Version,
		InvoiceDirectory:  root,
		MaxFileSize:       s.config.MaxFileSize,
		OCREngine:         s.pipeline.OCREngine,
		Columns:           invoice.Headers(),
		AvailableTools:    availableTools(),
		DirectoryContents: s.listDirectory(ctx, root),
		UsageGuidance:     s.usageGuidance(),
	}, nil
}

// listDirectory returns up to directoryListingLimit invoices, giving up
// after directoryListingTimeout on slow file systems
func (s *Service) listDirectory(ctx context.Context, root string) []pdf.FileInfo {
	resultChan := make(chan []pdf.FileInfo, 1)

	go func() {
		files, err := s.search.FindPDFs(root, "", directoryListingLimit)
		if err != nil {
			s.logger.Debug("directory listing failed", "dir", root, "error", err)
		}
		resultChan <- files
	}()

	select {
	case files := <-resultChan:
		if files == nil {
			return []pdf.FileInfo{}
		}
		return files
	case <-ctx.Done():
		return []pdf.FileInfo{}
	case <-time.After(directoryListingTimeout):
		s.logger.Warn("directory listing timed out", "dir", root)
		return []pdf.FileInfo{}
	}
}

// writeOutput writes the spreadsheet for result inside the invoice
// directory. Nothing is written when no record was extracted.
func (s *Service) writeOutput(result *ExtractResult, output, format string) error {
	if output == "" || len(result.Records) == 0 {
		return nil
	}

	path, err := s.outputPath(output, format)
	if err != nil {
		return err
	}

	if err := export.WriteFile(path, result.Records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.Info("spreadsheet written", "path", path, "rows", len(result.Records))
	result.Output = path
	return nil
}

func (s *Service) outputPath(output, format string) (string, error) {
	path, err := s.sandbox.Resolve(output)
	if err != nil {
		return "", fmt.Errorf("security validation failed: %w", err)
	}

	ext := filepath.Ext(path)
	if format == "" {
		if ext == "" {
			path += export.FormatXLSX.Extension()
		}
		return path, nil
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	switch {
	case ext == "":
		path += f.Extension()
	case export.FormatFromPath(path) != f:
		return "", fmt.Errorf("output %s does not match format %s", filepath.Base(path), f)
	}
	return path, nil
}

func (s *Service) inspectFile(path string) (*pdf.Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.inspector.Inspect(data)
}

func availableTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        descriptions.ToolExtractFile,
			Description: "Extract the summary fields of one invoice PDF",
			Usage:       "Use this tool to read the reference, shipper, weight, volume and amounts of a single invoice.",
			Parameters:  "path (required): Path to the PDF, absolute or relative to the invoice directory",
		},
		{
			Name:        descriptions.ToolExtractDirectory,
			Description: "Extract every invoice in a directory, optionally into a spreadsheet",
			Usage: "Use this tool for batches. Files that yield nothing are reported as warnings " +
				"and never stop the batch.",
			Parameters: "directory (optional): Directory to process (invoice directory if empty), " +
				"query (optional): Filename filter, output (optional): Spreadsheet path, " +
				"format (optional): xlsx or csv",
		},
		{
			Name:        descriptions.ToolExtractURL,
			Description: "Download invoices by URL and extract them",
			Usage:       "Use this tool for invoices published on a portal. Set discover to follow PDF links on an HTML page.",
			Parameters: "url (required): PDF or page URL, discover (optional): Follow PDF links, " +
				"output (optional): Spreadsheet path, format (optional): xlsx or csv",
		},
		{
			Name:        descriptions.ToolValidateFile,
			Description: "Check that a file is a readable PDF",
			Usage:       "Use this tool before extracting files of unknown origin.",
			Parameters:  "path (required): Path to the PDF",
		},
		{
			Name:        descriptions.ToolServerInfo,
			Description: "Get server information, columns, directory contents and usage guidance",
			Usage:       "Use this tool first to discover the available invoices.",
			Parameters:  "none",
		},
	}
}

func (s *Service) usageGuidance() string {
	ocrNote := "- OCR is disabled: scanned invoices without a text layer produce a warning"
	if s.pipeline.OCREngine != ocr.EngineNone {
		ocrNote = fmt.Sprintf("- Pages without a text layer are recognized with %s OCR", s.pipeline.OCREngine)
	}

	return `Invoice Extractor Usage Guide:

1. DISCOVER:
   - Use 'invoice_server_info' to list the invoices in the invoice directory

2. EXTRACT:
   - Use 'invoice_extract_file' for a single invoice
   - Use 'invoice_extract_directory' for a batch, with 'output' to write Invoice_Summary.xlsx
   - Use 'invoice_extract_url' for invoices on the web

3. READ THE RESULT:
   - Columns: ` + strings.Join(invoice.Headers(), ", ") + `
   - A field whose label is missing from the invoice is "unknown"
   - Files that yield nothing are listed as "Nothing extracted from <file>"
   - A PDF whose pages carry no text at all gets no row, only that warning;
     one with text but none of the labels still gets a row of "unknown"

IMPORTANT NOTES:
- Paths are confined to the invoice directory
- The server accepts files up to ` + fmt.Sprintf("%d", s.config.MaxFileSize/(1024*1024)) + `MB
` + ocrNote
}
