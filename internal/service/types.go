package service

import (
	"github.com/a3tai/invoice-extractor/internal/batch"
	"github.com/a3tai/invoice-extractor/internal/invoice"
	"github.com/a3tai/invoice-extractor/internal/pdf"
)

// ExtractFileRequest represents a request to extract one invoice
type ExtractFileRequest struct {
	Path string `json:"path"`
}

// ExtractDirectoryRequest represents a request to extract every invoice in
// a directory, optionally writing a spreadsheet
type ExtractDirectoryRequest struct {
	Directory string `json:"directory,omitempty"`
	Query     string `json:"query,omitempty"`
	Output    string `json:"output,omitempty"`
	Format    string `json:"format,omitempty"`
}

// ExtractURLRequest represents a request to extract invoices by URL
type ExtractURLRequest struct {
	URL      string `json:"url"`
	Discover bool   `json:"discover,omitempty"`
	Output   string `json:"output,omitempty"`
	Format   string `json:"format,omitempty"`
}

// ExtractResult is the outcome of an extraction run
type ExtractResult struct {
	Records  []*invoice.Record `json:"records"`
	Warnings []batch.Warning   `json:"warnings"`
	Files    int               `json:"files"`
	Output   string            `json:"output,omitempty"`
}

// ValidateFileRequest represents a request to validate a PDF file
type ValidateFileRequest struct {
	Path string `json:"path"`
}

// ValidateFileResult reports whether a file can be extracted
type ValidateFileResult struct {
	Path    string    `json:"path"`
	Valid   bool      `json:"valid"`
	Size    int64     `json:"size"`
	Message string    `json:"message,omitempty"`
	Info    *pdf.Info `json:"info,omitempty"`
}

// ServerInfoRequest represents a request for server information
type ServerInfoRequest struct{}

// ToolInfo describes an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}

// ServerInfoResult represents server information and usage guidance
type ServerInfoResult struct {
	ServerName        string         `json:"server_name"`
	Version           string         `json:"version"`
	InvoiceDirectory  string         `json:"invoice_directory"`
	MaxFileSize       int64          `json:"max_file_size"`
	OCREngine         string         `json:"ocr_engine"`
	Columns           []string       `json:"columns"`
	AvailableTools    []ToolInfo     `json:"available_tools"`
	DirectoryContents []pdf.FileInfo `json:"directory_contents"`
	UsageGuidance     string         `json:"usage_guidance"`
}
