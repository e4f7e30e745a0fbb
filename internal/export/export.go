// Package export serializes extracted invoice records as a spreadsheet.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/a3tai/invoice-extractor/internal/invoice"
)

// Format is an export file format
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

const (
	// DefaultFilename is the name offered for downloads.
	DefaultFilename = "Invoice_Summary.xlsx"
	// SheetName is the worksheet holding the records.
	SheetName = "Summary"
)

// ErrNoRecords is returned when there is nothing to export.
var ErrNoRecords = errors.New("no data extracted from any file")

// ParseFormat parses a format name, case insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q (valid: xlsx, csv)", s)
	}
}

// FormatFromPath picks the format from the file extension, defaulting to xlsx.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatXLSX
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	if f == FormatCSV {
		return ".csv"
	}
	return ".xlsx"
}

// Filename returns the default download name for the format.
func (f Format) Filename() string {
	return strings.TrimSuffix(DefaultFilename, filepath.Ext(DefaultFilename)) + f.Extension()
}

// Write encodes records to w in format f.
func Write(w io.Writer, f Format, records []*invoice.Record) error {
	if len(records) == 0 {
		return ErrNoRecords
	}

	switch f {
	case FormatXLSX, "":
		return WriteXLSX(w, records)
	case FormatCSV:
		return WriteCSV(w, records)
	default:
		return fmt.Errorf("unsupported export format: %q", f)
	}
}

// WriteFile writes records to path, choosing the format from its extension.
// The file is written to a temporary name first and renamed into place.
func WriteFile(path string, records []*invoice.Record) error {
	if len(records) == 0 {
		return ErrNoRecords
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, FormatFromPath(path), records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	return nil
}
