package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

// Validator handles PDF file validation operations
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// Validate checks that data looks like a PDF within the size limit and that
// the PDF library can open it. Problems are reported in the result.
func (v *Validator) Validate(name string, data []byte) *ValidationResult {
	result := &ValidationResult{
		Name: name,
		Size: int64(len(data)),
	}

	if err := v.CheckBytes(name, data); err != nil {
		result.Message = err.Error()
		return result
	}

	if err := open(data); err != nil {
		result.Message = err.Error()
		return result
	}

	result.Valid = true
	return result
}

// ValidateFile reads and validates a PDF from disk.
func (v *Validator) ValidateFile(path string) (*ValidationResult, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}

	if err := v.ValidateFileInfo(path, info); err != nil {
		return &ValidationResult{Name: filepath.Base(path), Size: info.Size(), Message: err.Error()}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}

	return v.Validate(filepath.Base(path), data), nil
}

// CheckBytes performs the cheap checks that need no parsing
func (v *Validator) CheckBytes(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmpty, name)
	}

	if int64(len(data)) > v.maxFileSize {
		return fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrTooLarge, len(data), v.maxFileSize)
	}

	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	if !bytes.Contains(window, []byte("%PDF-")) {
		return fmt.Errorf("%w: %s", ErrNotPDF, name)
	}

	return nil
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !isPDFName(filePath) {
		return fmt.Errorf("%w: %s", ErrNotPDF, filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmpty, filePath)
	}

	if fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrTooLarge, fileInfo.Size(), v.maxFileSize)
	}

	return nil
}

// MaxFileSize returns the configured size limit.
func (v *Validator) MaxFileSize() int64 {
	return v.maxFileSize
}

// open parses the PDF trailer and page tree
func open(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if r.NumPage() == 0 {
		return fmt.Errorf("%w: no pages", ErrCorrupt)
	}
	return nil
}

func isPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
