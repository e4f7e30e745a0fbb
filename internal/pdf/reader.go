package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Reader extracts the text layer of a PDF page by page
type Reader struct {
	validator   *Validator
	maxTextSize int
}

// NewReader creates a new PDF reader with the specified constraints
func NewReader(maxFileSize int64) *Reader {
	return &Reader{
		validator:   NewValidator(maxFileSize),
		maxTextSize: 10 * 1024 * 1024, // 10MB text limit
	}
}

// Extract validates data and returns its per-page plain text. Pages whose
// text cannot be decoded are kept blank so that OCR can fill them later.
func (r *Reader) Extract(ctx context.Context, name string, data []byte) (doc *Document, err error) {
	if err := r.validator.CheckBytes(name, data); err != nil {
		return nil, err
	}

	// The PDF library panics on some malformed object graphs.
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = fmt.Errorf("%w: %s: %v", ErrCorrupt, name, rec)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}

	doc = &Document{
		Name: name,
		Size: int64(len(data)),
	}

	totalLength := 0
	numPages := pdfReader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text := pageText(pdfReader, pageNum)

		// Keep the page but drop text past the limit
		if totalLength+len(text) > r.maxTextSize {
			remaining := r.maxTextSize - totalLength
			if remaining < 0 {
				remaining = 0
			}
			text = text[:remaining]
		}
		totalLength += len(text)

		doc.Pages = append(doc.Pages, Page{Number: pageNum, Text: text})
	}

	return doc, nil
}

// pageText lays the page out from glyph positions so that lines moved with
// Td, TD or Tm end at a line break. Content streams the positional walk
// cannot interpret fall back to the plain text operators.
func pageText(r *pdf.Reader, pageNum int) string {
	page := r.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}

	if text, ok := positionedText(page); ok {
		return text
	}

	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}

func positionedText(page pdf.Page) (text string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			text, ok = "", false
		}
	}()

	return layoutText(page.Content().Text), true
}
