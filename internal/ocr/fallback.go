package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a3tai/invoice-extractor/internal/pdf"
)

// PageImager returns the raster images embedded in one page of a PDF
type PageImager interface {
	PageImages(ctx context.Context, data []byte, page int) ([]pdf.PageImage, error)
}

// Fallback fills pages that have no text layer by recognizing their images
type Fallback struct {
	engine Engine
	images PageImager
	logger *slog.Logger
}

// NewFallback creates a fallback that uses engine on images from imager.
func NewFallback(engine Engine, imager PageImager, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		engine: engine,
		images: imager,
		logger: logger,
	}
}

// Engine returns the configured engine name.
func (f *Fallback) Engine() string {
	if f.engine == nil {
		return EngineNone
	}
	return f.engine.Name()
}

// Apply runs OCR on every blank page of doc and stores the text in place.
// It returns the number of pages filled. Page failures are logged; an error
// is returned only when nothing could be recognized or ctx is done.
func (f *Fallback) Apply(ctx context.Context, doc *pdf.Document, data []byte) (int, error) {
	if f.engine == nil {
		return 0, nil
	}

	blank := doc.BlankPages()
	if len(blank) == 0 {
		return 0, nil
	}

	filled := 0
	var failures []error

	for i := range doc.Pages {
		page := &doc.Pages[i]
		if strings.TrimSpace(page.Text) != "" {
			continue
		}
		pageNum := page.Number

		if err := ctx.Err(); err != nil {
			return filled, err
		}

		text, err := f.recognizePage(ctx, data, pageNum)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return filled, ctxErr
			}
			f.logger.Warn("OCR failed", "file", doc.Name, "page", pageNum, "engine", f.engine.Name(), "error", err)
			failures = append(failures, fmt.Errorf("page %d: %w", pageNum, err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		page.Text = text
		page.OCR = true
		filled++
	}

	f.logger.Debug("OCR fallback applied", "file", doc.Name, "blank_pages", len(blank), "filled", filled)

	if filled == 0 && len(failures) > 0 {
		return 0, fmt.Errorf("OCR with %s: %w", f.engine.Name(), errors.Join(failures...))
	}
	return filled, nil
}

func (f *Fallback) recognizePage(ctx context.Context, data []byte, pageNum int) (string, error) {
	images, err := f.images.PageImages(ctx, data, pageNum)
	if err != nil {
		return "", err
	}

	var texts []string
	for _, img := range images {
		input, err := Enhance(img.Data)
		if err != nil {
			// Formats imaging cannot decode go to the engine untouched
			f.logger.Debug("image enhancement skipped", "page", pageNum, "image", img.Name, "format", img.Format, "error", err)
			input = img.Data
		}

		text, err := f.engine.Recognize(ctx, input)
		if err != nil {
			return "", err
		}
		if t := strings.TrimSpace(text); t != "" {
			texts = append(texts, t)
		}
	}

	return strings.Join(texts, "\n"), nil
}
