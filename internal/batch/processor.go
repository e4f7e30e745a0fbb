// Package batch runs the per-file extraction pipeline over a list of
// invoices: load, text layer, OCR fallback, label parsing.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a3tai/invoice-extractor/internal/invoice"
	"github.com/a3tai/invoice-extractor/internal/ocr"
	"github.com/a3tai/invoice-extractor/internal/pdf"
)

// Warning reports a file that produced no record
type Warning struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Message == "" {
		return fmt.Sprintf("Nothing extracted from %s", w.File)
	}
	return fmt.Sprintf("Nothing extracted from %s: %s", w.File, w.Message)
}

// Result holds the records of a run in input order
type Result struct {
	Records  []*invoice.Record `json:"records"`
	Warnings []Warning         `json:"warnings"`
	Total    int               `json:"total"`
}

// Empty reports whether no file produced a record.
func (r *Result) Empty() bool {
	return len(r.Records) == 0
}

// ProgressFunc is called before each file with its 1-based index.
type ProgressFunc func(index, total int, name string)

// TextExtractor extracts the text layer of a PDF
type TextExtractor interface {
	Extract(ctx context.Context, name string, data []byte) (*pdf.Document, error)
}

// Processor runs the pipeline one file at a time
type Processor struct {
	reader   TextExtractor
	parser   *invoice.Parser
	ocr      *ocr.Fallback
	logger   *slog.Logger
	progress ProgressFunc
}

// Option configures a Processor
type Option func(*Processor)

// WithOCR enables the OCR fallback for pages without a text layer.
func WithOCR(f *ocr.Fallback) Option {
	return func(p *Processor) {
		p.ocr = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Processor) {
		p.progress = fn
	}
}

// NewProcessor creates a processor.
func NewProcessor(reader TextExtractor, parser *invoice.Parser, opts ...Option) *Processor {
	p := &Processor{
		reader: reader,
		parser: parser,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes sources in order. A failing file becomes a warning and is
// skipped. Cancelling ctx stops the run between files; the partial result
// is returned together with the context error.
func (p *Processor) Run(ctx context.Context, sources []Source) (*Result, error) {
	result := &Result{
		Records:  make([]*invoice.Record, 0, len(sources)),
		Warnings: []Warning{},
		Total:    len(sources),
	}

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("extraction cancelled", "processed", i, "total", len(sources))
			return result, err
		}

		if p.progress != nil {
			p.progress(i+1, len(sources), src.Name)
		}

		record, err := p.process(ctx, src)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			p.logger.Warn("nothing extracted", "file", src.Name, "error", err)
			result.Warnings = append(result.Warnings, Warning{File: src.Name, Message: err.Error()})
			continue
		}

		if missing := record.Missing(); len(missing) > 0 {
			p.logger.Debug("fields not found", "file", src.Name, "fields", fieldNames(missing))
		}
		result.Records = append(result.Records, record)
	}

	p.logger.Info("extraction finished",
		"files", len(sources),
		"records", len(result.Records),
		"warnings", len(result.Warnings))

	return result, nil
}

// Process runs the pipeline for a single source.
func (p *Processor) Process(ctx context.Context, src Source) (*invoice.Record, error) {
	return p.process(ctx, src)
}

func (p *Processor) process(ctx context.Context, src Source) (record *invoice.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = nil
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	if src.Load == nil {
		return nil, fmt.Errorf("no data")
	}
	data, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := p.reader.Extract(ctx, src.Name, data)
	if err != nil {
		return nil, err
	}

	if p.ocr != nil {
		filled, err := p.ocr.Apply(ctx, doc, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// The text layer may still carry the fields
			p.logger.Warn("OCR fallback failed", "file", src.Name, "error", err)
		} else if filled > 0 {
			p.logger.Info("OCR fallback used", "file", src.Name, "pages", filled, "engine", p.ocr.Engine())
		}
	}

	return p.parser.Parse(invoice.Input{
		Filename: src.Name,
		Pages:    doc.Texts(),
		OCR:      doc.OCRApplied(),
	})
}

func fieldNames(fields []invoice.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Header()
	}
	return strings.Join(names, ",")
}
