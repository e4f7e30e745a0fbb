package pdf

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/a3tai/invoice-extractor/internal/testhelpers"
)

func TestNewReader(t *testing.T) {
	tests := []struct {
		name        string
		maxFileSize int64
	}{
		{name: "standard max file size", maxFileSize: 25 * 1024 * 1024},
		{name: "small max file size", maxFileSize: 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewReader(tt.maxFileSize)
			if got.validator.MaxFileSize() != tt.maxFileSize {
				t.Errorf("NewReader() maxFileSize = %v, want %v", got.validator.MaxFileSize(), tt.maxFileSize)
			}
			if got.maxTextSize != 10*1024*1024 {
				t.Errorf("NewReader() maxTextSize = %v, want %v", got.maxTextSize, 10*1024*1024)
			}
		})
	}
}

func TestReader_Extract(t *testing.T) {
	reader := NewReader(1024 * 1024)
	ctx := context.Background()

	twoPages := testhelpers.BuildPDF(
		[]string{"Reference: 1301-2200-77", "Amount Due: CAD 99.10"},
		[]string{"Duties = $12.00"},
	)

	tests := []struct {
		name      string
		data      []byte
		wantErr   error
		wantPages int
		check     func(t *testing.T, doc *Document)
	}{
		{
			name:      "two page invoice",
			data:      twoPages,
			wantPages: 2,
			check: func(t *testing.T, doc *Document) {
				if !strings.Contains(doc.Pages[0].Text, "Reference: 1301-2200-77") {
					t.Errorf("page 1 text = %q, missing reference", doc.Pages[0].Text)
				}
				if !strings.Contains(doc.Pages[1].Text, "Duties = $12.00") {
					t.Errorf("page 2 text = %q, missing duties", doc.Pages[1].Text)
				}
				if strings.Contains(doc.Pages[0].Text, "Duties") {
					t.Errorf("page 1 text leaked page 2 content: %q", doc.Pages[0].Text)
				}
				if doc.Pages[1].Number != 2 {
					t.Errorf("page number = %d, want 2", doc.Pages[1].Number)
				}
			},
		},
		{
			name:      "page without text",
			data:      testhelpers.BuildPDF([]string{}),
			wantPages: 1,
			check: func(t *testing.T, doc *Document) {
				if got := doc.BlankPages(); len(got) != 1 || got[0] != 1 {
					t.Errorf("BlankPages() = %v, want [1]", got)
				}
			},
		},
		{
			name:    "empty data",
			data:    nil,
			wantErr: ErrEmpty,
		},
		{
			name:    "not a pdf",
			data:    []byte("<html>nope</html>"),
			wantErr: ErrNotPDF,
		},
		{
			name:    "truncated pdf",
			data:    []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog"),
			wantErr: ErrCorrupt,
		},
		{
			name:    "too large",
			data:    append([]byte("%PDF-1.4\n"), make([]byte, 1024*1024)...),
			wantErr: ErrTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := reader.Extract(ctx, "invoice.pdf", tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Extract() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract() unexpected error: %v", err)
			}
			if len(doc.Pages) != tt.wantPages {
				t.Fatalf("Extract() pages = %d, want %d", len(doc.Pages), tt.wantPages)
			}
			if doc.Name != "invoice.pdf" {
				t.Errorf("Extract() name = %q", doc.Name)
			}
			if tt.check != nil {
				tt.check(t, doc)
			}
		})
	}
}

func TestReader_ExtractCancelled(t *testing.T) {
	reader := NewReader(1024 * 1024)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reader.Extract(ctx, "invoice.pdf", testhelpers.BuildPDF([]string{"x"}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want context.Canceled", err)
	}
}

func TestReader_TextBudget(t *testing.T) {
	reader := NewReader(1024 * 1024)
	reader.maxTextSize = 10

	doc, err := reader.Extract(context.Background(), "long.pdf", testhelpers.BuildPDF(
		[]string{"0123456789ABCDEF"},
		[]string{"more text"},
	))
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	total := 0
	for _, p := range doc.Pages {
		total += len(p.Text)
	}
	if total > 10 {
		t.Errorf("total text = %d bytes, want at most 10", total)
	}
	if len(doc.Pages) != 2 {
		t.Errorf("pages = %d, want 2", len(doc.Pages))
	}
}

func TestDocument_Texts(t *testing.T) {
	doc := &Document{Pages: []Page{
		{Number: 1, Text: "first"},
		{Number: 2, Text: "  \n"},
		{Number: 3, Text: "third", OCR: true},
	}}

	texts := doc.Texts()
	if len(texts) != 3 || texts[0] != "first" || texts[2] != "third" {
		t.Errorf("Texts() = %q", texts)
	}
	if blank := doc.BlankPages(); len(blank) != 1 || blank[0] != 2 {
		t.Errorf("BlankPages() = %v, want [2]", blank)
	}
	if !doc.OCRApplied() {
		t.Error("OCRApplied() = false, want true")
	}
}

func TestReader_ExtractPositionedLines(t *testing.T) {
	reader := NewReader(1024 * 1024)

	doc, err := reader.Extract(context.Background(), "positioned.pdf", testhelpers.BuildPositionedPDF(
		[]string{
			"Reference: 13-5550001",
			"Shipper: Maple Logistics Inc",
			"Gross Weight: 812.4 KG",
			"Amount Due:\tCAD 1,180.25",
		},
	))
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	want := "Reference: 13-5550001\n" +
		"Shipper: Maple Logistics Inc\n" +
		"Gross Weight: 812.4 KG\n" +
		"Amount Due: CAD 1,180.25\n"
	if doc.Pages[0].Text != want {
		t.Errorf("page text = %q, want %q", doc.Pages[0].Text, want)
	}
}
