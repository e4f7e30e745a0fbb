package pdf

import "strings"

// Page is the plain text of a single PDF page
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	OCR    bool   `json:"ocr"` // text came from OCR rather than the text layer
}

// Document is the extracted text of one PDF, page by page
type Document struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Pages []Page `json:"pages"`
}

// Texts returns the page texts in page order.
func (d *Document) Texts() []string {
	texts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		texts[i] = p.Text
	}
	return texts
}

// BlankPages returns the numbers of pages without any text.
func (d *Document) BlankPages() []int {
	var blank []int
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) == "" {
			blank = append(blank, p.Number)
		}
	}
	return blank
}

// OCRApplied reports whether any page text came from OCR.
func (d *Document) OCRApplied() bool {
	for _, p := range d.Pages {
		if p.OCR {
			return true
		}
	}
	return false
}

// FileInfo represents information about a PDF file on disk
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// ValidationResult represents the result of a PDF validation
type ValidationResult struct {
	Name    string `json:"name"`
	Valid   bool   `json:"valid"`
	Size    int64  `json:"size"`
	Message string `json:"message,omitempty"`
}

// Info holds structural facts about a PDF reported by pdfcpu
type Info struct {
	Pages     int    `json:"pages"`
	Version   string `json:"version"`
	Encrypted bool   `json:"encrypted"`
}

// PageImage is a raster image embedded in a page, typically a scan
type PageImage struct {
	Page   int    `json:"page"`
	Name   string `json:"name"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"-"`
}
