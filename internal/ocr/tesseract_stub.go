//go:build !tesseract

package ocr

import "fmt"

// Tesseract needs cgo and libtesseract; build with -tags tesseract.
func newTesseract(string) (Engine, error) {
	return nil, fmt.Errorf("%w: %s (rebuild with -tags tesseract)", ErrUnavailable, EngineTesseract)
}
