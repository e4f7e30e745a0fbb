package pdf

import "errors"

var (
	ErrEmpty    = errors.New("file is empty")
	ErrTooLarge = errors.New("file too large")
	ErrNotPDF   = errors.New("file is not a PDF")
	ErrCorrupt  = errors.New("PDF could not be parsed")
)
