//go:build tesseract

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract runs the local Tesseract library through cgo
type Tesseract struct {
	language string
}

func newTesseract(language string) (Engine, error) {
	return &Tesseract{language: language}, nil
}

// Name returns the engine name.
func (t *Tesseract) Name() string {
	return EngineTesseract
}

// Recognize runs Tesseract over a single image. A client is created per
// call since gosseract clients are not safe for concurrent use.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("tesseract: set language %s: %w", t.language, err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("tesseract: load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}
