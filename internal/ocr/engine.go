// Package ocr recognizes text in scanned invoice pages. It is only used for
// pages whose PDF text layer is empty.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Engine names accepted in configuration
const (
	EngineNone      = "none"
	EngineTesseract = "tesseract"
	EngineAzure     = "azure"
)

// DefaultLanguage is the Tesseract language code used when none is set.
const DefaultLanguage = "eng"

var (
	ErrUnknownEngine = errors.New("unknown OCR engine")
	ErrUnavailable   = errors.New("OCR engine not available in this build")
)

// Engine turns an image into text
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Settings selects and configures an engine
type Settings struct {
	Engine        string
	Language      string
	AzureEndpoint string
	AzureKey      string
}

// Engines lists the accepted engine names.
func Engines() []string {
	return []string{EngineNone, EngineTesseract, EngineAzure}
}

// New builds the engine named in s. It returns a nil Engine for "none".
func New(s Settings) (Engine, error) {
	language := s.Language
	if language == "" {
		language = DefaultLanguage
	}

	switch strings.ToLower(strings.TrimSpace(s.Engine)) {
	case "", EngineNone:
		return nil, nil
	case EngineTesseract:
		return newTesseract(language)
	case EngineAzure:
		azure, err := NewAzure(s.AzureEndpoint, s.AzureKey, language)
		if err != nil {
			return nil, err
		}
		return azure, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownEngine, s.Engine, strings.Join(Engines(), ", "))
	}
}
