package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// Azure sends page images to the Azure Computer Vision OCR endpoint
type Azure struct {
	client   computervision.BaseClient
	language computervision.OcrLanguages
}

// NewAzure creates an Azure Computer Vision engine. language is a Tesseract
// style code such as "eng" and is mapped to the service's language codes.
func NewAzure(endpoint, key, language string) (*Azure, error) {
	if endpoint == "" || key == "" {
		return nil, fmt.Errorf("azure OCR requires both an endpoint and a key")
	}

	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(key)

	return &Azure{
		client:   client,
		language: azureLanguage(language),
	}, nil
}

// Name returns the engine name.
func (a *Azure) Name() string {
	return EngineAzure
}

// Recognize sends image to the service and joins the recognized lines.
func (a *Azure) Recognize(ctx context.Context, image []byte) (string, error) {
	result, err := a.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(image)),
		a.language,
	)
	if err != nil {
		return "", fmt.Errorf("azure OCR: %w", err)
	}

	return resultText(result), nil
}

// resultText flattens regions into one line of text per OCR line
func resultText(result computervision.OcrResult) string {
	if result.Regions == nil {
		return ""
	}

	var b strings.Builder
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			if len(words) == 0 {
				continue
			}
			b.WriteString(strings.Join(words, " "))
			b.WriteString("\n")
		}
	}
	return b.String()
}

var azureLanguages = map[string]computervision.OcrLanguages{
	"eng":     computervision.OcrLanguagesEn,
	"fra":     computervision.OcrLanguagesFr,
	"deu":     computervision.OcrLanguagesDe,
	"spa":     computervision.OcrLanguagesEs,
	"ita":     computervision.OcrLanguagesIt,
	"por":     computervision.OcrLanguagesPt,
	"nld":     computervision.OcrLanguagesNl,
	"chi_sim": computervision.OcrLanguagesZhHans,
	"chi_tra": computervision.OcrLanguagesZhHant,
	"jpn":     computervision.OcrLanguagesJa,
}

// azureLanguage maps a Tesseract language code to the service's code.
// Unmapped codes let the service detect the language.
func azureLanguage(code string) computervision.OcrLanguages {
	if lang, ok := azureLanguages[strings.ToLower(code)]; ok {
		return lang
	}
	return computervision.OcrLanguagesUnk
}
