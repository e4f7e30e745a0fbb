package ocr

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// Enhance prepares a scanned page for recognition: upright orientation,
// grayscale, stronger contrast and a light sharpen. The result is PNG.
func Enhance(image []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(image), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
