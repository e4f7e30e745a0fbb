package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// pdfcpuConfig returns a relaxed configuration that never touches the
// user's pdfcpu config directory.
func pdfcpuConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Inspector reports structural facts about a PDF using pdfcpu
type Inspector struct{}

// NewInspector creates a new pdfcpu backed inspector
func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect reads the cross reference table and page tree of data.
func (i *Inspector) Inspect(data []byte) (*Info, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), pdfcpuConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	info := &Info{
		Pages:     ctx.PageCount,
		Encrypted: ctx.Encrypt != nil,
	}
	if ctx.HeaderVersion != nil {
		info.Version = ctx.HeaderVersion.String()
	}

	return info, nil
}

// ImageSource pulls the embedded raster images out of PDF pages. Scanned
// invoices carry one full page image per page.
type ImageSource struct {
	maxImagesPerPage int
}

// NewImageSource creates an image source that keeps at most maxImagesPerPage
// images for each page (0 means no limit).
func NewImageSource(maxImagesPerPage int) *ImageSource {
	return &ImageSource{maxImagesPerPage: maxImagesPerPage}
}

// PageImages returns the images embedded in the given page (1-based).
func (s *ImageSource) PageImages(ctx context.Context, data []byte, page int) ([]PageImage, error) {
	var images []PageImage

	digest := func(img model.Image, _ bool, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.maxImagesPerPage > 0 && len(images) >= s.maxImagesPerPage {
			return nil
		}

		b, err := io.ReadAll(img)
		if err != nil {
			return fmt.Errorf("failed to read image %s: %w", img.Name, err)
		}

		images = append(images, PageImage{
			Page:   img.PageNr,
			Name:   img.Name,
			Format: img.FileType,
			Width:  img.Width,
			Height: img.Height,
			Data:   b,
		})
		return nil
	}

	selected := []string{strconv.Itoa(page)}
	if err := api.ExtractImages(bytes.NewReader(data), selected, digest, pdfcpuConfig()); err != nil {
		return nil, fmt.Errorf("failed to extract images from page %d: %w", page, err)
	}

	return images, nil
}
