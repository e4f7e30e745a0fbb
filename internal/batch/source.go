package batch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/a3tai/invoice-extractor/internal/fetch"
	"github.com/a3tai/invoice-extractor/internal/pdf"
)

// Source is one input document. Load is called once, when the processor
// reaches the document.
type Source struct {
	Name string
	Load func(ctx context.Context) ([]byte, error)
}

// Fetcher downloads a PDF by URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Download, error)
}

// FileSource reads the document from path.
func FileSource(p string) Source {
	return Source{
		Name: filepath.Base(p),
		Load: func(ctx context.Context) ([]byte, error) {
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("cannot read file: %w", err)
			}
			return data, nil
		},
	}
}

// FileSources returns one source per path, in order.
func FileSources(paths []string) []Source {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, FileSource(p))
	}
	return sources
}

// BytesSource wraps an in-memory document such as an uploaded file.
func BytesSource(name string, data []byte) Source {
	return Source{
		Name: name,
		Load: func(context.Context) ([]byte, error) {
			return data, nil
		},
	}
}

// ErrorSource is a document that failed before processing started. It
// surfaces as a warning in the result.
func ErrorSource(name string, err error) Source {
	return Source{
		Name: name,
		Load: func(context.Context) ([]byte, error) {
			return nil, err
		},
	}
}

// URLSource downloads the document with f when loaded.
func URLSource(f Fetcher, rawURL string) Source {
	return Source{
		Name: urlName(rawURL),
		Load: func(ctx context.Context) ([]byte, error) {
			d, err := f.Fetch(ctx, rawURL)
			if err != nil {
				return nil, err
			}
			return d.Data, nil
		},
	}
}

// URLSources returns one source per URL, in order.
func URLSources(f Fetcher, urls []string) []Source {
	sources := make([]Source, 0, len(urls))
	for _, u := range urls {
		sources = append(sources, URLSource(f, u))
	}
	return sources
}

// DirectorySources lists the PDFs under dir whose name matches query,
// sorted by path.
func DirectorySources(search *pdf.Search, dir, query string) ([]Source, error) {
	files, err := search.FindPDFs(dir, query, 0)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return FileSources(paths), nil
}

func urlName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return fetch.DefaultName
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}
