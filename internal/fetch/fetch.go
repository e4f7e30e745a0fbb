// Package fetch downloads invoice PDFs over HTTP and discovers PDF links on
// HTML listing pages.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/a3tai/invoice-extractor/internal/pdf"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultMaxSize = 25 * 1024 * 1024

	// DefaultName is used when neither the response nor the URL names the file.
	DefaultName = "download.pdf"
)

var ErrStatus = errors.New("unexpected HTTP status")

// Download is the body of a fetched URL
type Download struct {
	URL         string
	Name        string
	ContentType string
	Data        []byte
}

// IsPDF reports whether the body is a PDF document.
func (d *Download) IsPDF() bool {
	if d.ContentType == "application/pdf" {
		return true
	}
	head := d.Data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

// IsHTML reports whether the body is an HTML page.
func (d *Download) IsHTML() bool {
	return d.ContentType == "text/html" || d.ContentType == "application/xhtml+xml"
}

// Client downloads documents with a size limit
type Client struct {
	http    *http.Client
	maxSize int64
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// WithMaxSize sets the largest accepted response body.
func WithMaxSize(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxSize = n
		}
	}
}

// NewClient creates a client with the default timeout and size limit.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get downloads rawURL whatever its content type.
func (c *Client) Get(ctx context.Context, rawURL string) (*Download, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf, text/html;q=0.9, */*;q=0.5")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s from %s", ErrStatus, resp.Status, u.Redacted())
	}

	if resp.ContentLength > c.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d bytes)", pdf.ErrTooLarge, resp.ContentLength, c.maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > c.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", pdf.ErrTooLarge, c.maxSize)
	}

	// Redirects change the URL that relative links resolve against
	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	return &Download{
		URL:         final.String(),
		Name:        fileName(resp.Header.Get("Content-Disposition"), final),
		ContentType: strings.ToLower(contentType),
		Data:        data,
	}, nil
}

// Fetch downloads rawURL and requires the body to be a PDF.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Download, error) {
	d, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !d.IsPDF() {
		return nil, fmt.Errorf("%w: %s returned %s", pdf.ErrNotPDF, rawURL, describe(d.ContentType))
	}
	return d, nil
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL %q: scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	return u, nil
}

// fileName prefers the Content-Disposition filename over the URL path
func fileName(disposition string, u *url.URL) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := path.Base(strings.ReplaceAll(params["filename"], `\`, "/")); name != "" && name != "." && name != "/" {
				return name
			}
		}
	}

	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return DefaultName
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

func describe(contentType string) string {
	if contentType == "" {
		return "an unknown content type"
	}
	return contentType
}
