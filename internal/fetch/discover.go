package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Discover downloads an HTML page and returns the absolute URLs of the PDF
// documents it links to, in page order without duplicates.
func (c *Client) Discover(ctx context.Context, pageURL string) ([]string, error) {
	d, err := c.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return Links(d)
}

// Links returns the PDF links of an already downloaded HTML page.
func Links(d *Download) ([]string, error) {
	base, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", d.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(d.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", d.URL, err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		u, err := base.Parse(href)
		if err != nil {
			return
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		if !strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
			return
		}

		u.Fragment = ""
		link := u.String()
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	return links, nil
}
