package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html"
)

// previewUserAgent is a fixed, honest identity for metadata-only fetches.
const previewUserAgent = "WishlistBot/1.0 (+link-preview)"

// OpenGraphData holds the standard social-preview metadata of a page.
// Success is set only when both Title and Image are present: a partial hit
// is not trusted as ground truth for the AI analyzer.
type OpenGraphData struct {
	Title       string
	Description string
	Image       string
	SiteName    string
	PriceHint   string
	Success     bool
}

// PreviewExtractor fetches Open Graph metadata with a short timeout and
// bounded redirects.
type PreviewExtractor struct {
	client *http.Client
}

// NewPreviewExtractor creates an extractor with the given fetch timeout.
func NewPreviewExtractor(timeout time.Duration) *PreviewExtractor {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &PreviewExtractor{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
	}
}

// Extract fetches the page and parses its preview meta tags. A fetch or
// parse error yields (nil, err); a fetched page missing title or image
// yields data with Success=false.
func (e *PreviewExtractor) Extract(ctx context.Context, pageURL string) (*OpenGraphData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", previewUserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch preview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	data := &OpenGraphData{
		Title:       findMetaContent(doc, "", "og:title"),
		Description: findMetaContent(doc, "description", "og:description"),
		Image:       findMetaContent(doc, "", "og:image", "og:image:url"),
		SiteName:    findMetaContent(doc, "", "og:site_name"),
		PriceHint:   findMetaContent(doc, "", "product:price:amount", "og:price:amount"),
	}
	data.Success = data.Title != "" && data.Image != ""
	return data, nil
}
