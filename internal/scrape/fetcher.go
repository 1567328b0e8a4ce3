package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
)

// ErrSoftBlocked marks a fetch that returned a bot check, login wall, or
// access-denied page instead of real content. HTTP status is irrelevant:
// these pages are often served with 200.
var ErrSoftBlocked = errors.New("page served a bot check or login wall")

// ErrNoImage marks a successfully fetched page with no usable product image.
var ErrNoImage = errors.New("no image found on page")

// PageData is what a direct page fetch yields.
type PageData struct {
	Title       string
	Description string
	ImageURL    string
}

// userAgents is a pool of realistic browser identities rotated per request.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36 Edg/125.0.0.0",
}

// softBlockSignals are lowercase substrings that identify a blocked page by
// its title or body text.
var softBlockSignals = []string{
	"captcha",
	"are you a robot",
	"verify you are human",
	"access denied",
	"unusual traffic",
	"enable javascript and cookies",
	"sign in to continue",
	"log in to continue",
	"attention required",
	"request blocked",
}

// Fetcher performs direct product-page fetches with scraping heuristics.
type Fetcher struct {
	client  *http.Client
	log     *logger.Logger
	uaIndex atomic.Uint32
}

// NewFetcher creates a Fetcher with the given page-fetch timeout.
func NewFetcher(timeout time.Duration, log *logger.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// nextUserAgent rotates through the identity pool.
func (f *Fetcher) nextUserAgent() string {
	n := f.uaIndex.Add(1)
	return userAgents[int(n)%len(userAgents)]
}

// Fetch GETs the page and extracts title, description, and the best image
// URL. Soft blocks and pages without an image are deterministic failures.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*PageData, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("URL must be http or https")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh-TW;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := extractTitle(doc)
	if blocked(title, doc) {
		return nil, ErrSoftBlocked
	}

	data := &PageData{
		Title:       title,
		Description: findMetaContent(doc, "description", "og:description"),
		ImageURL:    extractBestImage(doc, base),
	}
	if data.ImageURL == "" {
		return nil, ErrNoImage
	}
	return data, nil
}

// DownloadImage fetches raw image bytes for persisting, capped at 10 MB.
func (f *Fetcher) DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.nextUserAgent())
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/jpeg,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("not an image: content type %q", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}
	return data, contentType, nil
}

// blocked inspects the page title and visible text for soft-block signals.
func blocked(title string, doc *html.Node) bool {
	lowered := strings.ToLower(title)
	for _, signal := range softBlockSignals {
		if strings.Contains(lowered, signal) {
			return true
		}
	}

	body := strings.ToLower(extractVisibleText(doc, 4096))
	for _, signal := range softBlockSignals {
		if strings.Contains(body, signal) {
			return true
		}
	}
	return false
}

// extractBestImage picks an image URL in priority order: og:image,
// twitter:image, link[rel=image_src], then the first <img> on the page.
// Relative candidates are resolved against the page origin.
func extractBestImage(doc *html.Node, base *url.URL) string {
	if img := findMetaContent(doc, "", "og:image", "og:image:url"); img != "" {
		return resolveRef(base, img)
	}
	if img := findMetaContent(doc, "twitter:image", "twitter:image"); img != "" {
		return resolveRef(base, img)
	}
	if img := findLinkHref(doc, "image_src"); img != "" {
		return resolveRef(base, img)
	}
	if img := findFirstImgSrc(doc); img != "" {
		return resolveRef(base, img)
	}
	return ""
}

func resolveRef(base *url.URL, ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}
