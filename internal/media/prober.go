package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// hotlinkDenylist lists image hosts that require session context and reject
// anonymous hotlinking. Candidates on these domains fail immediately with no
// network call.
var hotlinkDenylist = []string{
	"instagram.com",
	"cdninstagram.com",
	"fbcdn.net",
	"facebook.com",
	"fbsbx.com",
	"tiktokcdn.com",
	"pinimg.com",
}

// Prober validates that a candidate image URL is a live, fetchable image.
type Prober struct {
	client *http.Client
}

// NewProber creates a Prober with the given probe timeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{
		client: &http.Client{Timeout: timeout},
	}
}

// denylisted reports whether the URL's host is on the hotlink denylist.
func denylisted(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(parsed.Hostname())
	for _, blocked := range hotlinkDenylist {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

// Accessible reports whether the image URL serves an image. It issues a
// streamed GET and aborts as soon as the headers are checked; the body is
// never downloaded.
func (p *Prober) Accessible(ctx context.Context, imageURL string) bool {
	if imageURL == "" || denylisted(imageURL) {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/jpeg,*/*;q=0.8")
	req.Header.Set("Referer", fmt.Sprintf("%s://%s/", schemeOf(imageURL), hostOf(imageURL)))

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	// Headers are enough; drop the stream without reading the body.
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return false
	}
	return strings.HasPrefix(resp.Header.Get("Content-Type"), "image/")
}

func schemeOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" {
		return u.Scheme
	}
	return "https"
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.Host
	}
	return ""
}
