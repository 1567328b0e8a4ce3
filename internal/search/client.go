package search

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
)

// WebResult is the top web hit for a query.
type WebResult struct {
	Title   string
	Snippet string
	Link    string
}

// AccessChecker confirms an image candidate is actually fetchable before the
// client hands it out.
type AccessChecker interface {
	Accessible(ctx context.Context, imageURL string) bool
}

// Client wraps a Serper-compatible search API in web and image modes.
// Missing credentials make every call a soft failure: the pipeline proceeds
// without search context rather than erroring.
type Client struct {
	http    *resty.Client
	apiKey  string
	baseURL string
	prober  AccessChecker
	log     *logger.Logger
}

// Config holds search client configuration.
type Config struct {
	BaseURL string
	APIKey  string
}

// NewClient creates a search client. prober may not be nil when image mode
// is used.
func NewClient(cfg *Config, prober AccessChecker, log *logger.Logger) *Client {
	httpClient := resty.New()
	httpClient.SetTimeout(10 * time.Second)
	httpClient.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetHeader("X-API-KEY", cfg.APIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://google.serper.dev"
	}

	return &Client{
		http:    httpClient,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		prober:  prober,
		log:     log,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type searchRequest struct {
	Query string `json:"q"`
}

type webResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic"`
}

type imageResponse struct {
	Images []struct {
		Title    string `json:"title"`
		ImageURL string `json:"imageUrl"`
		Link     string `json:"link"`
	} `json:"images"`
}

// Search returns the top web result for the query, or nil when the API is
// unconfigured, errors, or finds nothing.
func (c *Client) Search(ctx context.Context, query string) (*WebResult, error) {
	if !c.Configured() {
		return nil, nil
	}

	var resp webResponse
	httpResp, err := c.http.R().
		SetContext(ctx).
		SetBody(searchRequest{Query: query}).
		SetResult(&resp).
		Post(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("search API call failed: %w", err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return nil, fmt.Errorf("search API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Organic) == 0 {
		return nil, nil
	}
	top := resp.Organic[0]
	return &WebResult{Title: top.Title, Snippet: top.Snippet, Link: top.Link}, nil
}

// SearchImage returns the first ranked image candidate that passes the
// accessibility probe, or "" when none do.
func (c *Client) SearchImage(ctx context.Context, query string) (string, error) {
	if !c.Configured() {
		return "", nil
	}

	var resp imageResponse
	httpResp, err := c.http.R().
		SetContext(ctx).
		SetBody(searchRequest{Query: query}).
		SetResult(&resp).
		Post(c.baseURL + "/images")
	if err != nil {
		return "", fmt.Errorf("image search API call failed: %w", err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return "", fmt.Errorf("image search API error: status %d", httpResp.StatusCode())
	}

	for _, candidate := range resp.Images {
		if candidate.ImageURL == "" {
			continue
		}
		if c.prober != nil && !c.prober.Accessible(ctx, candidate.ImageURL) {
			continue
		}
		return candidate.ImageURL, nil
	}
	return "", nil
}
