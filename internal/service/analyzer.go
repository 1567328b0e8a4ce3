package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/config"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/prompts"
)

// UnknownProductLabel prefixes names the model could not support with
// evidence. The prompt enforces it; the degraded parse path reuses it.
const UnknownProductLabel = "Unknown product"

// ProductRecord is the structured outcome of one analysis call.
type ProductRecord struct {
	Name         string
	Price        string
	Currency     string
	Tags         []string
	ShoppingLink string
	Description  string
	ImageURL     string
}

// Analyzer calls a generative model through an OpenAI-compatible
// chat-completions endpoint and parses its JSON reply.
type Analyzer struct {
	client   *resty.Client
	model    string
	apiKey   string
	endpoint string
	log      *logger.Logger
}

// NewAnalyzer creates an analyzer from AI configuration.
func NewAnalyzer(cfg *config.AIConfig, log *logger.Logger) *Analyzer {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &Analyzer{
		client:   client,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		endpoint: baseURL + "/chat/completions",
		log:      log,
	}
}

// OpenAI-compatible chat completion request/response structures.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string, or []interface{} for user messages with images
}

type chatTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatImageContent struct {
	Type     string       `json:"type"`
	ImageURL chatImageURL `json:"image_url"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// AnalyzeImage runs the image variant: raw bytes in, structured record out.
// A parse failure is a hard failure of this attempt; there is no retry.
func (a *Analyzer) AnalyzeImage(ctx context.Context, imageData []byte, format, language string) (*ProductRecord, error) {
	base64Image := base64.StdEncoding.EncodeToString(imageData)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeTypeFor(format), base64Image)

	req := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: prompts.AnalysisSystemPrompt,
			},
			{
				Role: "user",
				Content: []interface{}{
					chatTextContent{
						Type: "text",
						Text: prompts.BuildImagePrompt(language),
					},
					chatImageContent{
						Type: "image_url",
						ImageURL: chatImageURL{
							URL:    dataURL,
							Detail: "auto",
						},
					},
				},
			},
		},
		MaxTokens: 500,
	}

	content, err := a.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	record, err := parseRecord(content)
	if err != nil {
		return nil, fmt.Errorf("unparseable model output: %w", err)
	}
	a.finish(record, "")
	return record, nil
}

// AnalyzeText runs the text/URL variant. contextLines carry ephemeral search
// or page-metadata evidence; queryHint suggests a search query when no
// context is available. Unparseable output degrades to a best-effort record
// built from the input rather than failing the attempt.
func (a *Analyzer) AnalyzeText(ctx context.Context, input string, contextLines []string, queryHint, language string) (*ProductRecord, error) {
	req := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: prompts.AnalysisSystemPrompt,
			},
			{
				Role:    "user",
				Content: prompts.BuildTextPrompt(input, contextLines, queryHint, language),
			},
		},
		MaxTokens: 500,
	}

	content, err := a.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	record, err := parseRecord(content)
	if err != nil {
		a.log.WithError(err).Warn("Model output unparseable, degrading to best-effort record")
		return degradedRecord(input), nil
	}
	a.finish(record, input)
	return record, nil
}

// complete posts the request and returns the first choice's content.
func (a *Analyzer) complete(ctx context.Context, req chatRequest) (string, error) {
	var resp chatResponse
	httpResp, err := a.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(a.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call AI API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", fmt.Errorf("AI API returned error: %s", errorMsg)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("AI API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in AI response (status %d)", httpResp.StatusCode())
	}
	return resp.Choices[0].Message.Content, nil
}

// finish normalizes a parsed record: guarantees a name and a usable
// shopping link.
func (a *Analyzer) finish(record *ProductRecord, fallbackInput string) {
	record.Name = strings.TrimSpace(record.Name)
	if record.Name == "" {
		if fallbackInput != "" {
			record.Name = UnknownProductLabel + ": " + truncate(fallbackInput, 80)
		} else {
			record.Name = UnknownProductLabel
		}
	}
	if !usableLink(record.ShoppingLink) {
		record.ShoppingLink = SynthesizeShoppingLink(record.Name)
	}
}

// flexString tolerates the model returning a JSON number where a string is
// expected, e.g. "price": 199.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type recordPayload struct {
	Name         string     `json:"name"`
	Price        flexString `json:"price"`
	Currency     string     `json:"currency"`
	Tags         []string   `json:"tags"`
	ShoppingLink string     `json:"shoppingLink"`
	Description  string     `json:"description"`
	ImageURL     string     `json:"imageUrl"`
}

// parseRecord extracts the JSON object from model output, tolerating fenced
// code blocks and surrounding prose.
func parseRecord(content string) (*ProductRecord, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in output")
	}

	var payload recordPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	return &ProductRecord{
		Name:         payload.Name,
		Price:        string(payload.Price),
		Currency:     payload.Currency,
		Tags:         payload.Tags,
		ShoppingLink: payload.ShoppingLink,
		Description:  payload.Description,
		ImageURL:     payload.ImageURL,
	}, nil
}

// degradedRecord is the best-effort fallback when the model's output cannot
// be parsed: the original input becomes the name and the link is synthesized.
func degradedRecord(input string) *ProductRecord {
	name := truncate(strings.TrimSpace(input), 120)
	if name == "" {
		name = UnknownProductLabel
	}
	return &ProductRecord{
		Name:         name,
		ShoppingLink: SynthesizeShoppingLink(name),
	}
}

// SynthesizeShoppingLink builds a deterministic shopping-search URL from a
// product name.
func SynthesizeShoppingLink(name string) string {
	return "https://www.google.com/search?tbm=shop&q=" + url.QueryEscape(name)
}

func usableLink(link string) bool {
	link = strings.TrimSpace(link)
	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func mimeTypeFor(format string) string {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
