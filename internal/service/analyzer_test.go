package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/config"
)

// chatServer fakes an OpenAI-compatible endpoint returning the given content.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		body := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func testAnalyzer(baseURL string) *Analyzer {
	return NewAnalyzer(&config.AIConfig{
		Model:   "test-model",
		APIKey:  "k",
		BaseURL: baseURL,
	}, quotaTestLogger())
}

func TestParseRecordToleratesFencesAndNumericPrice(t *testing.T) {
	content := "Here is the result:\n```json\n" +
		`{"name":"Widget X","price":199,"currency":"USD","tags":["gadget"],"shoppingLink":"https://shop.test/w","description":"A widget.","imageUrl":"https://cdn.test/w.jpg"}` +
		"\n```\nHope that helps."

	record, err := parseRecord(content)
	if err != nil {
		t.Fatalf("parseRecord: %v", err)
	}
	if record.Name != "Widget X" {
		t.Errorf("name = %q", record.Name)
	}
	if record.Price != "199" {
		t.Errorf("price = %q, want numeric price coerced to string", record.Price)
	}
	if record.ImageURL != "https://cdn.test/w.jpg" {
		t.Errorf("imageUrl = %q", record.ImageURL)
	}
}

func TestParseRecordRejectsProse(t *testing.T) {
	if _, err := parseRecord("I could not identify the product, sorry."); err == nil {
		t.Error("prose without JSON should fail to parse")
	}
}

func TestAnalyzeTextDegradesOnUnparseableOutput(t *testing.T) {
	srv := chatServer(t, "Sorry, I cannot answer in the requested format.")
	defer srv.Close()

	record, err := testAnalyzer(srv.URL).AnalyzeText(context.Background(), "vintage camera strap", nil, "", "en")
	if err != nil {
		t.Fatalf("AnalyzeText should degrade, not fail: %v", err)
	}
	if record.Name != "vintage camera strap" {
		t.Errorf("degraded name = %q, want the original input", record.Name)
	}
	if !strings.Contains(record.ShoppingLink, "vintage+camera+strap") {
		t.Errorf("degraded link = %q, want synthesized search link", record.ShoppingLink)
	}
}

func TestAnalyzeImageParseFailureIsHard(t *testing.T) {
	srv := chatServer(t, "That looks like a nice product!")
	defer srv.Close()

	if _, err := testAnalyzer(srv.URL).AnalyzeImage(context.Background(), []byte("bytes"), "jpg", "en"); err == nil {
		t.Error("image variant should fail hard on unparseable output")
	}
}

func TestAnalyzeTextSynthesizesMissingLink(t *testing.T) {
	srv := chatServer(t, `{"name":"Widget X","price":"199","currency":"USD","shoppingLink":"n/a","description":"","tags":[]}`)
	defer srv.Close()

	record, err := testAnalyzer(srv.URL).AnalyzeText(context.Background(), "widget x", nil, "", "en")
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	if !strings.HasPrefix(record.ShoppingLink, "https://www.google.com/search?tbm=shop&q=") {
		t.Errorf("link = %q, want synthesized shopping-search link", record.ShoppingLink)
	}
}

func TestAnalyzeTextAPIErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	if _, err := testAnalyzer(srv.URL).AnalyzeText(context.Background(), "widget", nil, "", "en"); err == nil {
		t.Error("API error should surface as a failure of the attempt")
	}
}

func TestSynthesizeShoppingLinkEscapesQuery(t *testing.T) {
	link := SynthesizeShoppingLink(`Nintendo Switch 2 "Pro" edition`)
	if strings.ContainsAny(link, ` "`) {
		t.Errorf("link not escaped: %q", link)
	}
	if !strings.HasPrefix(link, "https://www.google.com/search?tbm=shop&q=") {
		t.Errorf("unexpected link shape: %q", link)
	}
}
