package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractSuccessNeedsTitleAndImage(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		wantSuccess bool
	}{
		{
			name: "both present",
			body: `<html><head>
				<meta property="og:title" content="Widget X">
				<meta property="og:image" content="https://cdn.test/w.jpg">
				<meta property="og:site_name" content="Example Shop">
				<meta property="product:price:amount" content="199">
			</head></html>`,
			wantSuccess: true,
		},
		{
			name:        "title only",
			body:        `<html><head><meta property="og:title" content="Widget X"></head></html>`,
			wantSuccess: false,
		},
		{
			name:        "image only",
			body:        `<html><head><meta property="og:image" content="https://cdn.test/w.jpg"></head></html>`,
			wantSuccess: false,
		},
		{
			name:        "nothing",
			body:        `<html><head><title>ignored, not og</title></head></html>`,
			wantSuccess: false,
		},
	}

	e := NewPreviewExtractor(2 * time.Second)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			data, err := e.Extract(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if data.Success != tc.wantSuccess {
				t.Errorf("Success = %v, want %v", data.Success, tc.wantSuccess)
			}
		})
	}
}

func TestExtractReadsPriceHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
			<meta property="og:title" content="Widget X">
			<meta property="og:image" content="https://cdn.test/w.jpg">
			<meta property="product:price:amount" content="199">
		</head></html>`))
	}))
	defer srv.Close()

	data, err := NewPreviewExtractor(2 * time.Second).Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if data.PriceHint != "199" {
		t.Errorf("PriceHint = %q, want 199", data.PriceHint)
	}
}

func TestExtractBoundsRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	if _, err := NewPreviewExtractor(2 * time.Second).Extract(context.Background(), srv.URL); err == nil {
		t.Error("expected error on unbounded redirect chain")
	}
}
