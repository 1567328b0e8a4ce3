package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/repository"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/scrape"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/search"
)

// memItems mimics the repository's one-shot finalize semantics in memory.
type memItems struct {
	items         map[string]*domain.Item
	finalized     map[string]*repository.EnrichmentResult
	finalizeCalls int
}

func newMemItems(items ...*domain.Item) *memItems {
	m := &memItems{
		items:     map[string]*domain.Item{},
		finalized: map[string]*repository.EnrichmentResult{},
	}
	for _, item := range items {
		m.items[item.ID] = item
	}
	return m
}

func (m *memItems) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	copied := *item
	return &copied, nil
}

func (m *memItems) Finalize(ctx context.Context, id string, res *repository.EnrichmentResult) error {
	m.finalizeCalls++
	item, ok := m.items[id]
	if !ok || item.EnrichStatus != domain.EnrichmentStatusPending {
		return nil
	}
	item.EnrichStatus = res.Status
	m.finalized[id] = res
	return nil
}

type memFailures struct {
	entries []*domain.EnrichmentFailure
}

func (m *memFailures) Append(ctx context.Context, entry *domain.EnrichmentFailure) error {
	m.entries = append(m.entries, entry)
	return nil
}

type fakeQuota struct {
	allow bool
	calls int
}

func (f *fakeQuota) CheckAndConsume(ctx context.Context, userID string) bool {
	f.calls++
	return f.allow
}

type fakeFetcher struct {
	page       *scrape.PageData
	pageErr    error
	imgData    []byte
	imgErr     error
	fetchCalls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (*scrape.PageData, error) {
	f.fetchCalls++
	return f.page, f.pageErr
}

func (f *fakeFetcher) DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	return f.imgData, "image/jpeg", f.imgErr
}

type fakePreview struct {
	og  *scrape.OpenGraphData
	err error
}

func (f *fakePreview) Extract(ctx context.Context, pageURL string) (*scrape.OpenGraphData, error) {
	return f.og, f.err
}

type fakeSearch struct {
	web    *search.WebResult
	webErr error
	img    string
}

func (f *fakeSearch) Search(ctx context.Context, query string) (*search.WebResult, error) {
	return f.web, f.webErr
}

func (f *fakeSearch) SearchImage(ctx context.Context, query string) (string, error) {
	return f.img, nil
}

type fakeAnalyzer struct {
	imageRec   *ProductRecord
	textRec    *ProductRecord
	imageErr   error
	textErr    error
	panics     bool
	gotContext []string
}

func (f *fakeAnalyzer) AnalyzeImage(ctx context.Context, imageData []byte, format, language string) (*ProductRecord, error) {
	if f.panics {
		panic("analyzer exploded")
	}
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	rec := *f.imageRec
	return &rec, nil
}

func (f *fakeAnalyzer) AnalyzeText(ctx context.Context, input string, contextLines []string, queryHint, language string) (*ProductRecord, error) {
	if f.panics {
		panic("analyzer exploded")
	}
	f.gotContext = contextLines
	if f.textErr != nil {
		return nil, f.textErr
	}
	rec := *f.textRec
	return &rec, nil
}

type fakeProber struct {
	ok map[string]bool
}

func (f *fakeProber) Accessible(ctx context.Context, imageURL string) bool {
	return f.ok[imageURL]
}

type fakePersist struct {
	url string
}

func (f *fakePersist) Persist(ctx context.Context, data []byte, filename, title string) string {
	return f.url
}

type fakeRelayer struct {
	url  string
	data []byte
}

func (f *fakeRelayer) Relay(ctx context.Context, item *domain.Item) (string, []byte) {
	return f.url, f.data
}

func widgetRecord() *ProductRecord {
	return &ProductRecord{
		Name:         "Widget X",
		Price:        "199",
		Currency:     "USD",
		ShoppingLink: "https://shop.test/widget-x",
		ImageURL:     "https://cdn.test/w.jpg",
	}
}

func newTestEnricher(items *memItems, failures *memFailures, quota *fakeQuota, fetcher *fakeFetcher, preview *fakePreview, searcher *fakeSearch, analyzer *fakeAnalyzer, prober *fakeProber) *Enricher {
	return NewEnricher(EnricherDeps{
		Items:     items,
		Failures:  failures,
		Quota:     quota,
		Fetcher:   fetcher,
		Preview:   preview,
		Matcher:   scrape.NewMatcher(nil),
		Search:    searcher,
		Analyzer:  analyzer,
		Prober:    prober,
		Persister: &fakePersist{},
		Relayer:   &fakeRelayer{},
		Log:       quotaTestLogger(),
	})
}

func pendingURLItem(input string) *domain.Item {
	return &domain.Item{
		ID:           "item-1",
		WishlistID:   "wl-1",
		SourceKind:   domain.SourceKindURL,
		SourceInput:  input,
		EnrichStatus: domain.EnrichmentStatusPending,
	}
}

// URL input whose fetch fails, with search and AI resolving the product.
func TestEnrichURLCompletesThroughSearchFallback(t *testing.T) {
	items := newMemItems(pendingURLItem("https://example-shop.test/item/123"))
	failures := &memFailures{}
	analyzer := &fakeAnalyzer{textRec: widgetRecord()}
	e := newTestEnricher(
		items,
		failures,
		&fakeQuota{allow: true},
		&fakeFetcher{pageErr: errors.New("connection refused"), imgErr: errors.New("no download")},
		&fakePreview{err: errors.New("timeout")},
		&fakeSearch{web: &search.WebResult{Title: "Widget X - Example Shop", Snippet: "The best widget.", Link: "https://example-shop.test/item/123"}},
		analyzer,
		&fakeProber{ok: map[string]bool{"https://cdn.test/w.jpg": true}},
	)

	e.Enrich(context.Background(), "item-1", "u1")

	res := items.finalized["item-1"]
	if res == nil {
		t.Fatal("item was not finalized")
	}
	if res.Status != domain.EnrichmentStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", res.Status)
	}
	if res.Name != "Widget X" || res.Price != "199" || res.Currency != "USD" {
		t.Errorf("record = %+v", res)
	}
	if res.ImageURL != "https://cdn.test/w.jpg" {
		t.Errorf("imageURL = %q, want probed model image", res.ImageURL)
	}
	if len(analyzer.gotContext) == 0 {
		t.Error("analyzer should have received search context")
	}
	if len(failures.entries) != 0 {
		t.Errorf("failure log has %d entries, want 0", len(failures.entries))
	}
}

// Identical input, quota denied: Traditional Mode, SKIPPED.
func TestEnrichQuotaDenialEndsInTraditionalMode(t *testing.T) {
	items := newMemItems(pendingURLItem("https://example-shop.test/item/123"))
	quota := &fakeQuota{allow: false}
	e := newTestEnricher(
		items,
		&memFailures{},
		quota,
		&fakeFetcher{pageErr: errors.New("connection refused")},
		&fakePreview{err: errors.New("timeout")},
		&fakeSearch{web: &search.WebResult{Title: "Widget X - Example Shop"}},
		&fakeAnalyzer{textRec: widgetRecord()},
		&fakeProber{},
	)

	e.Enrich(context.Background(), "item-1", "u1")

	res := items.finalized["item-1"]
	if res == nil {
		t.Fatal("item was not finalized")
	}
	if res.Status != domain.EnrichmentStatusSkipped {
		t.Fatalf("status = %s, want SKIPPED", res.Status)
	}
	if !strings.HasPrefix(res.ImageURL, "https://placehold.co/") {
		t.Errorf("imageURL = %q, want generated placeholder", res.ImageURL)
	}
	if res.Description == "" {
		t.Error("explanatory note missing")
	}
	if res.Name == "" {
		t.Error("traditional mode should still set a name")
	}
}

// An uploaded photo already relayed to durable storage is kept on quota
// denial; the placeholder only covers items with no image at all.
func TestEnrichQuotaDenialKeepsRelayedUpload(t *testing.T) {
	item := &domain.Item{
		ID:             "item-1",
		WishlistID:     "wl-1",
		SourceKind:     domain.SourceKindImage,
		SourceInput:    "photo.png",
		LocalImagePath: "/tmp/uploads/photo.png",
		EnrichStatus:   domain.EnrichmentStatusPending,
		UploadStatus:   domain.UploadStatusPending,
	}
	items := newMemItems(item)
	quota := &fakeQuota{allow: false}
	e := NewEnricher(EnricherDeps{
		Items:     items,
		Failures:  &memFailures{},
		Quota:     quota,
		Fetcher:   &fakeFetcher{},
		Preview:   &fakePreview{},
		Matcher:   scrape.NewMatcher(nil),
		Search:    &fakeSearch{},
		Analyzer:  &fakeAnalyzer{},
		Prober:    &fakeProber{},
		Persister: &fakePersist{},
		Relayer:   &fakeRelayer{url: "https://bucket.test/uploads/photo.png", data: []byte{1, 2, 3}},
		Log:       quotaTestLogger(),
	})

	e.Enrich(context.Background(), "item-1", "u1")

	res := items.finalized["item-1"]
	if res == nil || res.Status != domain.EnrichmentStatusSkipped {
		t.Fatalf("finalized = %+v, want SKIPPED", res)
	}
	if res.ImageURL != "https://bucket.test/uploads/photo.png" {
		t.Errorf("imageURL = %q, want the relayed upload kept over a placeholder", res.ImageURL)
	}
}

// Fetch fails, no pattern matches, and the AI fallback also fails: FAILED
// with exactly one failure log entry.
func TestEnrichExhaustedChainFailsWithOneLogEntry(t *testing.T) {
	input := "https://example-shop.test/item/123"
	items := newMemItems(pendingURLItem(input))
	failures := &memFailures{}
	e := newTestEnricher(
		items,
		failures,
		&fakeQuota{allow: true},
		&fakeFetcher{pageErr: errors.New("connection refused")},
		&fakePreview{err: errors.New("timeout")},
		&fakeSearch{webErr: errors.New("search down")},
		&fakeAnalyzer{textErr: errors.New("model unavailable")},
		&fakeProber{},
	)

	e.Enrich(context.Background(), "item-1", "u1")

	res := items.finalized["item-1"]
	if res == nil || res.Status != domain.EnrichmentStatusFailed {
		t.Fatalf("finalized = %+v, want FAILED", res)
	}
	if res.ErrorMessage == "" {
		t.Error("enrichmentError should be populated")
	}
	if len(failures.entries) != 1 {
		t.Fatalf("failure log has %d entries, want exactly 1", len(failures.entries))
	}
	if failures.entries[0].SourceInput != input {
		t.Errorf("failure entry input = %q, want original input", failures.entries[0].SourceInput)
	}
}

func TestEnrichFreeTextGetsNoContext(t *testing.T) {
	item := &domain.Item{
		ID:           "item-1",
		SourceKind:   domain.SourceKindText,
		SourceInput:  "red espresso machine",
		EnrichStatus: domain.EnrichmentStatusPending,
	}
	items := newMemItems(item)
	analyzer := &fakeAnalyzer{textRec: widgetRecord()}
	fetcher := &fakeFetcher{imgErr: errors.New("no download")}
	e := newTestEnricher(items, &memFailures{}, &fakeQuota{allow: true}, fetcher, &fakePreview{}, &fakeSearch{}, analyzer, &fakeProber{ok: map[string]bool{"https://cdn.test/w.jpg": true}})

	e.Enrich(context.Background(), "item-1", "u1")

	if res := items.finalized["item-1"]; res == nil || res.Status != domain.EnrichmentStatusCompleted {
		t.Fatalf("finalized = %+v, want COMPLETED", res)
	}
	if analyzer.gotContext != nil {
		t.Error("free-text branch must not pass context to the analyzer")
	}
	if fetcher.fetchCalls != 0 {
		t.Error("free-text branch must not fetch pages")
	}
}

func TestEnrichPreemptDomainSkipsDirectFetch(t *testing.T) {
	items := newMemItems(pendingURLItem("https://shopee.tw/product-i.1234.5678"))
	fetcher := &fakeFetcher{page: &scrape.PageData{Title: "should not be used"}, imgErr: errors.New("no download")}
	e := newTestEnricher(items, &memFailures{}, &fakeQuota{allow: true}, fetcher, &fakePreview{}, &fakeSearch{}, &fakeAnalyzer{textRec: widgetRecord()}, &fakeProber{ok: map[string]bool{"https://cdn.test/w.jpg": true}})

	e.Enrich(context.Background(), "item-1", "u1")

	if fetcher.fetchCalls != 0 {
		t.Errorf("direct fetch called %d times for a preempted domain, want 0", fetcher.fetchCalls)
	}
	if res := items.finalized["item-1"]; res == nil || res.Status != domain.EnrichmentStatusCompleted {
		t.Fatalf("finalized = %+v, want COMPLETED", res)
	}
}

func TestEnrichVanishedItemIsNoOp(t *testing.T) {
	items := newMemItems()
	e := newTestEnricher(items, &memFailures{}, &fakeQuota{allow: true}, &fakeFetcher{}, &fakePreview{}, &fakeSearch{}, &fakeAnalyzer{}, &fakeProber{})

	e.Enrich(context.Background(), "ghost", "u1")

	if items.finalizeCalls != 0 {
		t.Error("vanished item must not be finalized")
	}
}

func TestEnrichPanicStillReachesTerminalStatus(t *testing.T) {
	item := &domain.Item{
		ID:           "item-1",
		SourceKind:   domain.SourceKindText,
		SourceInput:  "anything",
		EnrichStatus: domain.EnrichmentStatusPending,
	}
	items := newMemItems(item)
	e := newTestEnricher(items, &memFailures{}, &fakeQuota{allow: true}, &fakeFetcher{}, &fakePreview{}, &fakeSearch{}, &fakeAnalyzer{panics: true}, &fakeProber{})

	e.Enrich(context.Background(), "item-1", "u1")

	res := items.finalized["item-1"]
	if res == nil || res.Status != domain.EnrichmentStatusFailed {
		t.Fatalf("finalized = %+v, want FAILED after panic", res)
	}
}

func TestEnrichAlreadyTerminalItemIsSkipped(t *testing.T) {
	item := &domain.Item{
		ID:           "item-1",
		SourceKind:   domain.SourceKindText,
		SourceInput:  "anything",
		EnrichStatus: domain.EnrichmentStatusCompleted,
	}
	items := newMemItems(item)
	quota := &fakeQuota{allow: true}
	e := newTestEnricher(items, &memFailures{}, quota, &fakeFetcher{}, &fakePreview{}, &fakeSearch{}, &fakeAnalyzer{textRec: widgetRecord()}, &fakeProber{})

	e.Enrich(context.Background(), "item-1", "u1")

	if items.finalizeCalls != 0 {
		t.Error("terminal item must not be re-finalized")
	}
	if quota.calls != 0 {
		t.Error("terminal item must not consume quota")
	}
}
