package service

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/repository"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/scrape"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/search"
)

// traditionalModeNote explains a SKIPPED item to the user.
const traditionalModeNote = "Saved without AI enrichment: your daily AI quota is used up. The item keeps whatever you entered; details were not filled in automatically."

// itemStore is the slice of item persistence the orchestrator needs.
type itemStore interface {
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	Finalize(ctx context.Context, id string, res *repository.EnrichmentResult) error
}

// failureStore appends diagnostic entries for unrecoverable runs.
type failureStore interface {
	Append(ctx context.Context, entry *domain.EnrichmentFailure) error
}

// quotaGate rations AI calls.
type quotaGate interface {
	CheckAndConsume(ctx context.Context, userID string) bool
}

// pageFetcher performs direct page fetches and image downloads.
type pageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*scrape.PageData, error)
	DownloadImage(ctx context.Context, imageURL string) ([]byte, string, error)
}

// previewFetcher extracts Open Graph metadata.
type previewFetcher interface {
	Extract(ctx context.Context, pageURL string) (*scrape.OpenGraphData, error)
}

// webSearcher wraps the search API's web and image modes.
type webSearcher interface {
	Search(ctx context.Context, query string) (*search.WebResult, error)
	SearchImage(ctx context.Context, query string) (string, error)
}

// productAnalyzer is the AI analysis contract.
type productAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageData []byte, format, language string) (*ProductRecord, error)
	AnalyzeText(ctx context.Context, input string, contextLines []string, queryHint, language string) (*ProductRecord, error)
}

// imageProber validates candidate image URLs.
type imageProber interface {
	Accessible(ctx context.Context, imageURL string) bool
}

// imageRelayer moves uploaded bytes to the durable host.
type imageRelayer interface {
	Relay(ctx context.Context, item *domain.Item) (string, []byte)
}

// Enricher runs one item's enrichment to a terminal status. Each run is a
// single pass through one of four branches; the only retry anywhere is the
// one second-chance image search after the model refines a name.
type Enricher struct {
	items     itemStore
	failures  failureStore
	quota     quotaGate
	fetcher   pageFetcher
	preview   previewFetcher
	matcher   *scrape.Matcher
	search    webSearcher
	analyzer  productAnalyzer
	prober    imageProber
	persister imagePersister
	relayer   imageRelayer
	log       *logger.Logger
}

// EnricherDeps wires the orchestrator's collaborators.
type EnricherDeps struct {
	Items     itemStore
	Failures  failureStore
	Quota     quotaGate
	Fetcher   pageFetcher
	Preview   previewFetcher
	Matcher   *scrape.Matcher
	Search    webSearcher
	Analyzer  productAnalyzer
	Prober    imageProber
	Persister imagePersister
	Relayer   imageRelayer
	Log       *logger.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(deps EnricherDeps) *Enricher {
	return &Enricher{
		items:     deps.Items,
		failures:  deps.Failures,
		quota:     deps.Quota,
		fetcher:   deps.Fetcher,
		preview:   deps.Preview,
		matcher:   deps.Matcher,
		search:    deps.Search,
		analyzer:  deps.Analyzer,
		prober:    deps.Prober,
		persister: deps.Persister,
		relayer:   deps.Relayer,
		log:       deps.Log,
	}
}

// Enrich runs the full pipeline for one item. It never returns an error: the
// outcome is the item's terminal status, and a catch-all guarantees one is
// reached even on unexpected internal faults.
func (e *Enricher) Enrich(ctx context.Context, itemID, userID string) {
	log := e.log.WithFields(logger.Fields{
		logger.FieldItemID: itemID,
		logger.FieldUserID: userID,
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprintf("%v", r)).Error("Enrichment run panicked")
			e.finalize(ctx, itemID, &repository.EnrichmentResult{
				Status:       domain.EnrichmentStatusFailed,
				ErrorMessage: fmt.Sprintf("internal fault: %v", r),
			}, log)
		}
	}()

	item, err := e.items.GetByID(ctx, itemID)
	if err != nil {
		// The item may have been deleted between scheduling and execution.
		log.WithError(err).Warn("Item vanished before enrichment started")
		return
	}
	if item.EnrichStatus != domain.EnrichmentStatusPending {
		log.WithField(logger.FieldStatus, string(item.EnrichStatus)).Warn("Item already finalized, skipping run")
		return
	}

	switch item.SourceKind {
	case domain.SourceKindImage:
		e.enrichImage(ctx, item, userID, log)
	case domain.SourceKindURL:
		if e.matcher.PreemptsDirectFetch(item.SourceInput) {
			e.enrichKnownBlockedURL(ctx, item, userID, log)
		} else {
			e.enrichGenericURL(ctx, item, userID, log)
		}
	default:
		e.enrichFreeText(ctx, item, userID, log)
	}
}

// enrichImage: upload relay, then the AI image variant.
func (e *Enricher) enrichImage(ctx context.Context, item *domain.Item, userID string, log *logger.Logger) {
	log = log.WithField(logger.FieldStage, "image")

	imageURL, data := e.relayer.Relay(ctx, item)
	if data == nil {
		e.fail(ctx, item, userID, fmt.Errorf("uploaded image unreadable"), "relay could not read the ephemeral copy", log)
		return
	}

	if !e.quota.CheckAndConsume(ctx, userID) {
		e.traditional(ctx, item, "", imageURL, log)
		return
	}

	record, err := e.analyzer.AnalyzeImage(ctx, data, strings.TrimPrefix(path.Ext(item.LocalImagePath), "."), item.Language)
	if err != nil {
		e.fail(ctx, item, userID, err, "image analysis failed after upload relay", log)
		return
	}

	// The uploaded photo is the item's image; the model's suggestion is
	// only a fallback when the relay produced nothing.
	if imageURL == "" {
		imageURL = e.resolveImage(ctx, record, "")
	}
	e.complete(ctx, item, record, imageURL, log)
}

// enrichKnownBlockedURL: the storefront rejects our direct fetches, so go
// straight to pattern match and web search for context.
func (e *Enricher) enrichKnownBlockedURL(ctx context.Context, item *domain.Item, userID string, log *logger.Logger) {
	log = log.WithField(logger.FieldStage, "known-blocked-url")

	query := truncate(item.SourceInput, 200)
	if match, ok := e.matcher.Match(item.SourceInput); ok {
		query = match.Query
	}

	contextLines := e.searchContext(ctx, query, log)

	if !e.quota.CheckAndConsume(ctx, userID) {
		e.traditional(ctx, item, firstLine(contextLines), "", log)
		return
	}

	record, err := e.analyzer.AnalyzeText(ctx, item.SourceInput, contextLines, query, item.Language)
	if err != nil {
		e.fail(ctx, item, userID, err, "text analysis failed on search-routed storefront URL", log)
		return
	}

	imageURL := e.durable(ctx, e.resolveImage(ctx, record, ""), record.Name)
	e.complete(ctx, item, record, imageURL, log)
}

// enrichGenericURL: direct fetch first; on any fetch failure fall back to
// page metadata, then pattern match plus web search, then the text variant.
func (e *Enricher) enrichGenericURL(ctx context.Context, item *domain.Item, userID string, log *logger.Logger) {
	log = log.WithField(logger.FieldStage, "generic-url")

	page, fetchErr := e.fetcher.Fetch(ctx, item.SourceInput)
	if fetchErr == nil {
		data, _, err := e.fetcher.DownloadImage(ctx, page.ImageURL)
		if err == nil {
			e.enrichFromScrapedPage(ctx, item, userID, page, data, log)
			return
		}
		log.WithError(err).Info("Scraped image not downloadable, falling back")
	} else {
		log.WithError(fetchErr).Info("Direct fetch failed, falling back")
	}

	// Page metadata is cheaper than the search API; trust it only when both
	// title and image are declared.
	var contextLines []string
	var ogImage string
	if og, err := e.preview.Extract(ctx, item.SourceInput); err == nil && og.Success {
		contextLines = ogContext(og)
		ogImage = og.Image
	}

	query := truncate(item.SourceInput, 200)
	if match, ok := e.matcher.Match(item.SourceInput); ok {
		query = match.Query
	}
	if contextLines == nil {
		contextLines = e.searchContext(ctx, query, log)
	}

	if !e.quota.CheckAndConsume(ctx, userID) {
		e.traditional(ctx, item, firstLine(contextLines), "", log)
		return
	}

	record, err := e.analyzer.AnalyzeText(ctx, item.SourceInput, contextLines, query, item.Language)
	if err != nil {
		e.fail(ctx, item, userID, err, fmt.Sprintf("text fallback failed after fetch error: %v", fetchErr), log)
		return
	}

	resolved := ""
	if ogImage != "" && e.prober.Accessible(ctx, ogImage) {
		resolved = ogImage
	}
	imageURL := e.durable(ctx, e.resolveImage(ctx, record, resolved), record.Name)
	e.complete(ctx, item, record, imageURL, log)
}

// enrichFromScrapedPage: the direct fetch produced real content and a
// downloadable image, so persist it and run the image variant on the bytes.
func (e *Enricher) enrichFromScrapedPage(ctx context.Context, item *domain.Item, userID string, page *scrape.PageData, data []byte, log *logger.Logger) {
	imageURL := e.persister.Persist(ctx, data, path.Base(urlPath(page.ImageURL)), page.Title)
	if imageURL == "" {
		imageURL = page.ImageURL
	}

	if !e.quota.CheckAndConsume(ctx, userID) {
		e.traditional(ctx, item, page.Title, imageURL, log)
		return
	}

	record, err := e.analyzer.AnalyzeImage(ctx, data, strings.TrimPrefix(path.Ext(urlPath(page.ImageURL)), "."), item.Language)
	if err != nil {
		e.fail(ctx, item, userID, err, "image analysis failed on scraped page image", log)
		return
	}
	if record.Name == "" || strings.HasPrefix(record.Name, UnknownProductLabel) {
		// The page title identifies the product better than an unsure model.
		if page.Title != "" {
			record.Name = page.Title
			record.ShoppingLink = SynthesizeShoppingLink(record.Name)
		}
	}
	e.complete(ctx, item, record, imageURL, log)
}

// enrichFreeText: straight to the AI text variant, no scraping or metadata.
func (e *Enricher) enrichFreeText(ctx context.Context, item *domain.Item, userID string, log *logger.Logger) {
	log = log.WithField(logger.FieldStage, "free-text")

	if !e.quota.CheckAndConsume(ctx, userID) {
		e.traditional(ctx, item, "", "", log)
		return
	}

	record, err := e.analyzer.AnalyzeText(ctx, item.SourceInput, nil, "", item.Language)
	if err != nil {
		e.fail(ctx, item, userID, err, "text analysis failed on free-text input", log)
		return
	}

	imageURL := e.durable(ctx, e.resolveImage(ctx, record, ""), record.Name)
	e.complete(ctx, item, record, imageURL, log)
}

// searchContext runs the web search and formats the hit as context lines.
// Search failure is soft; the pipeline proceeds without context.
func (e *Enricher) searchContext(ctx context.Context, query string, log *logger.Logger) []string {
	result, err := e.search.Search(ctx, query)
	if err != nil {
		log.WithError(err).Warn("Web search failed, proceeding without context")
		return nil
	}
	if result == nil {
		return nil
	}
	return []string{
		"Title: " + result.Title,
		"Snippet: " + result.Snippet,
		"Link: " + result.Link,
	}
}

func ogContext(og *scrape.OpenGraphData) []string {
	lines := []string{
		"Title: " + og.Title,
		"Image: " + og.Image,
	}
	if og.Description != "" {
		lines = append(lines, "Description: "+og.Description)
	}
	if og.SiteName != "" {
		lines = append(lines, "Site: "+og.SiteName)
	}
	if og.PriceHint != "" {
		lines = append(lines, "Price: "+og.PriceHint)
	}
	return lines
}

// resolveImage picks the item's image. An already-resolved URL wins; next
// the model's suggestion if the probe confirms it; last, exactly one
// second-chance image search on the refined name.
func (e *Enricher) resolveImage(ctx context.Context, record *ProductRecord, resolved string) string {
	if resolved != "" {
		return resolved
	}
	if record.ImageURL != "" && e.prober.Accessible(ctx, record.ImageURL) {
		return record.ImageURL
	}
	if record.Name == "" || strings.HasPrefix(record.Name, UnknownProductLabel) {
		return ""
	}
	img, err := e.search.SearchImage(ctx, record.Name)
	if err != nil {
		return ""
	}
	return img
}

// durable re-hosts a remote image on the durable host, falling back to the
// remote URL when download or upload fails.
func (e *Enricher) durable(ctx context.Context, imageURL, title string) string {
	if imageURL == "" {
		return ""
	}
	data, _, err := e.fetcher.DownloadImage(ctx, imageURL)
	if err != nil {
		return imageURL
	}
	filename := path.Base(urlPath(imageURL))
	if path.Ext(filename) == "" {
		filename = "image.jpg"
	}
	if hosted := e.persister.Persist(ctx, data, filename, title); hosted != "" {
		return hosted
	}
	return imageURL
}

// complete commits a COMPLETED result from an analysis record.
func (e *Enricher) complete(ctx context.Context, item *domain.Item, record *ProductRecord, imageURL string, log *logger.Logger) {
	e.finalize(ctx, item.ID, &repository.EnrichmentResult{
		Status:       domain.EnrichmentStatusCompleted,
		Name:         record.Name,
		Price:        record.Price,
		Currency:     record.Currency,
		ResolvedLink: record.ShoppingLink,
		ImageURL:     imageURL,
		Description:  record.Description,
		Tags:         domain.StringArray(record.Tags),
	}, log)
}

// traditional commits the degraded AI-free outcome used on quota denial.
// It is a completed run, not a failure.
func (e *Enricher) traditional(ctx context.Context, item *domain.Item, bestTitle, imageURL string, log *logger.Logger) {
	name := strings.TrimSpace(bestTitle)
	if name == "" {
		name = truncate(strings.TrimSpace(item.SourceInput), 80)
	}
	if name == "" {
		name = "Saved wish"
	}
	if imageURL == "" {
		imageURL = placeholderImageURL(name)
	}

	log.WithField(logger.FieldStatus, string(domain.EnrichmentStatusSkipped)).Info("Quota denied, finishing in traditional mode")
	e.finalize(ctx, item.ID, &repository.EnrichmentResult{
		Status:      domain.EnrichmentStatusSkipped,
		Name:        name,
		ImageURL:    imageURL,
		Description: traditionalModeNote,
	}, log)
}

// fail writes exactly one failure log entry and commits FAILED.
func (e *Enricher) fail(ctx context.Context, item *domain.Item, userID string, cause error, debug string, log *logger.Logger) {
	log.WithError(cause).Error("Enrichment exhausted all fallbacks")

	entry := &domain.EnrichmentFailure{
		UserID:       userID,
		SourceInput:  truncate(item.SourceInput, 500),
		ErrorMessage: cause.Error(),
		DebugDetail:  debug,
	}
	if err := e.failures.Append(ctx, entry); err != nil {
		log.WithError(err).Error("Failure log append failed")
	}

	e.finalize(ctx, item.ID, &repository.EnrichmentResult{
		Status:       domain.EnrichmentStatusFailed,
		ErrorMessage: cause.Error(),
	}, log)
}

// finalize commits the terminal status. A write against a vanished or
// already-terminal item affects zero rows and is swallowed.
func (e *Enricher) finalize(ctx context.Context, itemID string, res *repository.EnrichmentResult, log *logger.Logger) {
	if err := e.items.Finalize(ctx, itemID, res); err != nil {
		log.WithError(err).Error("Terminal status write failed")
		return
	}
	log.WithField(logger.FieldStatus, string(res.Status)).Info("Enrichment finished")
}

// placeholderImageURL generates a deterministic placeholder for items
// finished without AI.
func placeholderImageURL(name string) string {
	label := truncate(name, 30)
	return "https://placehold.co/600x400?text=" + url.QueryEscape(label)
}

func urlPath(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return u.Path
	}
	return rawURL
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimPrefix(lines[0], "Title: ")
}
