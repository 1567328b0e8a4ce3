package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/repository"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/worker"
)

type memCreator struct {
	created     []*domain.Item
	finalized   map[string]*repository.EnrichmentResult
	finalizeCtx context.Context
}

func (m *memCreator) Create(ctx context.Context, item *domain.Item) error {
	m.created = append(m.created, item)
	return nil
}

func (m *memCreator) Finalize(ctx context.Context, id string, res *repository.EnrichmentResult) error {
	if m.finalized == nil {
		m.finalized = map[string]*repository.EnrichmentResult{}
	}
	m.finalized[id] = res
	m.finalizeCtx = ctx
	return nil
}

type memWishlists struct {
	lists map[string]*domain.Wishlist
}

func (m *memWishlists) GetByID(ctx context.Context, id string) (*domain.Wishlist, error) {
	wl, ok := m.lists[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return wl, nil
}

type recordingEnricher struct {
	mu   sync.Mutex
	runs []string
}

func (r *recordingEnricher) Enrich(ctx context.Context, itemID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, itemID+"/"+userID)
}

// inlineScheduler runs tasks synchronously so tests can assert on effects.
type inlineScheduler struct {
	accept bool
}

func (s *inlineScheduler) Submit(task worker.Task) bool {
	if !s.accept {
		return false
	}
	task(context.Background())
	return true
}

func newTestIngest(t *testing.T, creator *memCreator, enricher *recordingEnricher, sched scheduler) *IngestService {
	t.Helper()
	wishlists := &memWishlists{lists: map[string]*domain.Wishlist{
		"wl-1": {ID: "wl-1", UserID: "u1", Title: "Birthday"},
	}}
	return NewIngestService(creator, wishlists, enricher, sched, t.TempDir(), quotaTestLogger())
}

func TestCreateFromTextClassifiesURL(t *testing.T) {
	creator := &memCreator{}
	enricher := &recordingEnricher{}
	svc := newTestIngest(t, creator, enricher, &inlineScheduler{accept: true})

	item, err := svc.CreateFromText(context.Background(), "wl-1", "u1", "https://example.com/p/1", "en")
	if err != nil {
		t.Fatalf("CreateFromText: %v", err)
	}
	if item.SourceKind != domain.SourceKindURL {
		t.Errorf("kind = %s, want url", item.SourceKind)
	}
	if item.Link != "https://example.com/p/1" {
		t.Errorf("link = %q", item.Link)
	}
	if item.EnrichStatus != domain.EnrichmentStatusPending {
		t.Errorf("status = %s, want PENDING", item.EnrichStatus)
	}
	if len(enricher.runs) != 1 || enricher.runs[0] != item.ID+"/u1" {
		t.Errorf("enrichment runs = %v", enricher.runs)
	}
}

func TestCreateFromTextClassifiesFreeText(t *testing.T) {
	creator := &memCreator{}
	svc := newTestIngest(t, creator, &recordingEnricher{}, &inlineScheduler{accept: true})

	item, err := svc.CreateFromText(context.Background(), "wl-1", "u1", "red espresso machine", "en")
	if err != nil {
		t.Fatalf("CreateFromText: %v", err)
	}
	if item.SourceKind != domain.SourceKindText || item.Link != "" {
		t.Errorf("item = %+v, want free-text classification", item)
	}
}

func TestCreateFromTextRejectsForeignWishlist(t *testing.T) {
	svc := newTestIngest(t, &memCreator{}, &recordingEnricher{}, &inlineScheduler{accept: true})
	if _, err := svc.CreateFromText(context.Background(), "wl-1", "intruder", "x", "en"); err == nil {
		t.Error("foreign wishlist should be rejected")
	}
}

func TestCreateFromImageStagesFileAndSchedules(t *testing.T) {
	creator := &memCreator{}
	enricher := &recordingEnricher{}
	svc := newTestIngest(t, creator, enricher, &inlineScheduler{accept: true})

	item, err := svc.CreateFromImage(context.Background(), "wl-1", "u1", pngBytes(t), "photo.png", "en")
	if err != nil {
		t.Fatalf("CreateFromImage: %v", err)
	}
	if item.SourceKind != domain.SourceKindImage {
		t.Errorf("kind = %s, want image", item.SourceKind)
	}
	if item.LocalImagePath == "" {
		t.Error("ephemeral copy path missing")
	}
	if item.UploadStatus != domain.UploadStatusPending {
		t.Errorf("upload status = %s, want PENDING", item.UploadStatus)
	}
	if len(enricher.runs) != 1 {
		t.Errorf("enrichment runs = %v", enricher.runs)
	}
}

func TestCreateFromImageRejectsNonImage(t *testing.T) {
	svc := newTestIngest(t, &memCreator{}, &recordingEnricher{}, &inlineScheduler{accept: true})
	if _, err := svc.CreateFromImage(context.Background(), "wl-1", "u1", []byte("plain text"), "a.txt", "en"); err == nil {
		t.Error("non-image upload should be rejected")
	}
}

func TestRejectedScheduleFinalizesItem(t *testing.T) {
	creator := &memCreator{}
	svc := newTestIngest(t, creator, &recordingEnricher{}, &inlineScheduler{accept: false})

	// A client that fires the request and disconnects cancels the request
	// context; the terminal write must not be lost with it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	item, err := svc.CreateFromText(ctx, "wl-1", "u1", "anything", "en")
	if err != nil {
		t.Fatalf("CreateFromText: %v", err)
	}
	res := creator.finalized[item.ID]
	if res == nil || res.Status != domain.EnrichmentStatusFailed {
		t.Fatalf("finalized = %+v, want FAILED so the item never sticks in PENDING", res)
	}
	if creator.finalizeCtx.Err() != nil {
		t.Error("terminal write ran on the cancelled request context")
	}
}
