package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/logger"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/repository"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/worker"
)

// itemCreator covers item creation plus the finalize path used when a task
// cannot even be scheduled.
type itemCreator interface {
	Create(ctx context.Context, item *domain.Item) error
	Finalize(ctx context.Context, id string, res *repository.EnrichmentResult) error
}

// wishlistReader checks the parent wishlist exists.
type wishlistReader interface {
	GetByID(ctx context.Context, id string) (*domain.Wishlist, error)
}

// enrichRunner runs one item's enrichment to a terminal status.
type enrichRunner interface {
	Enrich(ctx context.Context, itemID, userID string)
}

// scheduler accepts fire-and-forget background work.
type scheduler interface {
	Submit(task worker.Task) bool
}

// IngestService is the entry point of the pipeline: it creates an item in
// PENDING and schedules its enrichment. Both operations return as soon as
// the task is scheduled; no downstream external call sits on this path.
type IngestService struct {
	items     itemCreator
	wishlists wishlistReader
	enricher  enrichRunner
	pool      scheduler
	uploadDir string
	log       *logger.Logger
}

// NewIngestService creates the ingestion entry point. uploadDir holds the
// ephemeral copies of uploaded images until the relayer moves them.
func NewIngestService(items itemCreator, wishlists wishlistReader, enricher enrichRunner, pool scheduler, uploadDir string, log *logger.Logger) *IngestService {
	return &IngestService{
		items:     items,
		wishlists: wishlists,
		enricher:  enricher,
		pool:      pool,
		uploadDir: uploadDir,
		log:       log,
	}
}

// CreateFromImage validates and stages an uploaded photo, creates the item
// in PENDING, and schedules enrichment.
func (s *IngestService) CreateFromImage(ctx context.Context, wishlistID, userID string, data []byte, filename, language string) (*domain.Item, error) {
	wishlist, err := s.wishlists.GetByID(ctx, wishlistID)
	if err != nil {
		return nil, fmt.Errorf("wishlist not found: %w", err)
	}
	if wishlist.UserID != userID {
		return nil, fmt.Errorf("wishlist does not belong to user")
	}

	format, err := ValidateImage(data)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare upload directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = "." + format
	}
	localPath := filepath.Join(s.uploadDir, uuid.New().String()+ext)
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to stage uploaded image: %w", err)
	}

	item := &domain.Item{
		ID:             uuid.New().String(),
		WishlistID:     wishlistID,
		SourceKind:     domain.SourceKindImage,
		SourceInput:    filename,
		LocalImagePath: localPath,
		Language:       language,
		EnrichStatus:   domain.EnrichmentStatusPending,
		UploadStatus:   domain.UploadStatusPending,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.schedule(item.ID, userID)
	return item, nil
}

// CreateFromText creates an item from a URL or free-text description. Input
// starting with http:// or https:// is classified as a URL.
func (s *IngestService) CreateFromText(ctx context.Context, wishlistID, userID, input, language string) (*domain.Item, error) {
	wishlist, err := s.wishlists.GetByID(ctx, wishlistID)
	if err != nil {
		return nil, fmt.Errorf("wishlist not found: %w", err)
	}
	if wishlist.UserID != userID {
		return nil, fmt.Errorf("wishlist does not belong to user")
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("input must not be empty")
	}

	kind := domain.SourceKindText
	link := ""
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		kind = domain.SourceKindURL
		link = input
	}

	item := &domain.Item{
		ID:           uuid.New().String(),
		WishlistID:   wishlistID,
		Link:         link,
		SourceKind:   kind,
		SourceInput:  input,
		Language:     language,
		EnrichStatus: domain.EnrichmentStatusPending,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.schedule(item.ID, userID)
	return item, nil
}

// schedule hands the item to the worker pool. A rejected submission still
// resolves the item to a terminal status so it never sticks in PENDING.
func (s *IngestService) schedule(itemID, userID string) {
	ok := s.pool.Submit(func(taskCtx context.Context) {
		s.enricher.Enrich(taskCtx, itemID, userID)
	})
	if ok {
		return
	}

	s.log.WithField(logger.FieldItemID, itemID).Error("Enrichment queue rejected task")
	// The request context may already be gone; this terminal write must
	// not be cancellable by the caller.
	if err := s.items.Finalize(context.Background(), itemID, &repository.EnrichmentResult{
		Status:       domain.EnrichmentStatusFailed,
		ErrorMessage: "enrichment queue is full",
	}); err != nil {
		s.log.WithField(logger.FieldItemID, itemID).WithError(err).Error("Failed to finalize unscheduled item")
	}
}
