package repository

import (
	"context"
	"time"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
	"gorm.io/gorm"
)

// ItemRepository handles wishlist item persistence.
type ItemRepository struct {
	db *gorm.DB
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a new item record.
func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// GetByID retrieves an item by its ID.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// EnrichmentResult carries the final fields committed together with a
// terminal status at the end of an enrichment run.
type EnrichmentResult struct {
	Status       domain.EnrichmentStatus
	Name         string
	Price        string
	Currency     string
	ResolvedLink string
	ImageURL     string
	Description  string
	Tags         domain.StringArray
	ErrorMessage string
}

// Finalize commits the terminal status and final fields for an item.
//
// The update is guarded on the row still being PENDING, which makes the
// PENDING -> terminal transition one-shot: re-applying a finalize for an
// already-terminal item, or for an item deleted mid-flight, affects zero
// rows and is treated as a no-op.
func (r *ItemRepository) Finalize(ctx context.Context, id string, res *EnrichmentResult) error {
	if !res.Status.Terminal() {
		return gorm.ErrInvalidData
	}

	updates := map[string]interface{}{
		"enrichment_status": res.Status,
	}
	if res.Name != "" {
		updates["name"] = res.Name
	}
	if res.Price != "" {
		updates["price"] = res.Price
	}
	if res.Currency != "" {
		updates["currency"] = res.Currency
	}
	if res.ResolvedLink != "" {
		updates["resolved_link"] = res.ResolvedLink
	}
	if res.ImageURL != "" {
		updates["image_url"] = res.ImageURL
	}
	if res.Description != "" {
		updates["description"] = res.Description
	}
	if len(res.Tags) > 0 {
		updates["tags"] = res.Tags
	}
	if res.ErrorMessage != "" {
		updates["enrichment_error"] = res.ErrorMessage
	}

	return r.db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("id = ? AND enrichment_status = ?", id, domain.EnrichmentStatusPending).
		Updates(updates).Error
}

// SetUploadStatus updates the durable-upload state for an image-origin item.
// An empty imageURL leaves the stored URL untouched. Affecting zero rows is
// not an error: the parent item may have been deleted mid-flight.
func (r *ItemRepository) SetUploadStatus(ctx context.Context, id string, status domain.UploadStatus, imageURL string) error {
	updates := map[string]interface{}{
		"upload_status": status,
	}
	if imageURL != "" {
		updates["image_url"] = imageURL
	}
	return r.db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListStalePending returns PENDING items older than the cutoff, oldest
// first. These are items whose enrichment task was lost, usually to an
// unclean shutdown.
func (r *ItemRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Item, error) {
	var items []domain.Item
	if err := r.db.WithContext(ctx).
		Where("enrichment_status = ? AND created_at < ?", domain.EnrichmentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListByWishlist returns a wishlist's items, newest first.
func (r *ItemRepository) ListByWishlist(ctx context.Context, wishlistID string, limit, offset int) ([]domain.Item, error) {
	var items []domain.Item
	if err := r.db.WithContext(ctx).
		Where("wishlist_id = ?", wishlistID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
