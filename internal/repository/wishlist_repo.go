package repository

import (
	"context"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
	"gorm.io/gorm"
)

// WishlistRepository handles wishlist persistence. The enrichment core only
// reads wishlists to validate item creation; full CRUD lives elsewhere.
type WishlistRepository struct {
	db *gorm.DB
}

// NewWishlistRepository creates a new WishlistRepository.
func NewWishlistRepository(db *gorm.DB) *WishlistRepository {
	return &WishlistRepository{db: db}
}

// GetByID retrieves a wishlist by ID.
func (r *WishlistRepository) GetByID(ctx context.Context, id string) (*domain.Wishlist, error) {
	var wl domain.Wishlist
	if err := r.db.WithContext(ctx).First(&wl, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &wl, nil
}

// Create inserts a new wishlist record.
func (r *WishlistRepository) Create(ctx context.Context, wl *domain.Wishlist) error {
	return r.db.WithContext(ctx).Create(wl).Error
}
