package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
	"gorm.io/gorm"
)

// FailureRepository appends enrichment failure log entries. The log is
// append-only; there are no update or delete operations.
type FailureRepository struct {
	db *gorm.DB
}

// NewFailureRepository creates a new FailureRepository.
func NewFailureRepository(db *gorm.DB) *FailureRepository {
	return &FailureRepository{db: db}
}

// Append writes one failure entry, assigning its ID when the caller left it
// empty. Every run's entry must land as its own row.
func (r *FailureRepository) Append(ctx context.Context, entry *domain.EnrichmentFailure) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// CountByUser returns the number of failure entries for a user.
func (r *FailureRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.EnrichmentFailure{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
