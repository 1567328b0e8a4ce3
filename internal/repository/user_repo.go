package repository

import (
	"context"
	"time"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
	"gorm.io/gorm"
)

// UserRepository handles user persistence, including quota counter fields.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user record.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// UpdateQuotaUsage writes the quota counter fields. Only the ledger calls this.
func (r *UserRepository) UpdateQuotaUsage(ctx context.Context, id string, count int, usedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"daily_ai_usage_count": count,
			"last_ai_usage_date":   usedAt,
		}).Error
}
