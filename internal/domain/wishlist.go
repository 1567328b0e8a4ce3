package domain

import "time"

// Wishlist groups items under an owner. CRUD and privacy rules live outside
// the enrichment core; the pipeline only needs the owning relationship.
type Wishlist struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	UserID    string    `gorm:"type:text;not null;index:idx_wishlists_user" json:"user_id"`
	Title     string    `gorm:"type:text" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Wishlist.
func (Wishlist) TableName() string {
	return "wishlists"
}
