package domain

import "time"

// User carries the per-user quota counter alongside basic identity.
// The counter fields are mutated only by the quota ledger.
type User struct {
	ID                 string     `gorm:"type:text;primaryKey" json:"id"`
	DisplayName        string     `gorm:"type:text" json:"display_name"`
	IsPremiumUnlimited bool       `gorm:"default:false" json:"is_premium_unlimited"`
	DailyAiUsageCount  int        `gorm:"default:0" json:"daily_ai_usage_count"`
	LastAiUsageDate    *time.Time `json:"last_ai_usage_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string {
	return "users"
}
