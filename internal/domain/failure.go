package domain

import "time"

// EnrichmentFailure is an append-only diagnostic record written when every
// fallback in an enrichment run is exhausted. Entries are never updated or
// deleted by the pipeline.
type EnrichmentFailure struct {
	ID           string    `gorm:"type:text;primaryKey" json:"id"`
	UserID       string    `gorm:"type:text;index:idx_failures_user" json:"user_id"`
	SourceInput  string    `gorm:"type:text" json:"source_input"`
	ErrorMessage string    `gorm:"type:text" json:"error_message"`
	DebugDetail  string    `gorm:"type:text" json:"debug_detail"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for EnrichmentFailure.
func (EnrichmentFailure) TableName() string {
	return "enrichment_failures"
}
