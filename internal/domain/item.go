package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// EnrichmentStatus represents the lifecycle state of an item's enrichment run.
// An item is created PENDING and moves exactly once to a terminal state.
type EnrichmentStatus string

const (
	EnrichmentStatusPending   EnrichmentStatus = "PENDING"
	EnrichmentStatusCompleted EnrichmentStatus = "COMPLETED"
	EnrichmentStatusFailed    EnrichmentStatus = "FAILED"
	EnrichmentStatusSkipped   EnrichmentStatus = "SKIPPED"
)

// Terminal reports whether the status is a final outcome.
func (s EnrichmentStatus) Terminal() bool {
	switch s {
	case EnrichmentStatusCompleted, EnrichmentStatusFailed, EnrichmentStatusSkipped:
		return true
	}
	return false
}

// UploadStatus tracks the durable-image upload for image-origin items.
type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "PENDING"
	UploadStatusUploading UploadStatus = "UPLOADING"
	UploadStatusCompleted UploadStatus = "COMPLETED"
	UploadStatusFailed    UploadStatus = "FAILED"
)

// SourceKind classifies what the user originally supplied.
type SourceKind string

const (
	SourceKindImage SourceKind = "image"
	SourceKindURL   SourceKind = "url"
	SourceKindText  SourceKind = "text"
)

// StringArray stores string slices as JSON text in the database.
type StringArray []string

// Value implements driver.Valuer.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Item is a wish on a wishlist. It is created in PENDING by the ingestion
// entry point and mutated only by the enrichment pipeline afterwards.
type Item struct {
	ID             string           `gorm:"type:text;primaryKey" json:"id"`
	WishlistID     string           `gorm:"type:text;not null;index:idx_items_wishlist" json:"wishlist_id"`
	Name           string           `gorm:"type:text" json:"name"`
	Price          string           `gorm:"type:text" json:"price"`
	Currency       string           `gorm:"type:text" json:"currency"`
	Link           string           `gorm:"type:text" json:"link"`
	ResolvedLink   string           `gorm:"type:text" json:"resolved_link"`
	ImageURL       string           `gorm:"type:text" json:"image_url"`
	Description    string           `gorm:"type:text" json:"description"`
	Tags           StringArray      `gorm:"type:text" json:"tags"`
	SourceKind     SourceKind       `gorm:"type:text;not null" json:"source_kind"`
	SourceInput    string           `gorm:"type:text" json:"source_input"`
	LocalImagePath string           `gorm:"type:text" json:"-"`
	Language       string           `gorm:"type:text" json:"language,omitempty"`
	EnrichStatus   EnrichmentStatus `gorm:"column:enrichment_status;type:text;index:idx_items_status;default:PENDING" json:"enrichment_status"`
	EnrichError    *string          `gorm:"column:enrichment_error;type:text" json:"enrichment_error,omitempty"`
	UploadStatus   UploadStatus     `gorm:"type:text" json:"upload_status,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string {
	return "items"
}
