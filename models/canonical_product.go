// Package models contains domain entities and business models for the catalog system
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ProductStatus represents the lifecycle state of a canonical product
type ProductStatus string

const (
	ProductStatusActive ProductStatus = "active"
	// ProductStatusMerged marks a product folded into another one. The row
	// survives so old links keep resolving; MergedIntoID points at the
	// survivor and the id is never reused.
	ProductStatusMerged ProductStatus = "merged"
)

func (s ProductStatus) String() string { return string(s) }

// Valid checks if the product status is one of the allowed states
func (s ProductStatus) Valid() bool {
	switch s {
	case ProductStatusActive, ProductStatusMerged:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ProductStatus
func (s *ProductStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ProductStatus(v)
	case []byte:
		*s = ProductStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ProductStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ProductStatus
func (s ProductStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ProductStatus: %s", s)
	}
	return string(s), nil
}

// LocalizedTitles holds per-language titles keyed by BCP 47 language tag
type LocalizedTitles map[string]string

// Value implements the driver.Valuer interface for LocalizedTitles
func (t LocalizedTitles) Value() (driver.Value, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for LocalizedTitles
func (t *LocalizedTitles) Scan(value any) error {
	if value == nil {
		*t = LocalizedTitles{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into LocalizedTitles", value)
	}

	return json.Unmarshal(bytes, t)
}

// CanonicalProduct is the deduplicated identity of one physical release
// across all source sites.
// Table: canonical_products
// Unique by normalized_product_id; the uniqueness constraint is what turns
// concurrent creates for the same release into a retryable conflict.
type CanonicalProduct struct {
	ID                  uint   `gorm:"primaryKey" json:"id"`
	NormalizedProductID string `gorm:"size:255;not null;uniqueIndex:uk_canonical_products_normalized_id" json:"normalized_product_id"`

	Title           *string         `gorm:"size:1024" json:"title,omitempty"`
	LocalizedTitles LocalizedTitles `gorm:"type:jsonb;default:'{}'" json:"localized_titles"`
	Description     *string         `gorm:"type:text" json:"description,omitempty"`
	ReleaseDate     *time.Time      `gorm:"index:idx_canonical_products_release_date" json:"release_date,omitempty"`
	DurationMinutes *uint           `json:"duration_minutes,omitempty"`
	MakerName       *string         `gorm:"size:255" json:"maker_name,omitempty"`
	ThumbnailURL    *string         `gorm:"size:1024" json:"thumbnail_url,omitempty"`
	SampleImageURLs pq.StringArray  `gorm:"type:text[]" json:"sample_image_urls,omitempty"`

	Status       ProductStatus `gorm:"size:16;not null;default:'active';index:idx_canonical_products_status" json:"status"`
	MergedIntoID *uint         `json:"merged_into_id,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_canonical_products_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Sources    []ProductSource `gorm:"foreignKey:CanonicalProductID" json:"sources,omitempty"`
	Performers []Performer     `gorm:"many2many:product_performers" json:"performers,omitempty"`
	Tags       []Tag           `gorm:"many2many:product_tags" json:"tags,omitempty"`
}

func (CanonicalProduct) TableName() string { return "canonical_products" }

// IsMerged returns true if this product was folded into another one
func (p *CanonicalProduct) IsMerged() bool {
	return p.Status == ProductStatusMerged
}

// CanonicalProductFilter represents filter criteria for canonical product queries
type CanonicalProductFilter struct {
	ID                  *uint
	NormalizedProductID *string
	Status              *ProductStatus
	MakerName           *string
	TitleContains       *string
	ReleasedAfter       *time.Time
	ReleasedBefore      *time.Time
	CreatedAfter        *time.Time
	CreatedBefore       *time.Time
}
