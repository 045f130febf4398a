package models

import (
	"time"
)

// RawCanonicalLink records that a raw snapshot contributed to a canonical
// product, and which content hash it carried when it did.
// Table: raw_canonical_links
// Unique by (canonical_product_id, source_type, raw_record_key); reprocessing
// the same snapshot upserts in place rather than stacking rows. Comparing the
// stored hash against the raw record's current hash answers whether the
// product needs reprocessing for that record.
type RawCanonicalLink struct {
	ID                 uint    `gorm:"primaryKey" json:"id"`
	CanonicalProductID uint    `gorm:"not null;uniqueIndex:uk_raw_canonical_links_triple;index:idx_raw_canonical_links_product" json:"canonical_product_id"`
	SourceType         ASPName `gorm:"size:32;not null;uniqueIndex:uk_raw_canonical_links_triple" json:"source_type"`
	RawRecordKey       string  `gorm:"size:255;not null;uniqueIndex:uk_raw_canonical_links_triple" json:"raw_record_key"`

	ContentHashAtProcessing string `gorm:"size:64;not null" json:"content_hash_at_processing"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	CanonicalProduct *CanonicalProduct `gorm:"foreignKey:CanonicalProductID" json:"canonical_product,omitempty"`
}

func (RawCanonicalLink) TableName() string { return "raw_canonical_links" }

// RawCanonicalLinkFilter represents filter criteria for link queries
type RawCanonicalLinkFilter struct {
	ID                 *uint
	CanonicalProductID *uint
	SourceType         *ASPName
	RawRecordKey       *string
	CreatedAfter       *time.Time
	CreatedBefore      *time.Time
}
