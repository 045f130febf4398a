package models

import (
	"time"

	"github.com/hikarudo/uwabami/utils"
	"gorm.io/gorm"
)

// RawRecord is the latest fetched snapshot of one listing on one source site.
// Table: raw_records
// Unique by (source, source_product_id); re-fetches overwrite in place.
// Body holds the payload inline; large payloads live in the object store and
// BodyRef carries the object key instead. Exactly one of the two is set.
// ProcessedAt is nil while the snapshot still needs a processing pass.
type RawRecord struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	Source          ASPName `gorm:"size:32;not null;uniqueIndex:uk_raw_records_source_product;index:idx_raw_records_source" json:"source"`
	SourceProductID string  `gorm:"size:255;not null;uniqueIndex:uk_raw_records_source_product" json:"source_product_id"`
	URL             *string `gorm:"size:1024" json:"url,omitempty"`

	Body        []byte  `gorm:"type:bytea" json:"-"`
	BodyRef     *string `gorm:"size:1024" json:"body_ref,omitempty"`
	ContentHash string  `gorm:"size:64;not null;index:idx_raw_records_content_hash" json:"content_hash"`

	FetchedAt   time.Time  `gorm:"not null;index:idx_raw_records_fetched_at" json:"fetched_at"`
	ProcessedAt *time.Time `gorm:"index:idx_raw_records_processed_at" json:"processed_at,omitempty"`
	// ProcessNote records why processing set this record aside (bad code,
	// parse failure). Cleared whenever new content arrives.
	ProcessNote *string `gorm:"size:512" json:"process_note,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (RawRecord) TableName() string { return "raw_records" }

func (r *RawRecord) BeforeCreate(tx *gorm.DB) error {
	if r.FetchedAt.IsZero() {
		r.FetchedAt = utils.UTCNow()
	}
	return nil
}

// Inline returns the record body when it is stored in the row itself.
func (r *RawRecord) Inline() bool { return r.BodyRef == nil }

// NeedsProcessing reports whether the snapshot awaits a processing pass.
// Records parked with a process note are excluded until new content arrives.
func (r *RawRecord) NeedsProcessing() bool {
	return r.ProcessedAt == nil && r.ProcessNote == nil
}

// RawRecordFilter represents filter criteria for raw record queries
type RawRecordFilter struct {
	ID              *uint
	Source          *ASPName
	SourceProductID *string
	ContentHash     *string
	Unprocessed     *bool
	FetchedAfter    *time.Time
	FetchedBefore   *time.Time
}
