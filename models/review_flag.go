package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReviewFlagKind classifies why a record was set aside for a human
type ReviewFlagKind string

const (
	ReviewFlagKindEmptyCode         ReviewFlagKind = "empty_code"
	ReviewFlagKindPlaceholderTitle  ReviewFlagKind = "placeholder_title"
	ReviewFlagKindParseFailure      ReviewFlagKind = "parse_failure"
	ReviewFlagKindAmbiguousIdentity ReviewFlagKind = "ambiguous_identity"
	ReviewFlagKindInvalidPerformer  ReviewFlagKind = "invalid_performer"
)

func (k ReviewFlagKind) String() string { return string(k) }

// Valid checks if the flag kind is one of the known categories
func (k ReviewFlagKind) Valid() bool {
	switch k {
	case ReviewFlagKindEmptyCode, ReviewFlagKindPlaceholderTitle,
		ReviewFlagKindParseFailure, ReviewFlagKindAmbiguousIdentity,
		ReviewFlagKindInvalidPerformer:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ReviewFlagKind
func (k *ReviewFlagKind) Scan(value any) error {
	if value == nil {
		*k = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*k = ReviewFlagKind(v)
	case []byte:
		*k = ReviewFlagKind(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ReviewFlagKind", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ReviewFlagKind
func (k ReviewFlagKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid ReviewFlagKind: %s", k)
	}
	return string(k), nil
}

// ReviewFlagStatus represents the review state of a flag
type ReviewFlagStatus string

const (
	ReviewFlagStatusOpen     ReviewFlagStatus = "open"
	ReviewFlagStatusResolved ReviewFlagStatus = "resolved"
)

func (s ReviewFlagStatus) String() string { return string(s) }

// Valid checks if the flag status is one of the allowed states
func (s ReviewFlagStatus) Valid() bool {
	switch s {
	case ReviewFlagStatusOpen, ReviewFlagStatusResolved:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ReviewFlagStatus
func (s *ReviewFlagStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ReviewFlagStatus(v)
	case []byte:
		*s = ReviewFlagStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ReviewFlagStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ReviewFlagStatus
func (s ReviewFlagStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ReviewFlagStatus: %s", s)
	}
	return string(s), nil
}

// ReviewFlag is a data-quality problem queued for operator review instead of
// being guessed at during ingestion.
// Table: review_flags
type ReviewFlag struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_review_flags_uuid" json:"uuid"`

	Kind            ReviewFlagKind `gorm:"size:32;not null;index:idx_review_flags_kind" json:"kind"`
	Source          ASPName        `gorm:"size:32;not null;index:idx_review_flags_source" json:"source"`
	SourceProductID string         `gorm:"size:255;not null;index:idx_review_flags_source_product_id" json:"source_product_id"`
	Detail          string         `gorm:"size:1024;not null" json:"detail"`

	Status     ReviewFlagStatus `gorm:"size:16;not null;default:'open';index:idx_review_flags_status" json:"status"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy *uint            `json:"resolved_by,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_review_flags_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ReviewFlag) TableName() string { return "review_flags" }

func (f *ReviewFlag) BeforeCreate(tx *gorm.DB) error {
	if f.UUID == uuid.Nil {
		f.UUID = uuid.New()
	}
	if f.Status == "" {
		f.Status = ReviewFlagStatusOpen
	}
	return nil
}

// ReviewFlagFilter represents filter criteria for review flag queries
type ReviewFlagFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	Kind            *ReviewFlagKind
	Source          *ASPName
	SourceProductID *string
	Status          *ReviewFlagStatus
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}
