package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ASPName identifies one of the affiliate service provider sites we ingest.
type ASPName string

const (
	ASPDMM        ASPName = "dmm"
	ASPMGS        ASPName = "mgs"
	ASPSokmil     ASPName = "sokmil"
	ASPDuga       ASPName = "duga"
	ASPAdultfesta ASPName = "adultfesta"
)

// AllASPNames lists every supported source in fill priority order: when two
// sources disagree on a placeholder field, the earlier one wins.
var AllASPNames = []ASPName{ASPDMM, ASPMGS, ASPSokmil, ASPDuga, ASPAdultfesta}

func (a ASPName) String() string { return string(a) }

// Valid checks if the ASP name is one of the supported sources
func (a ASPName) Valid() bool {
	switch a {
	case ASPDMM, ASPMGS, ASPSokmil, ASPDuga, ASPAdultfesta:
		return true
	default:
		return false
	}
}

// Priority returns the fill priority rank of the source, lower is stronger.
// Unknown sources rank last.
func (a ASPName) Priority() int {
	for i, name := range AllASPNames {
		if name == a {
			return i
		}
	}
	return len(AllASPNames)
}

// Scan implements the sql.Scanner interface for ASPName
func (a *ASPName) Scan(value any) error {
	if value == nil {
		*a = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*a = ASPName(v)
	case []byte:
		*a = ASPName(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ASPName", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ASPName
func (a ASPName) Value() (driver.Value, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid ASPName: %s", a)
	}
	return string(a), nil
}

// ProductSource is one site's listing of a canonical product. It carries the
// per-site facts (price, affiliate link) that never merge across sites.
// Table: product_sources
// Unique by (asp_name, source_product_id); a listing belongs to exactly one
// canonical product at a time.
type ProductSource struct {
	ID                 uint    `gorm:"primaryKey" json:"id"`
	CanonicalProductID uint    `gorm:"not null;index:idx_product_sources_canonical_product_id" json:"canonical_product_id"`
	ASPName            ASPName `gorm:"size:32;not null;uniqueIndex:uk_product_sources_asp_product" json:"asp_name"`
	SourceProductID    string  `gorm:"size:255;not null;uniqueIndex:uk_product_sources_asp_product" json:"source_product_id"`

	PriceJPY     *uint   `json:"price_jpy,omitempty"`
	AffiliateURL *string `gorm:"size:1024" json:"affiliate_url,omitempty"`
	ListingURL   *string `gorm:"size:1024" json:"listing_url,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	CanonicalProduct *CanonicalProduct `gorm:"foreignKey:CanonicalProductID" json:"canonical_product,omitempty"`
}

func (ProductSource) TableName() string { return "product_sources" }

// ProductSourceFilter represents filter criteria for product source queries
type ProductSourceFilter struct {
	ID                 *uint
	CanonicalProductID *uint
	ASPName            *ASPName
	SourceProductID    *string
	CreatedAfter       *time.Time
	CreatedBefore      *time.Time
}
