// Package dto contains Data Transfer Objects for API request and response structures
package dto

import (
	"time"
)

// ProductSourceDTO represents one site's listing of a product
type ProductSourceDTO struct {
	ASPName         string  `json:"asp_name" example:"dmm"`
	SourceProductID string  `json:"source_product_id" example:"h_086abw00123"`
	PriceJPY        *uint   `json:"price_jpy,omitempty" example:"980"`
	AffiliateURL    *string `json:"affiliate_url,omitempty"`
	ListingURL      *string `json:"listing_url,omitempty"`
}

// PerformerDTO represents a performer credited on a product
type PerformerDTO struct {
	ID            uint     `json:"id" example:"42"`
	CanonicalName string   `json:"canonical_name" example:"三上悠亜"`
	Aliases       []string `json:"aliases,omitempty"`
}

// ProductDTO represents a canonical product in API responses
type ProductDTO struct {
	ID                  uint              `json:"id" example:"123"`
	NormalizedProductID string            `json:"normalized_product_id" example:"ABW-123"`
	Title               *string           `json:"title,omitempty"`
	LocalizedTitles     map[string]string `json:"localized_titles,omitempty"`
	Description         *string           `json:"description,omitempty"`
	ReleaseDate         *time.Time        `json:"release_date,omitempty"`
	DurationMinutes     *uint             `json:"duration_minutes,omitempty"`
	MakerName           *string           `json:"maker_name,omitempty"`
	ThumbnailURL        *string           `json:"thumbnail_url,omitempty"`
	SampleImageURLs     []string          `json:"sample_image_urls,omitempty"`
	Status              string            `json:"status" example:"active"`
	Sources             []ProductSourceDTO `json:"sources,omitempty"`
	Performers          []PerformerDTO     `json:"performers,omitempty"`
	Tags                []string           `json:"tags,omitempty"`
	CreatedAt           string             `json:"created_at" example:"2026-01-15T10:30:00Z"`
}

// ListProductsRequest represents filter and pagination criteria for the
// product listing endpoint
type ListProductsRequest struct {
	Title          string `query:"title" validate:"omitempty,max=255"`
	Maker          string `query:"maker" validate:"omitempty,max=255"`
	ReleasedAfter  string `query:"released_after" validate:"omitempty,datetime=2006-01-02"`
	ReleasedBefore string `query:"released_before" validate:"omitempty,datetime=2006-01-02"`
	Page           int    `query:"page" validate:"omitempty,min=1"`
	PageSize       int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListProductsResponse represents a page of products
type ListProductsResponse struct {
	Items    []ProductDTO `json:"items"`
	Total    int64        `json:"total" example:"1342"`
	Page     int          `json:"page" example:"1"`
	PageSize int          `json:"page_size" example:"20"`
}
