package dto

// RunIngestRequest represents a manual request to fetch and process one
// source's listings, or every registered source when "all" is given
type RunIngestRequest struct {
	Source string `json:"source" validate:"required,oneof=all dmm mgs sokmil duga adultfesta" example:"dmm"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=2000" example:"200"`
}

// RunIngestResponse represents the outcome of one ingestion batch
type RunIngestResponse struct {
	Source  string `json:"source" example:"dmm"`
	Fetched int    `json:"fetched" example:"200"`
	Created int    `json:"created" example:"12"`
	Updated int    `json:"updated" example:"31"`
	Skipped int    `json:"skipped" example:"155"`
	Errors  int    `json:"errors" example:"2"`
}

// MergeProductsRequest represents a manual merge of two canonical products
type MergeProductsRequest struct {
	LoserNormalizedID    string `json:"loser_normalized_id" validate:"required,max=255" example:"MGS:300MIUM-001"`
	SurvivorNormalizedID string `json:"survivor_normalized_id" validate:"required,max=255" example:"MIUM-001"`
}

// MergeProductsResponse represents the outcome of a merge
type MergeProductsResponse struct {
	SurvivorID           uint   `json:"survivor_id" example:"123"`
	SurvivorNormalizedID string `json:"survivor_normalized_id" example:"MIUM-001"`
	LoserID              uint   `json:"loser_id" example:"456"`
	MovedSources         int    `json:"moved_sources" example:"1"`
}

// ReviewFlagDTO represents a record parked for operator review
type ReviewFlagDTO struct {
	UUID            string  `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Kind            string  `json:"kind" example:"empty_code"`
	Source          string  `json:"source" example:"duga"`
	SourceProductID string  `json:"source_product_id" example:"kmproduce-0456"`
	Detail          string  `json:"detail"`
	Status          string  `json:"status" example:"open"`
	CreatedAt       string  `json:"created_at" example:"2026-01-15T10:30:00Z"`
}

// ListReviewFlagsRequest represents filter criteria for the review queue
type ListReviewFlagsRequest struct {
	Kind     string `query:"kind" validate:"omitempty,oneof=empty_code placeholder_title parse_failure ambiguous_identity invalid_performer"`
	Status   string `query:"status" validate:"omitempty,oneof=open resolved"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListReviewFlagsResponse represents a page of review flags
type ListReviewFlagsResponse struct {
	Items    []ReviewFlagDTO `json:"items"`
	Total    int64           `json:"total" example:"17"`
	Page     int             `json:"page" example:"1"`
	PageSize int             `json:"page_size" example:"20"`
}

// ResolveReviewFlagRequest represents closing a review flag
type ResolveReviewFlagRequest struct {
	UUID string `json:"uuid" validate:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// ResolveReviewFlagResponse represents the resolved flag
type ResolveReviewFlagResponse struct {
	UUID       string `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Status     string `json:"status" example:"resolved"`
	ResolvedAt string `json:"resolved_at" example:"2026-01-16T09:00:00Z"`
}
