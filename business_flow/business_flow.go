// Package businessflow contains the business logic for the catalog system.
package businessflow

import (
	"sort"
	"time"

	"github.com/hikarudo/uwabami/app/dto"
	"github.com/hikarudo/uwabami/models"
)

const RequestIDKey = "X-Request-ID"

// BatchSummary reports what one ingestion batch did. A record counts exactly
// once: created when its resolution created a new canonical product, updated
// when it changed or attached to an existing one, skipped when nothing needed
// doing, errors when the record failed and stayed due for a later pass.
type BatchSummary struct {
	Source  models.ASPName `json:"source"`
	Fetched int            `json:"fetched"`
	Created int            `json:"created"`
	Updated int            `json:"updated"`
	Skipped int            `json:"skipped"`
	Errors  int            `json:"errors"`
}

// ResolutionOutcome classifies what resolving one raw record did
type ResolutionOutcome string

const (
	OutcomeCreated ResolutionOutcome = "created"
	OutcomeUpdated ResolutionOutcome = "updated"
	OutcomeSkipped ResolutionOutcome = "skipped"
)

// ToProductDTO converts a canonical product model to its API representation
func ToProductDTO(product models.CanonicalProduct) dto.ProductDTO {
	out := dto.ProductDTO{
		ID:                  product.ID,
		NormalizedProductID: product.NormalizedProductID,
		Title:               product.Title,
		LocalizedTitles:     product.LocalizedTitles,
		Description:         product.Description,
		ReleaseDate:         product.ReleaseDate,
		DurationMinutes:     product.DurationMinutes,
		MakerName:           product.MakerName,
		ThumbnailURL:        product.ThumbnailURL,
		SampleImageURLs:     product.SampleImageURLs,
		Status:              product.Status.String(),
		CreatedAt:           product.CreatedAt.Format(time.RFC3339),
	}

	// Listings lead with the strongest source
	srcs := make([]models.ProductSource, len(product.Sources))
	copy(srcs, product.Sources)
	sort.SliceStable(srcs, func(i, j int) bool {
		return srcs[i].ASPName.Priority() < srcs[j].ASPName.Priority()
	})
	for _, src := range srcs {
		out.Sources = append(out.Sources, dto.ProductSourceDTO{
			ASPName:         src.ASPName.String(),
			SourceProductID: src.SourceProductID,
			PriceJPY:        src.PriceJPY,
			AffiliateURL:    src.AffiliateURL,
			ListingURL:      src.ListingURL,
		})
	}
	for _, performer := range product.Performers {
		p := dto.PerformerDTO{
			ID:            performer.ID,
			CanonicalName: performer.CanonicalName,
		}
		for _, alias := range performer.Aliases {
			p.Aliases = append(p.Aliases, alias.AliasName)
		}
		out.Performers = append(out.Performers, p)
	}
	for _, tag := range product.Tags {
		out.Tags = append(out.Tags, tag.Name)
	}

	return out
}

// ToReviewFlagDTO converts a review flag model to its API representation
func ToReviewFlagDTO(flag models.ReviewFlag) dto.ReviewFlagDTO {
	return dto.ReviewFlagDTO{
		UUID:            flag.UUID.String(),
		Kind:            flag.Kind.String(),
		Source:          flag.Source.String(),
		SourceProductID: flag.SourceProductID,
		Detail:          flag.Detail,
		Status:          flag.Status.String(),
		CreatedAt:       flag.CreatedAt.Format(time.RFC3339),
	}
}

// ToOperatorInfo converts an operator model to its API representation
func ToOperatorInfo(operator models.Operator) dto.OperatorInfo {
	return dto.OperatorInfo{
		ID:       operator.ID,
		UUID:     operator.UUID.String(),
		Username: operator.Username,
	}
}
