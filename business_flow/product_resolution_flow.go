package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/hikarudo/uwabami/app/sources"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/normalize"
	"github.com/hikarudo/uwabami/repository"
	"gorm.io/gorm"
)

// ResolutionResult reports what resolving one raw record did
type ResolutionResult struct {
	Product *models.CanonicalProduct
	Outcome ResolutionOutcome
}

// ProductResolutionFlow resolves one raw snapshot to a canonical product,
// creating or enriching it as needed
type ProductResolutionFlow interface {
	Resolve(ctx context.Context, record *models.RawRecord, fields *sources.ExtractedFields) (*ResolutionResult, error)
}

// ProductResolutionFlowImpl implements the product resolution business flow
type ProductResolutionFlowImpl struct {
	productRepo   repository.CanonicalProductRepository
	sourceRepo    repository.ProductSourceRepository
	linkRepo      repository.RawCanonicalLinkRepository
	tagRepo       repository.TagRepository
	rawRepo       repository.RawRecordRepository
	flagRepo      repository.ReviewFlagRepository
	performerFlow PerformerResolutionFlow
	locks         *keyLocks
	db            *gorm.DB
}

// NewProductResolutionFlow creates a new product resolution flow instance
func NewProductResolutionFlow(
	productRepo repository.CanonicalProductRepository,
	sourceRepo repository.ProductSourceRepository,
	linkRepo repository.RawCanonicalLinkRepository,
	tagRepo repository.TagRepository,
	rawRepo repository.RawRecordRepository,
	flagRepo repository.ReviewFlagRepository,
	performerFlow PerformerResolutionFlow,
	db *gorm.DB,
) ProductResolutionFlow {
	return &ProductResolutionFlowImpl{
		productRepo:   productRepo,
		sourceRepo:    sourceRepo,
		linkRepo:      linkRepo,
		tagRepo:       tagRepo,
		rawRepo:       rawRepo,
		flagRepo:      flagRepo,
		performerFlow: performerFlow,
		locks:         defaultProductLocks,
		db:            db,
	}
}

// Resolve maps one raw snapshot to its canonical product. Match order is the
// site listing itself, then the normalized product code, then a fresh create.
// Work on the same normalized code is serialized so two sources describing
// the same release cannot interleave, and the unique constraint on the code
// backstops the race across processes: a losing create retries as an attach.
func (f *ProductResolutionFlowImpl) Resolve(ctx context.Context, record *models.RawRecord, fields *sources.ExtractedFields) (*ResolutionResult, error) {
	normalizedID := normalize.ProductCode(record.Source.String(), fields.RawCode)
	if normalizedID == "" {
		// A record we cannot key gets parked for a human instead of being
		// guessed at. New content for the same listing clears the park.
		detail := fmt.Sprintf("could not derive a product code from %q", fields.RawCode)
		if err := f.parkForReview(ctx, record, models.ReviewFlagKindEmptyCode, detail); err != nil {
			return nil, err
		}
		return &ResolutionResult{Outcome: OutcomeSkipped}, nil
	}

	f.locks.Lock(normalizedID)
	defer f.locks.Unlock(normalizedID)

	// The site listing is the strongest match: once attached, a listing
	// follows its product through renames and merges.
	existing, err := f.sourceRepo.ByASPAndSourceProductID(ctx, record.Source, record.SourceProductID)
	if err != nil {
		return nil, NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to look up product source", err)
	}
	if existing != nil {
		return f.updateExisting(ctx, record, fields, existing, normalizedID)
	}

	product, err := f.productRepo.ByNormalizedID(ctx, normalizedID)
	if err != nil {
		return nil, NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to look up product", err)
	}
	if product != nil {
		product, err = f.followMerge(ctx, product)
		if err != nil {
			return nil, err
		}
		if err := f.attach(ctx, product, record, fields, normalizedID); err != nil {
			return nil, err
		}
		return &ResolutionResult{Product: product, Outcome: OutcomeUpdated}, nil
	}

	return f.create(ctx, record, fields, normalizedID)
}

// updateExisting refreshes a listing that already belongs to a product
func (f *ProductResolutionFlowImpl) updateExisting(ctx context.Context, record *models.RawRecord, fields *sources.ExtractedFields, source *models.ProductSource, normalizedID string) (*ResolutionResult, error) {
	product, err := f.productRepo.ByID(ctx, source.CanonicalProductID)
	if err != nil {
		return nil, NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to load product", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	product, err = f.followMerge(ctx, product)
	if err != nil {
		return nil, err
	}

	// Skip work already done for this exact content. The link hash check
	// covers content re-announced after a merge moved the listing, where
	// processed_at alone would lie.
	needs, err := f.linkRepo.NeedsReprocessing(ctx, product.ID, record.Source, record.SourceProductID, record.ContentHash)
	if err != nil {
		return nil, NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to check provenance link", err)
	}
	if !needs {
		return &ResolutionResult{Product: product, Outcome: OutcomeSkipped}, nil
	}

	if err := f.fillProduct(ctx, product, record, fields); err != nil {
		return nil, err
	}

	f.fillSiteFacts(source, fields)
	source.CanonicalProductID = product.ID
	if err := f.sourceRepo.Update(ctx, source); err != nil {
		return nil, NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to update product source", err)
	}

	if err := f.finishRecord(ctx, product, record, fields, normalizedID); err != nil {
		return nil, err
	}
	return &ResolutionResult{Product: product, Outcome: OutcomeUpdated}, nil
}

// attach adds a brand new listing to an already known product
func (f *ProductResolutionFlowImpl) attach(ctx context.Context, product *models.CanonicalProduct, record *models.RawRecord, fields *sources.ExtractedFields, normalizedID string) error {
	source := &models.ProductSource{
		CanonicalProductID: product.ID,
		ASPName:            record.Source,
		SourceProductID:    record.SourceProductID,
	}
	f.fillSiteFacts(source, fields)
	if err := f.sourceRepo.Save(ctx, source); err != nil && !repository.IsUniqueViolation(err) {
		return NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to attach product source", err)
	}

	if err := f.fillProduct(ctx, product, record, fields); err != nil {
		return err
	}
	return f.finishRecord(ctx, product, record, fields, normalizedID)
}

// create stores a new canonical product together with its first listing
func (f *ProductResolutionFlowImpl) create(ctx context.Context, record *models.RawRecord, fields *sources.ExtractedFields, normalizedID string) (*ResolutionResult, error) {
	product := &models.CanonicalProduct{
		NormalizedProductID: normalizedID,
		Status:              models.ProductStatusActive,
	}
	f.applyFields(product, record, fields)

	source := &models.ProductSource{
		ASPName:         record.Source,
		SourceProductID: record.SourceProductID,
	}
	f.fillSiteFacts(source, fields)

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.productRepo.Save(txCtx, product); err != nil {
			return err
		}
		source.CanonicalProductID = product.ID
		return f.sourceRepo.Save(txCtx, source)
	})
	if err != nil {
		// Another worker created the product for this code between our
		// lookup and our insert. Fall back to the attach path against the
		// row that won.
		if repository.IsUniqueViolation(err) {
			winner, lookupErr := f.productRepo.ByNormalizedID(ctx, normalizedID)
			if lookupErr != nil {
				return nil, NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to re-fetch product after conflict", lookupErr)
			}
			if winner != nil {
				if err := f.attach(ctx, winner, record, fields, normalizedID); err != nil {
					return nil, err
				}
				return &ResolutionResult{Product: winner, Outcome: OutcomeUpdated}, nil
			}
		}
		return nil, NewBusinessError("PRODUCT_CREATE_FAILED", "Failed to create product", err)
	}

	if err := f.finishRecord(ctx, product, record, fields, normalizedID); err != nil {
		return nil, err
	}
	return &ResolutionResult{Product: product, Outcome: OutcomeCreated}, nil
}

// finishRecord runs the per-record work shared by every resolution path:
// performer credits, genre tags, and the provenance link.
func (f *ProductResolutionFlowImpl) finishRecord(ctx context.Context, product *models.CanonicalProduct, record *models.RawRecord, fields *sources.ExtractedFields, normalizedID string) error {
	if err := f.attachPerformers(ctx, product, record, fields, normalizedID); err != nil {
		return err
	}
	if err := f.attachTags(ctx, product, fields); err != nil {
		return err
	}

	link := &models.RawCanonicalLink{
		CanonicalProductID:      product.ID,
		SourceType:              record.Source,
		RawRecordKey:            record.SourceProductID,
		ContentHashAtProcessing: record.ContentHash,
	}
	if err := f.linkRepo.Upsert(ctx, link); err != nil {
		return NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to record provenance link", err)
	}
	return nil
}

// fillProduct applies extracted fields and persists the product when
// anything changed
func (f *ProductResolutionFlowImpl) fillProduct(ctx context.Context, product *models.CanonicalProduct, record *models.RawRecord, fields *sources.ExtractedFields) error {
	if !f.applyFields(product, record, fields) {
		return nil
	}
	if err := f.productRepo.Update(ctx, product); err != nil {
		return NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to update product", err)
	}
	return nil
}

// applyFields merges extracted fields into the product under the fill rule:
// empty fields get filled, placeholder titles get replaced by real ones, and
// a real value is never clobbered. Returns true when anything changed.
func (f *ProductResolutionFlowImpl) applyFields(product *models.CanonicalProduct, record *models.RawRecord, fields *sources.ExtractedFields) bool {
	changed := false

	title := strings.TrimSpace(fields.Title)
	incomingReal := title != "" && !normalize.IsPlaceholderTitle(title, record.SourceProductID)
	existingReal := product.Title != nil && !normalize.IsPlaceholderTitle(*product.Title, record.SourceProductID)
	if incomingReal && !existingReal {
		product.Title = &title
		if product.LocalizedTitles == nil {
			product.LocalizedTitles = models.LocalizedTitles{}
		}
		product.LocalizedTitles["ja"] = title
		changed = true
	}

	if product.Description == nil && fields.Description != nil {
		product.Description = fields.Description
		changed = true
	}
	if product.ReleaseDate == nil && fields.ReleaseDate != nil {
		product.ReleaseDate = fields.ReleaseDate
		changed = true
	}
	if product.DurationMinutes == nil && fields.DurationMinutes != nil {
		product.DurationMinutes = fields.DurationMinutes
		changed = true
	}
	if product.MakerName == nil && fields.MakerName != nil {
		product.MakerName = fields.MakerName
		changed = true
	}
	if product.ThumbnailURL == nil && fields.ThumbnailURL != nil {
		product.ThumbnailURL = fields.ThumbnailURL
		changed = true
	}
	if len(product.SampleImageURLs) == 0 && len(fields.SampleImageURLs) > 0 {
		product.SampleImageURLs = fields.SampleImageURLs
		changed = true
	}

	return changed
}

// fillSiteFacts overwrites the per-site listing facts with the latest
// snapshot. Prices and affiliate links never merge across sites, so the
// newest value from the owning site always wins.
func (f *ProductResolutionFlowImpl) fillSiteFacts(source *models.ProductSource, fields *sources.ExtractedFields) {
	if fields.PriceJPY != nil {
		source.PriceJPY = fields.PriceJPY
	}
	if fields.AffiliateURL != nil {
		source.AffiliateURL = fields.AffiliateURL
	}
	if fields.ListingURL != nil {
		source.ListingURL = fields.ListingURL
	}
}

// attachPerformers resolves each credit and links it to the product. A
// credit that fails validation or matches multiple identities raises a
// review flag and is dropped; it never blocks the rest of the record.
func (f *ProductResolutionFlowImpl) attachPerformers(ctx context.Context, product *models.CanonicalProduct, record *models.RawRecord, fields *sources.ExtractedFields, normalizedID string) error {
	for _, name := range fields.PerformerNames {
		credit := PerformerCredit{
			Name:             name,
			Source:           record.Source,
			SourceExternalID: fields.PerformerIDs[name],
			ProductCode:      normalizedID,
		}
		performer, err := f.performerFlow.Resolve(ctx, credit)
		if err != nil {
			switch {
			case IsInvalidPerformerName(err):
				if flagErr := f.flag(ctx, record, models.ReviewFlagKindInvalidPerformer, err.Error()); flagErr != nil {
					return flagErr
				}
				continue
			case IsAmbiguousPerformer(err):
				if flagErr := f.flag(ctx, record, models.ReviewFlagKindAmbiguousIdentity, err.Error()); flagErr != nil {
					return flagErr
				}
				continue
			default:
				return err
			}
		}
		if err := f.productRepo.AttachPerformer(ctx, product.ID, performer.ID); err != nil {
			return NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to attach performer", err)
		}
	}
	return nil
}

// attachTags links the snapshot's genres to the product, creating tag rows
// on first sight
func (f *ProductResolutionFlowImpl) attachTags(ctx context.Context, product *models.CanonicalProduct, fields *sources.ExtractedFields) error {
	for _, genre := range fields.Genres {
		name := strings.ToLower(strings.TrimSpace(genre))
		if name == "" {
			continue
		}

		tag, err := f.tagRepo.ByName(ctx, name)
		if err != nil {
			return NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to look up tag", err)
		}
		if tag == nil {
			tag = &models.Tag{Name: name}
			if err := f.tagRepo.Save(ctx, tag); err != nil {
				if !repository.IsUniqueViolation(err) {
					return NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to create tag", err)
				}
				tag, err = f.tagRepo.ByName(ctx, name)
				if err != nil || tag == nil {
					return NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to re-fetch tag after conflict", err)
				}
			}
		}
		if err := f.productRepo.AttachTag(ctx, product.ID, tag.ID); err != nil {
			return NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to attach tag", err)
		}
	}
	return nil
}

// followMerge walks the merge pointer so work always lands on the surviving
// product
func (f *ProductResolutionFlowImpl) followMerge(ctx context.Context, product *models.CanonicalProduct) (*models.CanonicalProduct, error) {
	for product.IsMerged() {
		if product.MergedIntoID == nil {
			return nil, fmt.Errorf("%w: product %d is merged but has no survivor", ErrProductMerged, product.ID)
		}
		next, err := f.productRepo.ByID(ctx, *product.MergedIntoID)
		if err != nil {
			return nil, NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to follow merge pointer", err)
		}
		if next == nil {
			return nil, fmt.Errorf("%w: survivor %d of product %d not found", ErrProductNotFound, *product.MergedIntoID, product.ID)
		}
		product = next
	}
	return product, nil
}

// parkForReview sets the record aside with a note and opens a review flag.
// Parked records stay out of the unprocessed queue until new content arrives.
func (f *ProductResolutionFlowImpl) parkForReview(ctx context.Context, record *models.RawRecord, kind models.ReviewFlagKind, detail string) error {
	if err := f.rawRepo.Park(ctx, record.Source, record.SourceProductID, string(kind)); err != nil {
		return NewBusinessError("PRODUCT_RESOLVE_FAILED", "Failed to park record", err)
	}
	return f.flag(ctx, record, kind, detail)
}

// flag opens a review flag for the record unless an identical one is already
// open, so repeated passes do not stack duplicates
func (f *ProductResolutionFlowImpl) flag(ctx context.Context, record *models.RawRecord, kind models.ReviewFlagKind, detail string) error {
	open, err := f.flagRepo.OpenByRecordAndKind(ctx, record.Source, record.SourceProductID, kind)
	if err != nil {
		return NewBusinessError("REVIEW_FLAG_FAILED", "Failed to look up review flag", err)
	}
	if open != nil {
		return nil
	}

	flag := &models.ReviewFlag{
		Kind:            kind,
		Source:          record.Source,
		SourceProductID: record.SourceProductID,
		Detail:          detail,
	}
	if err := f.flagRepo.Save(ctx, flag); err != nil {
		return NewBusinessError("REVIEW_FLAG_FAILED", "Failed to save review flag", err)
	}
	return nil
}
