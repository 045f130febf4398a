package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RawCanonicalLinkRepositoryImpl implements RawCanonicalLinkRepository interface
type RawCanonicalLinkRepositoryImpl struct {
	*BaseRepository[models.RawCanonicalLink, models.RawCanonicalLinkFilter]
}

// NewRawCanonicalLinkRepository creates a new raw canonical link repository
func NewRawCanonicalLinkRepository(db *gorm.DB) RawCanonicalLinkRepository {
	return &RawCanonicalLinkRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RawCanonicalLink, models.RawCanonicalLinkFilter](db),
	}
}

// Upsert records a provenance link. Reprocessing the same raw record against
// the same product overwrites the stored hash instead of stacking rows.
func (r *RawCanonicalLinkRepositoryImpl) Upsert(ctx context.Context, link *models.RawCanonicalLink) error {
	db := r.getDB(ctx)
	link.UpdatedAt = utils.UTCNow()
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "canonical_product_id"},
			{Name: "source_type"},
			{Name: "raw_record_key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"content_hash_at_processing", "updated_at"}),
	}).Create(link).Error
	if err != nil {
		return fmt.Errorf("failed to upsert raw canonical link %d/%s/%s: %w",
			link.CanonicalProductID, link.SourceType, link.RawRecordKey, err)
	}
	return nil
}

// ByTriple retrieves a link by its unique triple
func (r *RawCanonicalLinkRepositoryImpl) ByTriple(ctx context.Context, canonicalProductID uint, sourceType models.ASPName, rawRecordKey string) (*models.RawCanonicalLink, error) {
	db := r.getDB(ctx)
	var row models.RawCanonicalLink
	err := db.Where("canonical_product_id = ? AND source_type = ? AND raw_record_key = ?",
		canonicalProductID, sourceType, rawRecordKey).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find raw canonical link %d/%s/%s: %w",
			canonicalProductID, sourceType, rawRecordKey, err)
	}
	return &row, nil
}

// ListByProduct retrieves all provenance links of a canonical product
func (r *RawCanonicalLinkRepositoryImpl) ListByProduct(ctx context.Context, canonicalProductID uint) ([]*models.RawCanonicalLink, error) {
	db := r.getDB(ctx)
	var rows []*models.RawCanonicalLink
	err := db.Where("canonical_product_id = ?", canonicalProductID).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list raw canonical links for product %d: %w", canonicalProductID, err)
	}
	return rows, nil
}

// NeedsReprocessing reports whether the raw record changed since the link was
// written. A missing link also counts as needing processing.
func (r *RawCanonicalLinkRepositoryImpl) NeedsReprocessing(ctx context.Context, canonicalProductID uint, sourceType models.ASPName, rawRecordKey, currentHash string) (bool, error) {
	link, err := r.ByTriple(ctx, canonicalProductID, sourceType, rawRecordKey)
	if err != nil {
		return false, err
	}
	if link == nil {
		return true, nil
	}
	return link.ContentHashAtProcessing != currentHash, nil
}

// ReassignToProduct moves provenance links from one product to another during
// a merge. Triples the survivor already has keep the survivor's hash.
func (r *RawCanonicalLinkRepositoryImpl) ReassignToProduct(ctx context.Context, fromProductID, toProductID uint) error {
	db := r.getDB(ctx)
	err := db.Exec(
		`INSERT INTO raw_canonical_links (canonical_product_id, source_type, raw_record_key, content_hash_at_processing, created_at, updated_at)
		 SELECT ?, source_type, raw_record_key, content_hash_at_processing, created_at, updated_at
		 FROM raw_canonical_links WHERE canonical_product_id = ?
		 ON CONFLICT DO NOTHING`,
		toProductID, fromProductID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to copy raw canonical links from product %d: %w", fromProductID, err)
	}
	if err := db.Exec("DELETE FROM raw_canonical_links WHERE canonical_product_id = ?", fromProductID).Error; err != nil {
		return fmt.Errorf("failed to clear raw canonical links from product %d: %w", fromProductID, err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *RawCanonicalLinkRepositoryImpl) applyFilter(query *gorm.DB, filter models.RawCanonicalLinkFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CanonicalProductID != nil {
		query = query.Where("canonical_product_id = ?", *filter.CanonicalProductID)
	}
	if filter.SourceType != nil {
		query = query.Where("source_type = ?", *filter.SourceType)
	}
	if filter.RawRecordKey != nil {
		query = query.Where("raw_record_key = ?", *filter.RawRecordKey)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves links based on filter criteria
func (r *RawCanonicalLinkRepositoryImpl) ByFilter(ctx context.Context, filter models.RawCanonicalLinkFilter, orderBy string, limit, offset int) ([]*models.RawCanonicalLink, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.RawCanonicalLink{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.RawCanonicalLink
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of links matching the filter
func (r *RawCanonicalLinkRepositoryImpl) Count(ctx context.Context, filter models.RawCanonicalLinkFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.RawCanonicalLink{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any link matching the filter exists
func (r *RawCanonicalLinkRepositoryImpl) Exists(ctx context.Context, filter models.RawCanonicalLinkFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
