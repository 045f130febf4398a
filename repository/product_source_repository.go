package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/utils"
	"gorm.io/gorm"
)

// ProductSourceRepositoryImpl implements ProductSourceRepository interface
type ProductSourceRepositoryImpl struct {
	*BaseRepository[models.ProductSource, models.ProductSourceFilter]
}

// NewProductSourceRepository creates a new product source repository
func NewProductSourceRepository(db *gorm.DB) ProductSourceRepository {
	return &ProductSourceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ProductSource, models.ProductSourceFilter](db),
	}
}

// ByASPAndSourceProductID retrieves a listing by its natural key
func (r *ProductSourceRepositoryImpl) ByASPAndSourceProductID(ctx context.Context, asp models.ASPName, sourceProductID string) (*models.ProductSource, error) {
	db := r.getDB(ctx)
	var row models.ProductSource
	err := db.Where("asp_name = ? AND source_product_id = ?", asp, sourceProductID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find product source %s/%s: %w", asp, sourceProductID, err)
	}
	return &row, nil
}

// ListByCanonicalProduct retrieves all listings of a canonical product
func (r *ProductSourceRepositoryImpl) ListByCanonicalProduct(ctx context.Context, canonicalProductID uint) ([]*models.ProductSource, error) {
	db := r.getDB(ctx)
	var rows []*models.ProductSource
	err := db.Where("canonical_product_id = ?", canonicalProductID).Order("asp_name ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list product sources for product %d: %w", canonicalProductID, err)
	}
	return rows, nil
}

// Update persists changed fields of an existing listing
func (r *ProductSourceRepositoryImpl) Update(ctx context.Context, source *models.ProductSource) error {
	db := r.getDB(ctx)
	source.UpdatedAt = utils.UTCNow()
	if err := db.Save(source).Error; err != nil {
		return fmt.Errorf("failed to update product source %d: %w", source.ID, err)
	}
	return nil
}

// ReassignToProduct moves all listings from one canonical product to another,
// used during merges
func (r *ProductSourceRepositoryImpl) ReassignToProduct(ctx context.Context, fromProductID, toProductID uint) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	err := db.Model(&models.ProductSource{}).
		Where("canonical_product_id = ?", fromProductID).
		Updates(map[string]any{
			"canonical_product_id": toProductID,
			"updated_at":           now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reassign product sources from %d to %d: %w", fromProductID, toProductID, err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *ProductSourceRepositoryImpl) applyFilter(query *gorm.DB, filter models.ProductSourceFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CanonicalProductID != nil {
		query = query.Where("canonical_product_id = ?", *filter.CanonicalProductID)
	}
	if filter.ASPName != nil {
		query = query.Where("asp_name = ?", *filter.ASPName)
	}
	if filter.SourceProductID != nil {
		query = query.Where("source_product_id = ?", *filter.SourceProductID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves listings based on filter criteria
func (r *ProductSourceRepositoryImpl) ByFilter(ctx context.Context, filter models.ProductSourceFilter, orderBy string, limit, offset int) ([]*models.ProductSource, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.ProductSource{})

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

	var rows []*models.ProductSource
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of listings matching the filter
func (r *ProductSourceRepositoryImpl) Count(ctx context.Context, filter models.ProductSourceFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.ProductSource{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any listing matching the filter exists
func (r *ProductSourceRepositoryImpl) Exists(ctx context.Context, filter models.ProductSourceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
