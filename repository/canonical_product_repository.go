package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/utils"
	"gorm.io/gorm"
)

// CanonicalProductRepositoryImpl implements CanonicalProductRepository interface
type CanonicalProductRepositoryImpl struct {
	*BaseRepository[models.CanonicalProduct, models.CanonicalProductFilter]
}

// NewCanonicalProductRepository creates a new canonical product repository
func NewCanonicalProductRepository(db *gorm.DB) CanonicalProductRepository {
	return &CanonicalProductRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CanonicalProduct, models.CanonicalProductFilter](db),
	}
}

// ByNormalizedID retrieves a canonical product by its normalized product id
func (r *CanonicalProductRepositoryImpl) ByNormalizedID(ctx context.Context, normalizedID string) (*models.CanonicalProduct, error) {
	db := r.getDB(ctx)
	var row models.CanonicalProduct
	err := db.Where("normalized_product_id = ?", normalizedID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find canonical product %s: %w", normalizedID, err)
	}
	return &row, nil
}

// ByNormalizedIDWithRelations retrieves a canonical product with its sources,
// performers and tags preloaded
func (r *CanonicalProductRepositoryImpl) ByNormalizedIDWithRelations(ctx context.Context, normalizedID string) (*models.CanonicalProduct, error) {
	db := r.getDB(ctx)
	var row models.CanonicalProduct
	err := db.Preload("Sources").Preload("Performers").Preload("Tags").
		Where("normalized_product_id = ?", normalizedID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find canonical product %s: %w", normalizedID, err)
	}
	return &row, nil
}

// Update persists changed fields of an existing canonical product
func (r *CanonicalProductRepositoryImpl) Update(ctx context.Context, product *models.CanonicalProduct) error {
	db := r.getDB(ctx)
	product.UpdatedAt = utils.UTCNow()
	if err := db.Save(product).Error; err != nil {
		return fmt.Errorf("failed to update canonical product %d: %w", product.ID, err)
	}
	return nil
}

// MarkMerged points the loser at the survivor and flips its status. The row
// stays behind so the id and normalized id remain resolvable.
func (r *CanonicalProductRepositoryImpl) MarkMerged(ctx context.Context, loserID, survivorID uint) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	res := db.Model(&models.CanonicalProduct{}).
		Where("id = ? AND status = ?", loserID, models.ProductStatusActive).
		Updates(map[string]any{
			"status":         models.ProductStatusMerged,
			"merged_into_id": survivorID,
			"updated_at":     now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark product %d merged: %w", loserID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %d is not active, refusing to merge", loserID)
	}
	return nil
}

// AttachPerformer links a performer to a product, ignoring duplicates
func (r *CanonicalProductRepositoryImpl) AttachPerformer(ctx context.Context, productID, performerID uint) error {
	db := r.getDB(ctx)
	err := db.Exec(
		"INSERT INTO product_performers (canonical_product_id, performer_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		productID, performerID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to attach performer %d to product %d: %w", performerID, productID, err)
	}
	return nil
}

// AttachTag links a tag to a product, ignoring duplicates
func (r *CanonicalProductRepositoryImpl) AttachTag(ctx context.Context, productID, tagID uint) error {
	db := r.getDB(ctx)
	err := db.Exec(
		"INSERT INTO product_tags (canonical_product_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		productID, tagID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to attach tag %d to product %d: %w", tagID, productID, err)
	}
	return nil
}

// ReassignAssociations moves performer and tag links from one product to
// another, used during merges. Links the target already has are dropped
// rather than duplicated.
func (r *CanonicalProductRepositoryImpl) ReassignAssociations(ctx context.Context, fromProductID, toProductID uint) error {
	db := r.getDB(ctx)
	err := db.Exec(
		`INSERT INTO product_performers (canonical_product_id, performer_id)
		 SELECT ?, performer_id FROM product_performers WHERE canonical_product_id = ?
		 ON CONFLICT DO NOTHING`,
		toProductID, fromProductID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to copy performer links from product %d: %w", fromProductID, err)
	}
	if err := db.Exec("DELETE FROM product_performers WHERE canonical_product_id = ?", fromProductID).Error; err != nil {
		return fmt.Errorf("failed to clear performer links from product %d: %w", fromProductID, err)
	}

	err = db.Exec(
		`INSERT INTO product_tags (canonical_product_id, tag_id)
		 SELECT ?, tag_id FROM product_tags WHERE canonical_product_id = ?
		 ON CONFLICT DO NOTHING`,
		toProductID, fromProductID,
	).Error
	if err != nil {
		return fmt.Errorf("failed to copy tag links from product %d: %w", fromProductID, err)
	}
	if err := db.Exec("DELETE FROM product_tags WHERE canonical_product_id = ?", fromProductID).Error; err != nil {
		return fmt.Errorf("failed to clear tag links from product %d: %w", fromProductID, err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *CanonicalProductRepositoryImpl) applyFilter(query *gorm.DB, filter models.CanonicalProductFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.NormalizedProductID != nil {
		query = query.Where("normalized_product_id = ?", *filter.NormalizedProductID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.MakerName != nil {
		query = query.Where("maker_name = ?", *filter.MakerName)
	}
	if filter.TitleContains != nil {
		query = query.Where("title ILIKE ?", "%"+*filter.TitleContains+"%")
	}
	if filter.ReleasedAfter != nil {
		query = query.Where("release_date > ?", *filter.ReleasedAfter)
	}
	if filter.ReleasedBefore != nil {
		query = query.Where("release_date < ?", *filter.ReleasedBefore)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves canonical products based on filter criteria
func (r *CanonicalProductRepositoryImpl) ByFilter(ctx context.Context, filter models.CanonicalProductFilter, orderBy string, limit, offset int) ([]*models.CanonicalProduct, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.CanonicalProduct{})

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

	var rows []*models.CanonicalProduct
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of canonical products matching the filter
func (r *CanonicalProductRepositoryImpl) Count(ctx context.Context, filter models.CanonicalProductFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.CanonicalProduct{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any canonical product matching the filter exists
func (r *CanonicalProductRepositoryImpl) Exists(ctx context.Context, filter models.CanonicalProductFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
