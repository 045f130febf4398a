package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/utils"
	"gorm.io/gorm"
)

// ReviewFlagRepositoryImpl implements ReviewFlagRepository interface
type ReviewFlagRepositoryImpl struct {
	*BaseRepository[models.ReviewFlag, models.ReviewFlagFilter]
}

// NewReviewFlagRepository creates a new review flag repository
func NewReviewFlagRepository(db *gorm.DB) ReviewFlagRepository {
	return &ReviewFlagRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ReviewFlag, models.ReviewFlagFilter](db),
	}
}

// ByUUID retrieves a review flag by its public id
func (r *ReviewFlagRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.ReviewFlag, error) {
	db := r.getDB(ctx)
	var row models.ReviewFlag
	err := db.Where("uuid = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find review flag %s: %w", id, err)
	}
	return &row, nil
}

// OpenByRecordAndKind fetches the open flag for a record and kind, used to
// avoid stacking duplicate flags across processing passes
func (r *ReviewFlagRepositoryImpl) OpenByRecordAndKind(ctx context.Context, source models.ASPName, sourceProductID string, kind models.ReviewFlagKind) (*models.ReviewFlag, error) {
	db := r.getDB(ctx)
	var row models.ReviewFlag
	err := db.Where("source = ? AND source_product_id = ? AND kind = ? AND status = ?",
		source, sourceProductID, kind, models.ReviewFlagStatusOpen).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open review flag for %s/%s: %w", source, sourceProductID, err)
	}
	return &row, nil
}

// Resolve closes a flag and records who closed it
func (r *ReviewFlagRepositoryImpl) Resolve(ctx context.Context, id uint, resolvedBy uint) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	res := db.Model(&models.ReviewFlag{}).
		Where("id = ? AND status = ?", id, models.ReviewFlagStatusOpen).
		Updates(map[string]any{
			"status":      models.ReviewFlagStatusResolved,
			"resolved_at": now,
			"resolved_by": resolvedBy,
			"updated_at":  now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to resolve review flag %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("review flag %d is not open", id)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *ReviewFlagRepositoryImpl) applyFilter(query *gorm.DB, filter models.ReviewFlagFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.SourceProductID != nil {
		query = query.Where("source_product_id = ?", *filter.SourceProductID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves review flags based on filter criteria
func (r *ReviewFlagRepositoryImpl) ByFilter(ctx context.Context, filter models.ReviewFlagFilter, orderBy string, limit, offset int) ([]*models.ReviewFlag, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.ReviewFlag{})

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

	var rows []*models.ReviewFlag
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of review flags matching the filter
func (r *ReviewFlagRepositoryImpl) Count(ctx context.Context, filter models.ReviewFlagFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.ReviewFlag{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any review flag matching the filter exists
func (r *ReviewFlagRepositoryImpl) Exists(ctx context.Context, filter models.ReviewFlagFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
