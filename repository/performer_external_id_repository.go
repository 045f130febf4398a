package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hikarudo/uwabami/models"
	"gorm.io/gorm"
)

// PerformerExternalIDRepositoryImpl implements PerformerExternalIDRepository interface
type PerformerExternalIDRepositoryImpl struct {
	*BaseRepository[models.PerformerExternalID, models.PerformerExternalIDFilter]
}

// NewPerformerExternalIDRepository creates a new performer external id repository
func NewPerformerExternalIDRepository(db *gorm.DB) PerformerExternalIDRepository {
	return &PerformerExternalIDRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PerformerExternalID, models.PerformerExternalIDFilter](db),
	}
}

// ByProviderAndExternalID retrieves the performer binding of one external id
func (r *PerformerExternalIDRepositoryImpl) ByProviderAndExternalID(ctx context.Context, provider, externalID string) (*models.PerformerExternalID, error) {
	db := r.getDB(ctx)
	var row models.PerformerExternalID
	err := db.Where("provider = ? AND external_id = ?", provider, externalID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find external id %s/%s: %w", provider, externalID, err)
	}
	return &row, nil
}

// ListByPerformer retrieves all external ids of a performer
func (r *PerformerExternalIDRepositoryImpl) ListByPerformer(ctx context.Context, performerID uint) ([]*models.PerformerExternalID, error) {
	db := r.getDB(ctx)
	var rows []*models.PerformerExternalID
	err := db.Where("performer_id = ?", performerID).Order("provider ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list external ids for performer %d: %w", performerID, err)
	}
	return rows, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *PerformerExternalIDRepositoryImpl) applyFilter(query *gorm.DB, filter models.PerformerExternalIDFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.PerformerID != nil {
		query = query.Where("performer_id = ?", *filter.PerformerID)
	}
	if filter.Provider != nil {
		query = query.Where("provider = ?", *filter.Provider)
	}
	if filter.ExternalID != nil {
		query = query.Where("external_id = ?", *filter.ExternalID)
	}
	return query
}

// ByFilter retrieves external ids based on filter criteria
func (r *PerformerExternalIDRepositoryImpl) ByFilter(ctx context.Context, filter models.PerformerExternalIDFilter, orderBy string, limit, offset int) ([]*models.PerformerExternalID, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PerformerExternalID{})

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

	var rows []*models.PerformerExternalID
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of external ids matching the filter
func (r *PerformerExternalIDRepositoryImpl) Count(ctx context.Context, filter models.PerformerExternalIDFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PerformerExternalID{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any external id matching the filter exists
func (r *PerformerExternalIDRepositoryImpl) Exists(ctx context.Context, filter models.PerformerExternalIDFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
