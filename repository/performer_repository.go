package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/utils"
	"gorm.io/gorm"
)

// PerformerRepositoryImpl implements PerformerRepository interface
type PerformerRepositoryImpl struct {
	*BaseRepository[models.Performer, models.PerformerFilter]
}

// NewPerformerRepository creates a new performer repository
func NewPerformerRepository(db *gorm.DB) PerformerRepository {
	return &PerformerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Performer, models.PerformerFilter](db),
	}
}

// ByCanonicalName retrieves performers sharing a canonical name. More than
// one row is a legitimate outcome, callers decide how to disambiguate.
func (r *PerformerRepositoryImpl) ByCanonicalName(ctx context.Context, name string) ([]*models.Performer, error) {
	db := r.getDB(ctx)
	var rows []*models.Performer
	err := db.Where("canonical_name = ?", name).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find performers named %q: %w", name, err)
	}
	return rows, nil
}

// ByIDWithRelations retrieves a performer with aliases and external ids preloaded
func (r *PerformerRepositoryImpl) ByIDWithRelations(ctx context.Context, id uint) (*models.Performer, error) {
	db := r.getDB(ctx)
	var row models.Performer
	err := db.Preload("Aliases").Preload("ExternalIDs").First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find performer %d: %w", id, err)
	}
	return &row, nil
}

// Update persists changed fields of an existing performer
func (r *PerformerRepositoryImpl) Update(ctx context.Context, performer *models.Performer) error {
	db := r.getDB(ctx)
	performer.UpdatedAt = utils.UTCNow()
	if err := db.Save(performer).Error; err != nil {
		return fmt.Errorf("failed to update performer %d: %w", performer.ID, err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *PerformerRepositoryImpl) applyFilter(query *gorm.DB, filter models.PerformerFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CanonicalName != nil {
		query = query.Where("canonical_name = ?", *filter.CanonicalName)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves performers based on filter criteria
func (r *PerformerRepositoryImpl) ByFilter(ctx context.Context, filter models.PerformerFilter, orderBy string, limit, offset int) ([]*models.Performer, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Performer{})

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

	var rows []*models.Performer
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of performers matching the filter
func (r *PerformerRepositoryImpl) Count(ctx context.Context, filter models.PerformerFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Performer{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any performer matching the filter exists
func (r *PerformerRepositoryImpl) Exists(ctx context.Context, filter models.PerformerFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
