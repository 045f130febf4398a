package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hikarudo/uwabami/models"
	"gorm.io/gorm"
)

// PerformerAliasRepositoryImpl implements PerformerAliasRepository interface
type PerformerAliasRepositoryImpl struct {
	*BaseRepository[models.PerformerAlias, models.PerformerAliasFilter]
}

// NewPerformerAliasRepository creates a new performer alias repository
func NewPerformerAliasRepository(db *gorm.DB) PerformerAliasRepository {
	return &PerformerAliasRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PerformerAlias, models.PerformerAliasFilter](db),
	}
}

// ByAliasName retrieves all aliases matching a name across performers
func (r *PerformerAliasRepositoryImpl) ByAliasName(ctx context.Context, alias string) ([]*models.PerformerAlias, error) {
	db := r.getDB(ctx)
	var rows []*models.PerformerAlias
	err := db.Where("alias_name = ?", alias).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find aliases named %q: %w", alias, err)
	}
	return rows, nil
}

// ByPerformerAndAlias retrieves one performer's alias row if present
func (r *PerformerAliasRepositoryImpl) ByPerformerAndAlias(ctx context.Context, performerID uint, alias string) (*models.PerformerAlias, error) {
	db := r.getDB(ctx)
	var row models.PerformerAlias
	err := db.Where("performer_id = ? AND alias_name = ?", performerID, alias).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find alias %q for performer %d: %w", alias, performerID, err)
	}
	return &row, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *PerformerAliasRepositoryImpl) applyFilter(query *gorm.DB, filter models.PerformerAliasFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.PerformerID != nil {
		query = query.Where("performer_id = ?", *filter.PerformerID)
	}
	if filter.AliasName != nil {
		query = query.Where("alias_name = ?", *filter.AliasName)
	}
	return query
}

// ByFilter retrieves aliases based on filter criteria
func (r *PerformerAliasRepositoryImpl) ByFilter(ctx context.Context, filter models.PerformerAliasFilter, orderBy string, limit, offset int) ([]*models.PerformerAlias, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PerformerAlias{})

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

	var rows []*models.PerformerAlias
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of aliases matching the filter
func (r *PerformerAliasRepositoryImpl) Count(ctx context.Context, filter models.PerformerAliasFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PerformerAlias{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any alias matching the filter exists
func (r *PerformerAliasRepositoryImpl) Exists(ctx context.Context, filter models.PerformerAliasFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
