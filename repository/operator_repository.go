package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/utils"
	"gorm.io/gorm"
)

// OperatorRepositoryImpl implements OperatorRepository interface
type OperatorRepositoryImpl struct {
	*BaseRepository[models.Operator, models.OperatorFilter]
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &OperatorRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Operator, models.OperatorFilter](db),
	}
}

// ByUsername retrieves an operator by username
func (r *OperatorRepositoryImpl) ByUsername(ctx context.Context, username string) (*models.Operator, error) {
	db := r.getDB(ctx)
	var row models.Operator
	err := db.Where("username = ?", username).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find operator %q: %w", username, err)
	}
	return &row, nil
}

// UpdateLastLogin stamps the operator's last login time
func (r *OperatorRepositoryImpl) UpdateLastLogin(ctx context.Context, operatorID uint) error {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	err := db.Model(&models.Operator{}).
		Where("id = ?", operatorID).
		Updates(map[string]any{
			"last_login_at": now,
			"updated_at":    now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update last login for operator %d: %w", operatorID, err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *OperatorRepositoryImpl) applyFilter(query *gorm.DB, filter models.OperatorFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Username != nil {
		query = query.Where("username = ?", *filter.Username)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves operators based on filter criteria
func (r *OperatorRepositoryImpl) ByFilter(ctx context.Context, filter models.OperatorFilter, orderBy string, limit, offset int) ([]*models.Operator, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Operator{})

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

	var rows []*models.Operator
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of operators matching the filter
func (r *OperatorRepositoryImpl) Count(ctx context.Context, filter models.OperatorFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Operator{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any operator matching the filter exists
func (r *OperatorRepositoryImpl) Exists(ctx context.Context, filter models.OperatorFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
