package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hikarudo/uwabami/models"
	"github.com/hikarudo/uwabami/utils"
	"gorm.io/gorm"
)

// RawRecordRepositoryImpl implements RawRecordRepository interface
type RawRecordRepositoryImpl struct {
	*BaseRepository[models.RawRecord, models.RawRecordFilter]
}

// NewRawRecordRepository creates a new raw record repository
func NewRawRecordRepository(db *gorm.DB) RawRecordRepository {
	return &RawRecordRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RawRecord, models.RawRecordFilter](db),
	}
}

// ByKey retrieves a raw record by its natural key
func (r *RawRecordRepositoryImpl) ByKey(ctx context.Context, source models.ASPName, sourceProductID string) (*models.RawRecord, error) {
	db := r.getDB(ctx)
	var row models.RawRecord
	err := db.Where("source = ? AND source_product_id = ?", source, sourceProductID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find raw record %s/%s: %w", source, sourceProductID, err)
	}
	return &row, nil
}

// Put stores a fetched snapshot, overwriting any previous one for the same
// listing. An unchanged content hash only bumps fetched_at so the record does
// not re-enter the processing queue. Changed content clears processed_at and
// process_note, making the record due again.
func (r *RawRecordRepositoryImpl) Put(ctx context.Context, record *models.RawRecord) (bool, error) {
	existing, err := r.ByKey(ctx, record.Source, record.SourceProductID)
	if err != nil {
		return false, err
	}

	if existing == nil {
		record.FetchedAt = utils.UTCNow()
		if err := r.Save(ctx, record); err != nil {
			if !IsUniqueViolation(err) {
				return false, err
			}
			// A concurrent fetcher inserted the row first. Fall through to
			// the update path against the winner.
			existing, err = r.ByKey(ctx, record.Source, record.SourceProductID)
			if err != nil {
				return false, err
			}
			if existing == nil {
				return false, fmt.Errorf("raw record %s/%s vanished after conflicting insert", record.Source, record.SourceProductID)
			}
		} else {
			return true, nil
		}
	}

	db := r.getDB(ctx)
	now := utils.UTCNow()
	key := db.Model(&models.RawRecord{}).
		Where("source = ? AND source_product_id = ?", record.Source, record.SourceProductID)

	if existing.ContentHash == record.ContentHash {
		err := key.Updates(map[string]any{
			"fetched_at": now,
			"url":        record.URL,
			"updated_at": now,
		}).Error
		if err != nil {
			return false, fmt.Errorf("failed to touch raw record %s/%s: %w", record.Source, record.SourceProductID, err)
		}
		return false, nil
	}

	err = key.Updates(map[string]any{
		"body":         record.Body,
		"body_ref":     record.BodyRef,
		"content_hash": record.ContentHash,
		"url":          record.URL,
		"fetched_at":   now,
		"processed_at": nil,
		"process_note": nil,
		"updated_at":   now,
	}).Error
	if err != nil {
		return false, fmt.Errorf("failed to overwrite raw record %s/%s: %w", record.Source, record.SourceProductID, err)
	}
	return true, nil
}

// ListUnprocessed returns records awaiting a processing pass, oldest fetch first
func (r *RawRecordRepositoryImpl) ListUnprocessed(ctx context.Context, source models.ASPName, limit int) ([]*models.RawRecord, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.RawRecord{}).
		Where("processed_at IS NULL AND process_note IS NULL").
		Order("fetched_at ASC")
	if source != "" {
		query = query.Where("source = ?", source)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []*models.RawRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list unprocessed raw records: %w", err)
	}
	return rows, nil
}

// MarkProcessed stamps processed_at only while the record still carries
// expectedHash. A false return means a re-fetch changed the content mid-pass
// and the record stays due.
func (r *RawRecordRepositoryImpl) MarkProcessed(ctx context.Context, source models.ASPName, sourceProductID, expectedHash string) (bool, error) {
	db := r.getDB(ctx)
	now := utils.UTCNow()
	res := db.Model(&models.RawRecord{}).
		Where("source = ? AND source_product_id = ? AND content_hash = ?", source, sourceProductID, expectedHash).
		Updates(map[string]any{
			"processed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark raw record %s/%s processed: %w", source, sourceProductID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Park sets a record aside with a reason so it stops cycling through the
// queue until new content arrives. processed_at stays null: the record was
// never successfully linked, only annotated.
func (r *RawRecordRepositoryImpl) Park(ctx context.Context, source models.ASPName, sourceProductID, note string) error {
	db := r.getDB(ctx)
	err := db.Model(&models.RawRecord{}).
		Where("source = ? AND source_product_id = ?", source, sourceProductID).
		Updates(map[string]any{
			"process_note": note,
			"updated_at":   utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to park raw record %s/%s: %w", source, sourceProductID, err)
	}
	return nil
}

// ClearPark removes the park note so the record re-enters the queue on the
// next pass. A record that was since processed keeps its processed_at stamp
// and stays out of the queue.
func (r *RawRecordRepositoryImpl) ClearPark(ctx context.Context, source models.ASPName, sourceProductID string) error {
	db := r.getDB(ctx)
	err := db.Model(&models.RawRecord{}).
		Where("source = ? AND source_product_id = ?", source, sourceProductID).
		Updates(map[string]any{
			"process_note": nil,
			"updated_at":   utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to clear park on raw record %s/%s: %w", source, sourceProductID, err)
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *RawRecordRepositoryImpl) applyFilter(query *gorm.DB, filter models.RawRecordFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.SourceProductID != nil {
		query = query.Where("source_product_id = ?", *filter.SourceProductID)
	}
	if filter.ContentHash != nil {
		query = query.Where("content_hash = ?", *filter.ContentHash)
	}
	if filter.Unprocessed != nil {
		if *filter.Unprocessed {
			query = query.Where("processed_at IS NULL")
		} else {
			query = query.Where("processed_at IS NOT NULL")
		}
	}
	if filter.FetchedAfter != nil {
		query = query.Where("fetched_at > ?", *filter.FetchedAfter)
	}
	if filter.FetchedBefore != nil {
		query = query.Where("fetched_at < ?", *filter.FetchedBefore)
	}
	return query
}

// ByFilter retrieves raw records based on filter criteria
func (r *RawRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.RawRecordFilter, orderBy string, limit, offset int) ([]*models.RawRecord, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.RawRecord{})

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

	var rows []*models.RawRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of raw records matching the filter
func (r *RawRecordRepositoryImpl) Count(ctx context.Context, filter models.RawRecordFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.RawRecord{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any raw record matching the filter exists
func (r *RawRecordRepositoryImpl) Exists(ctx context.Context, filter models.RawRecordFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
