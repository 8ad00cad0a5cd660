package repository

import (
	"context"
	"time"

	"github.com/amirphl/detailing-pricing/models"
	"gorm.io/gorm"
)

// PriceHistoryRepositoryImpl implements PriceHistoryRepository
type PriceHistoryRepositoryImpl struct {
	*BaseRepository[models.PriceHistoryEntry, models.PriceHistoryEntryFilter]
}

// NewPriceHistoryRepository creates a new repository for price history entries
func NewPriceHistoryRepository(db *gorm.DB) PriceHistoryRepository {
	return &PriceHistoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PriceHistoryEntry, models.PriceHistoryEntryFilter](db),
	}
}

// ListByPricing returns the ledger of one pricing record in insertion order.
func (r *PriceHistoryRepositoryImpl) ListByPricing(ctx context.Context, pricingID uint, from, to *time.Time) ([]*models.PriceHistoryEntry, error) {
	filter := models.PriceHistoryEntryFilter{
		PricingID:      &pricingID,
		RecordedAfter:  from,
		RecordedBefore: to,
	}
	return r.ByFilter(ctx, filter, "", 0, 0)
}

// Prune enforces the retention policy for one pricing record.
func (r *PriceHistoryRepositoryImpl) Prune(ctx context.Context, pricingID uint, keepLatest int, olderThan *time.Time) (int64, error) {
	db := r.getDB(ctx)
	var removed int64

	if olderThan != nil {
		res := db.Where("pricing_id = ? AND recorded_at < ?", pricingID, *olderThan).
			Delete(&models.PriceHistoryEntry{})
		if res.Error != nil {
			return removed, res.Error
		}
		removed += res.RowsAffected
	}

	if keepLatest > 0 {
		res := db.Exec(`
			DELETE FROM price_history_entries
			WHERE pricing_id = ? AND id NOT IN (
				SELECT id FROM price_history_entries
				WHERE pricing_id = ?
				ORDER BY recorded_at DESC, id DESC
				LIMIT ?
			)
		`, pricingID, pricingID, keepLatest)
		if res.Error != nil {
			return removed, res.Error
		}
		removed += res.RowsAffected
	}

	return removed, nil
}

func (r *PriceHistoryRepositoryImpl) applyFilter(db *gorm.DB, filter models.PriceHistoryEntryFilter) *gorm.DB {
	if filter.PricingID != nil {
		db = db.Where("pricing_id = ?", *filter.PricingID)
	}
	if filter.ServiceID != nil {
		db = db.Where("service_id = ?", *filter.ServiceID)
	}
	if filter.RecordedAfter != nil {
		db = db.Where("recorded_at >= ?", *filter.RecordedAfter)
	}
	if filter.RecordedBefore != nil {
		db = db.Where("recorded_at <= ?", *filter.RecordedBefore)
	}
	return db
}

// ByFilter retrieves history entries based on filter criteria.
func (r *PriceHistoryRepositoryImpl) ByFilter(ctx context.Context, filter models.PriceHistoryEntryFilter, orderBy string, limit, offset int) ([]*models.PriceHistoryEntry, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.PriceHistoryEntry{}), filter)

	if orderBy == "" {
		orderBy = "recorded_at ASC, id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.PriceHistoryEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of history entries matching the filter.
func (r *PriceHistoryRepositoryImpl) Count(ctx context.Context, filter models.PriceHistoryEntryFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.PriceHistoryEntry{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any history entry matching the filter exists.
func (r *PriceHistoryRepositoryImpl) Exists(ctx context.Context, filter models.PriceHistoryEntryFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
