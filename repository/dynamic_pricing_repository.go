package repository

import (
	"context"
	"errors"

	"github.com/amirphl/detailing-pricing/models"
	"github.com/amirphl/detailing-pricing/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DynamicPricingRepositoryImpl implements DynamicPricingRepository
type DynamicPricingRepositoryImpl struct {
	*BaseRepository[models.DynamicPricing, models.DynamicPricingFilter]
}

// NewDynamicPricingRepository creates a new repository for pricing records
func NewDynamicPricingRepository(db *gorm.DB) DynamicPricingRepository {
	return &DynamicPricingRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DynamicPricing, models.DynamicPricingFilter](db),
	}
}

// ActiveByServiceUUID returns the active pricing record for a service.
func (r *DynamicPricingRepositoryImpl) ActiveByServiceUUID(ctx context.Context, serviceUUID uuid.UUID, forUpdate bool) (*models.DynamicPricing, error) {
	db := r.getDB(ctx)
	if forUpdate {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row models.DynamicPricing
	err := db.Where("service_uuid = ? AND is_active = ?", serviceUUID, true).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListActive returns every active pricing record ordered by service.
func (r *DynamicPricingRepositoryImpl) ListActive(ctx context.Context) ([]*models.DynamicPricing, error) {
	return r.ByFilter(ctx, models.DynamicPricingFilter{IsActive: utils.ToPtr(true)}, "service_id ASC", 0, 0)
}

func (r *DynamicPricingRepositoryImpl) applyFilter(db *gorm.DB, filter models.DynamicPricingFilter) *gorm.DB {
	if filter.ServiceID != nil {
		db = db.Where("service_id = ?", *filter.ServiceID)
	}
	if filter.ServiceUUID != nil {
		db = db.Where("service_uuid = ?", *filter.ServiceUUID)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	return db
}

// ByFilter retrieves pricing records based on filter criteria.
func (r *DynamicPricingRepositoryImpl) ByFilter(ctx context.Context, filter models.DynamicPricingFilter, orderBy string, limit, offset int) ([]*models.DynamicPricing, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.DynamicPricing{}), filter)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.DynamicPricing
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of pricing records matching the filter.
func (r *DynamicPricingRepositoryImpl) Count(ctx context.Context, filter models.DynamicPricingFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.DynamicPricing{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any pricing record matching the filter exists.
func (r *DynamicPricingRepositoryImpl) Exists(ctx context.Context, filter models.DynamicPricingFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
