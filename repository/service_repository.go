package repository

import (
	"context"
	"errors"

	"github.com/amirphl/detailing-pricing/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ServiceRepositoryImpl implements ServiceRepository
type ServiceRepositoryImpl struct {
	*BaseRepository[models.Service, models.ServiceFilter]
}

// NewServiceRepository creates a new repository for detailing services
func NewServiceRepository(db *gorm.DB) ServiceRepository {
	return &ServiceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Service, models.ServiceFilter](db),
	}
}

// ByUUID retrieves a service by its public identifier.
func (r *ServiceRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	db := r.getDB(ctx)
	var svc models.Service
	err := db.Where("uuid = ?", id).Last(&svc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &svc, nil
}

// ByName retrieves a service by its unique name.
func (r *ServiceRepositoryImpl) ByName(ctx context.Context, name string) (*models.Service, error) {
	db := r.getDB(ctx)
	var svc models.Service
	err := db.Where("name = ?", name).Last(&svc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &svc, nil
}

func (r *ServiceRepositoryImpl) applyFilter(db *gorm.DB, filter models.ServiceFilter) *gorm.DB {
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Name != nil {
		db = db.Where("name = ?", *filter.Name)
	}
	if filter.Category != nil {
		db = db.Where("category = ?", *filter.Category)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	return db
}

// ByFilter retrieves services based on filter criteria.
func (r *ServiceRepositoryImpl) ByFilter(ctx context.Context, filter models.ServiceFilter, orderBy string, limit, offset int) ([]*models.Service, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Service{}), filter)

	if orderBy == "" {
		orderBy = "name ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Service
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of services matching the filter.
func (r *ServiceRepositoryImpl) Count(ctx context.Context, filter models.ServiceFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Service{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any service matching the filter exists.
func (r *ServiceRepositoryImpl) Exists(ctx context.Context, filter models.ServiceFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
