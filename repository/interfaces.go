// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/detailing-pricing/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// ServiceRepository defines operations for the detailing service catalog
type ServiceRepository interface {
	Repository[models.Service, models.ServiceFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Service, error)
	ByName(ctx context.Context, name string) (*models.Service, error)
}

// DynamicPricingRepository defines operations for pricing records
type DynamicPricingRepository interface {
	Repository[models.DynamicPricing, models.DynamicPricingFilter]
	// ActiveByServiceUUID returns the active record of a service, or nil when none exists.
	// forUpdate takes a row lock that lasts until the surrounding transaction ends.
	ActiveByServiceUUID(ctx context.Context, serviceUUID uuid.UUID, forUpdate bool) (*models.DynamicPricing, error)
	ListActive(ctx context.Context) ([]*models.DynamicPricing, error)
	Update(ctx context.Context, pricing *models.DynamicPricing) error
}

// PriceHistoryRepository defines operations for the price history ledger
type PriceHistoryRepository interface {
	Repository[models.PriceHistoryEntry, models.PriceHistoryEntryFilter]
	// ListByPricing returns entries in insertion order, optionally bounded by an inclusive time range.
	ListByPricing(ctx context.Context, pricingID uint, from, to *time.Time) ([]*models.PriceHistoryEntry, error)
	// Prune keeps at most keepLatest entries (0 keeps all) and drops entries recorded before olderThan (nil keeps all).
	Prune(ctx context.Context, pricingID uint, keepLatest int, olderThan *time.Time) (int64, error)
}
