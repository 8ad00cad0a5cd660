package testing

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/detailing-pricing/models"
	"github.com/amirphl/detailing-pricing/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestService inserts an active service with a random unique name
func (tf *TestFixtures) CreateTestService() (*models.Service, error) {
	svc := &models.Service{
		UUID:            uuid.New(),
		Name:            fmt.Sprintf("Full Detail %06d", rand.Intn(1000000)),
		Category:        "exterior",
		DurationMinutes: 90,
		IsActive:        utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(svc).Error; err != nil {
		return nil, fmt.Errorf("failed to create test service: %w", err)
	}
	return svc, nil
}

// CreateTestPricing inserts an active pricing record with default factors and rules
func (tf *TestFixtures) CreateTestPricing(svc *models.Service, basePrice float64) (*models.DynamicPricing, error) {
	price := decimal.NewFromFloat(basePrice).Round(2)
	now := utils.UTCNow()
	p := &models.DynamicPricing{
		UUID:         uuid.New(),
		ServiceID:    svc.ID,
		ServiceUUID:  svc.UUID,
		BasePrice:    price,
		CurrentPrice: price,
		Factors:      models.DefaultPricingFactors(),
		Rules:        models.DefaultPricingRules(),
		IsActive:     utils.ToPtr(true),
		LastUpdated:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tf.DB.DB.Create(p).Error; err != nil {
		return nil, fmt.Errorf("failed to create test pricing: %w", err)
	}
	return p, nil
}
