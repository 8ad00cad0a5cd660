package models

import (
	"time"

	"github.com/amirphl/detailing-pricing/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Declared factor ranges
const (
	DemandMultiplierMin    = 0.5
	DemandMultiplierMax    = 2.0
	SeasonalMultiplierMin  = 0.8
	SeasonalMultiplierMax  = 1.5
	TimeOfDayMultiplierMin = 0.9
	TimeOfDayMultiplierMax = 1.3

	MaxPriceIncreasePctCeiling = 100
	MinPriceDecreasePctCeiling = 50
)

// PricingFactors holds the multipliers applied to the base price.
type PricingFactors struct {
	Demand      float64                                `gorm:"type:numeric(6,4);not null;default:1" json:"demand"`
	Seasonal    float64                                `gorm:"type:numeric(6,4);not null;default:1" json:"seasonal"`
	TimeOfDay   float64                                `gorm:"type:numeric(6,4);not null;default:1" json:"time_of_day"`
	VehicleType datatypes.JSONType[map[string]float64] `gorm:"type:jsonb;not null" json:"vehicle_type"`
}

// VehicleMultiplier returns the multiplier for a vehicle category; unknown categories are neutral.
func (f PricingFactors) VehicleMultiplier(vehicleType string) float64 {
	if m, ok := f.VehicleType.Data()[vehicleType]; ok {
		return m
	}
	return 1.0
}

// DemandThresholds are booking-to-capacity ratios that select a demand tier.
type DemandThresholds struct {
	Low    float64 `gorm:"type:numeric(5,4);not null;default:0.3" json:"low"`
	Medium float64 `gorm:"type:numeric(5,4);not null;default:0.6" json:"medium"`
	High   float64 `gorm:"type:numeric(5,4);not null;default:0.8" json:"high"`
}

// PricingRules bound how far the current price may move away from the base price.
type PricingRules struct {
	MaxPriceIncreasePct float64          `gorm:"type:numeric(6,2);not null;default:50" json:"max_price_increase_pct"`
	MinPriceDecreasePct float64          `gorm:"type:numeric(6,2);not null;default:20" json:"min_price_decrease_pct"`
	DemandThresholds    DemandThresholds `gorm:"embedded;embeddedPrefix:demand_threshold_" json:"demand_thresholds"`
}

// DynamicPricing is the pricing record of a single service. At most one active row per service.
// Table: dynamic_pricings
type DynamicPricing struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_dynamic_pricings_uuid" json:"uuid"`
	ServiceID    uint            `gorm:"not null;index:idx_dynamic_pricings_service_id" json:"service_id"`
	ServiceUUID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_dynamic_pricings_service_uuid" json:"service_uuid"`
	BasePrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"base_price"`
	CurrentPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"current_price"`
	Factors      PricingFactors  `gorm:"embedded;embeddedPrefix:factor_" json:"factors"`
	Rules        PricingRules    `gorm:"embedded;embeddedPrefix:rule_" json:"rules"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	LastUpdated  time.Time       `gorm:"not null" json:"last_updated"`
	CreatedAt    time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (DynamicPricing) TableName() string {
	return "dynamic_pricings"
}

type DynamicPricingFilter struct {
	ServiceID   *uint      `json:"service_id,omitempty"`
	ServiceUUID *uuid.UUID `json:"service_uuid,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

// PriceBand returns the exact [min, max] interval the current price must stay in.
func (p *DynamicPricing) PriceBand() (decimal.Decimal, decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	one := decimal.NewFromInt(1)
	minFactor := one.Sub(decimal.NewFromFloat(p.Rules.MinPriceDecreasePct).Div(hundred))
	maxFactor := one.Add(decimal.NewFromFloat(p.Rules.MaxPriceIncreasePct).Div(hundred))
	return p.BasePrice.Mul(minFactor), p.BasePrice.Mul(maxFactor)
}

// DefaultVehicleTypeMultipliers returns a fresh copy of the default vehicle multipliers.
func DefaultVehicleTypeMultipliers() map[string]float64 {
	return map[string]float64{
		utils.VehicleSedan:  1.0,
		utils.VehicleSUV:    1.2,
		utils.VehicleTruck:  1.3,
		utils.VehicleVan:    1.25,
		utils.VehicleLuxury: 1.4,
	}
}

func DefaultPricingFactors() PricingFactors {
	return PricingFactors{
		Demand:      1.0,
		Seasonal:    1.0,
		TimeOfDay:   1.0,
		VehicleType: datatypes.NewJSONType(DefaultVehicleTypeMultipliers()),
	}
}

func DefaultPricingRules() PricingRules {
	return PricingRules{
		MaxPriceIncreasePct: 50,
		MinPriceDecreasePct: 20,
		DemandThresholds: DemandThresholds{
			Low:    0.3,
			Medium: 0.6,
			High:   0.8,
		},
	}
}
