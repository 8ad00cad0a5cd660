package businessflow

import (
	"fmt"
	"time"

	"github.com/amirphl/detailing-pricing/app/dto"
	"github.com/amirphl/detailing-pricing/models"
	"github.com/amirphl/detailing-pricing/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Demand tier multipliers
const (
	demandHighMultiplier    = 1.5
	demandMediumMultiplier  = 1.25
	demandLowMultiplier     = 0.8
	demandNeutralMultiplier = 1.0
)

// DemandMultiplier maps a bookings-to-capacity ratio to a demand tier.
// Ratios strictly between low and medium stay neutral.
func DemandMultiplier(ratio float64, t models.DemandThresholds) float64 {
	switch {
	case ratio >= t.High:
		return demandHighMultiplier
	case ratio >= t.Medium:
		return demandMediumMultiplier
	case ratio <= t.Low:
		return demandLowMultiplier
	default:
		return demandNeutralMultiplier
	}
}

// SeasonalMultiplier maps the calendar month of t (in loc) to a seasonal multiplier.
func SeasonalMultiplier(t time.Time, loc *time.Location) float64 {
	if loc != nil {
		t = t.In(loc)
	}
	switch monthIdx := int(t.Month()) - 1; {
	case monthIdx >= 5 && monthIdx <= 7:
		return 1.3
	case monthIdx >= 2 && monthIdx <= 4, monthIdx >= 8 && monthIdx <= 10:
		return 1.1
	default:
		return 0.9
	}
}

// TimeOfDayMultiplier maps an hour of the day (0-23) to a time-of-day multiplier.
func TimeOfDayMultiplier(hour int) float64 {
	switch {
	case hour >= 9 && hour <= 17:
		return 1.2
	case hour >= 7 && hour <= 8, hour >= 18 && hour <= 19:
		return 1.1
	default:
		return 0.9
	}
}

// PriceComputation is the outcome of applying factors and the clamp band to a base price.
type PriceComputation struct {
	Raw               decimal.Decimal
	Price             decimal.Decimal
	MinPrice          decimal.Decimal
	MaxPrice          decimal.Decimal
	VehicleType       string
	VehicleMultiplier float64
	Clamped           string // "", "min" or "max"
}

// ComputePrice multiplies the base price by every factor and clamps the result.
func ComputePrice(p *models.DynamicPricing, vehicleType string) PriceComputation {
	vehicleType = utils.NormalizeKey(vehicleType)
	vehicle := p.Factors.VehicleMultiplier(vehicleType)

	raw := p.BasePrice.
		Mul(decimal.NewFromFloat(p.Factors.Demand)).
		Mul(decimal.NewFromFloat(p.Factors.Seasonal)).
		Mul(decimal.NewFromFloat(p.Factors.TimeOfDay)).
		Mul(decimal.NewFromFloat(vehicle))

	minPrice, maxPrice := RoundedPriceBand(p)

	out := PriceComputation{
		Raw:               raw,
		MinPrice:          minPrice,
		MaxPrice:          maxPrice,
		VehicleType:       vehicleType,
		VehicleMultiplier: vehicle,
	}

	price := raw.Round(2)
	switch {
	case price.GreaterThan(maxPrice):
		out.Price = maxPrice
		out.Clamped = "max"
	case price.LessThan(minPrice):
		out.Price = minPrice
		out.Clamped = "min"
	default:
		out.Price = price
	}
	return out
}

// RoundedPriceBand returns the clamp band rounded inward to whole cents.
func RoundedPriceBand(p *models.DynamicPricing) (decimal.Decimal, decimal.Decimal) {
	exactMin, exactMax := p.PriceBand()
	minPrice := exactMin.RoundCeil(2)
	maxPrice := exactMax.RoundFloor(2)
	if minPrice.GreaterThan(maxPrice) {
		minPrice = maxPrice
	}
	return minPrice, maxPrice
}

func checkRange(name string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrFactorOutOfRange, name, v, lo, hi)
	}
	return nil
}

func validateVehicleMultipliers(m map[string]float64) error {
	for k, v := range m {
		if utils.NormalizeKey(k) == "" {
			return fmt.Errorf("%w: vehicle type must not be empty", ErrFactorOutOfRange)
		}
		if v <= 0 {
			return fmt.Errorf("%w: vehicle multiplier for %q must be greater than zero", ErrFactorOutOfRange, k)
		}
	}
	return nil
}

// ValidateFactors checks every factor against its declared range.
func ValidateFactors(f models.PricingFactors) error {
	if err := checkRange("demand multiplier", f.Demand, models.DemandMultiplierMin, models.DemandMultiplierMax); err != nil {
		return err
	}
	if err := checkRange("seasonal multiplier", f.Seasonal, models.SeasonalMultiplierMin, models.SeasonalMultiplierMax); err != nil {
		return err
	}
	if err := checkRange("time of day multiplier", f.TimeOfDay, models.TimeOfDayMultiplierMin, models.TimeOfDayMultiplierMax); err != nil {
		return err
	}
	return validateVehicleMultipliers(f.VehicleType.Data())
}

// ValidateRules checks the clamp percentages and demand thresholds.
func ValidateRules(r models.PricingRules) error {
	if r.MaxPriceIncreasePct < 0 || r.MaxPriceIncreasePct > models.MaxPriceIncreasePctCeiling {
		return fmt.Errorf("%w: max price increase %v%% outside [0, %d]", ErrRuleOutOfRange, r.MaxPriceIncreasePct, models.MaxPriceIncreasePctCeiling)
	}
	if r.MinPriceDecreasePct < 0 || r.MinPriceDecreasePct > models.MinPriceDecreasePctCeiling {
		return fmt.Errorf("%w: min price decrease %v%% outside [0, %d]", ErrRuleOutOfRange, r.MinPriceDecreasePct, models.MinPriceDecreasePctCeiling)
	}
	t := r.DemandThresholds
	for _, v := range []float64{t.Low, t.Medium, t.High} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: demand threshold %v outside [0, 1]", ErrRuleOutOfRange, v)
		}
	}
	if t.Low > t.Medium || t.Medium > t.High {
		return fmt.Errorf("%w: demand thresholds must satisfy low <= medium <= high", ErrRuleOutOfRange)
	}
	return nil
}

// mergeVehicleMultipliers shallow-merges overrides onto base; keys are normalized.
func mergeVehicleMultipliers(base, overrides map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[utils.NormalizeKey(k)] = v
	}
	return out
}

// mergeRules applies a partial rules override.
func mergeRules(base models.PricingRules, in *dto.PricingRulesInput) models.PricingRules {
	if in == nil {
		return base
	}
	if in.MaxPriceIncreasePct != nil {
		base.MaxPriceIncreasePct = *in.MaxPriceIncreasePct
	}
	if in.MinPriceDecreasePct != nil {
		base.MinPriceDecreasePct = *in.MinPriceDecreasePct
	}
	if t := in.DemandThresholds; t != nil {
		if t.Low != nil {
			base.DemandThresholds.Low = *t.Low
		}
		if t.Medium != nil {
			base.DemandThresholds.Medium = *t.Medium
		}
		if t.High != nil {
			base.DemandThresholds.High = *t.High
		}
	}
	return base
}

// mergeFactors applies a partial factors override.
func mergeFactors(base models.PricingFactors, req *dto.UpdatePricingFactorsRequest) models.PricingFactors {
	if req.DemandMultiplier != nil {
		base.Demand = *req.DemandMultiplier
	}
	if req.SeasonalMultiplier != nil {
		base.Seasonal = *req.SeasonalMultiplier
	}
	if req.TimeOfDayMultiplier != nil {
		base.TimeOfDay = *req.TimeOfDayMultiplier
	}
	if len(req.VehicleTypeMultiplier) > 0 {
		base.VehicleType = datatypes.NewJSONType(mergeVehicleMultipliers(base.VehicleType.Data(), req.VehicleTypeMultiplier))
	}
	return base
}
