package dto

import "time"

// DemandThresholdsInput carries a partial override of the demand tier thresholds
type DemandThresholdsInput struct {
	Low    *float64 `json:"low,omitempty"`
	Medium *float64 `json:"medium,omitempty"`
	High   *float64 `json:"high,omitempty"`
}

// PricingRulesInput carries a partial override of the pricing rules
type PricingRulesInput struct {
	MaxPriceIncreasePct *float64               `json:"maxPriceIncreasePct,omitempty"`
	MinPriceDecreasePct *float64               `json:"minPriceDecreasePct,omitempty"`
	DemandThresholds    *DemandThresholdsInput `json:"demandThresholds,omitempty"`
}

// InitializePricingRequest creates the pricing record of a service
type InitializePricingRequest struct {
	Service                string             `json:"service" validate:"required,uuid"`
	BasePrice              float64            `json:"basePrice" validate:"gt=0"`
	VehicleTypeMultipliers map[string]float64 `json:"vehicleTypeMultipliers,omitempty"`
	Rules                  *PricingRulesInput `json:"rules,omitempty"`
}

// CalculatePriceRequest recalculates the current price of a service
type CalculatePriceRequest struct {
	ServiceID   string     `json:"-"`
	VehicleType string     `json:"vehicleType,omitempty"`
	BookingTime *time.Time `json:"bookingTime,omitempty"`
}

type UpdateDemandRequest struct {
	ServiceID     string `json:"-"`
	BookingsCount int    `json:"bookingsCount" validate:"gte=0"`
	Capacity      int    `json:"capacity"`
}

type UpdateSeasonalRequest struct {
	ServiceID     string     `json:"-"`
	ReferenceDate *time.Time `json:"referenceDate,omitempty"`
}

type UpdateTimeOfDayRequest struct {
	ServiceID string `json:"-"`
	Hour      *int   `json:"hour,omitempty"`
}

// UpdatePricingFactorsRequest sets any subset of the factors directly
type UpdatePricingFactorsRequest struct {
	ServiceID             string             `json:"-"`
	DemandMultiplier      *float64           `json:"demandMultiplier,omitempty"`
	SeasonalMultiplier    *float64           `json:"seasonalMultiplier,omitempty"`
	TimeOfDayMultiplier   *float64           `json:"timeOfDayMultiplier,omitempty"`
	VehicleTypeMultiplier map[string]float64 `json:"vehicleTypeMultiplier,omitempty"`
}

type UpdatePricingRulesRequest struct {
	ServiceID string             `json:"-"`
	Rules     *PricingRulesInput `json:"rules" validate:"required"`
}

// PriceHistoryRequest selects history entries; dates are RFC3339 or YYYY-MM-DD
type PriceHistoryRequest struct {
	ServiceID string `json:"-"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

type QuoteRequest struct {
	ServiceID   string `json:"-"`
	VehicleType string `json:"vehicleType,omitempty"`
}

// FactorsDTO is the wire form of the pricing factors
type FactorsDTO struct {
	Demand      float64            `json:"demand"`
	Seasonal    float64            `json:"seasonal"`
	TimeOfDay   float64            `json:"timeOfDay"`
	VehicleType map[string]float64 `json:"vehicleType,omitempty"`
}

type DemandThresholdsDTO struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

type RulesDTO struct {
	MaxPriceIncreasePct float64             `json:"maxPriceIncreasePct"`
	MinPriceDecreasePct float64             `json:"minPriceDecreasePct"`
	DemandThresholds    DemandThresholdsDTO `json:"demandThresholds"`
}

// PricingRecordDTO is the wire form of a pricing record
type PricingRecordDTO struct {
	ID           string     `json:"id"`
	ServiceID    string     `json:"serviceId"`
	BasePrice    float64    `json:"basePrice"`
	CurrentPrice float64    `json:"currentPrice"`
	MinPrice     float64    `json:"minPrice"`
	MaxPrice     float64    `json:"maxPrice"`
	Factors      FactorsDTO `json:"factors"`
	Rules        RulesDTO   `json:"rules"`
	IsActive     bool       `json:"isActive"`
	LastUpdated  string     `json:"lastUpdated"`
	CreatedAt    string     `json:"createdAt"`
}

type PricingRecordResponse struct {
	Message string           `json:"message"`
	Pricing PricingRecordDTO `json:"pricing"`
}

type CalculatePriceResponse struct {
	ServiceID         string     `json:"serviceId"`
	CurrentPrice      float64    `json:"currentPrice"`
	BasePrice         float64    `json:"basePrice"`
	Factors           FactorsDTO `json:"factors"`
	VehicleType       string     `json:"vehicleType"`
	VehicleMultiplier float64    `json:"vehicleMultiplier"`
	MinPrice          float64    `json:"minPrice"`
	MaxPrice          float64    `json:"maxPrice"`
	Clamped           bool       `json:"clamped"`
	BookingTime       *string    `json:"bookingTime,omitempty"`
	CalculatedAt      string     `json:"calculatedAt"`
}

// PriceUpdateResponse is returned by the demand, seasonal and time-of-day updates
type PriceUpdateResponse struct {
	ServiceID    string   `json:"serviceId"`
	Multiplier   float64  `json:"multiplier"`
	DemandRatio  *float64 `json:"demandRatio,omitempty"`
	CurrentPrice float64  `json:"currentPrice"`
}

type HistoryFactorsDTO struct {
	Demand    float64 `json:"demand"`
	Seasonal  float64 `json:"seasonal"`
	TimeOfDay float64 `json:"timeOfDay"`
}

type PriceHistoryEntryDTO struct {
	Price     float64           `json:"price"`
	Factors   HistoryFactorsDTO `json:"factors"`
	Timestamp string            `json:"timestamp"`
}

type PriceHistoryResponse struct {
	ServiceID string                 `json:"serviceId"`
	Count     int                    `json:"count"`
	Entries   []PriceHistoryEntryDTO `json:"entries"`
}

type QuoteResponse struct {
	ServiceID         string  `json:"serviceId"`
	VehicleType       string  `json:"vehicleType"`
	VehicleMultiplier float64 `json:"vehicleMultiplier"`
	Price             float64 `json:"price"`
	BasePrice         float64 `json:"basePrice"`
	MinPrice          float64 `json:"minPrice"`
	MaxPrice          float64 `json:"maxPrice"`
	Clamped           bool    `json:"clamped"`
}

type ListPricingResponse struct {
	Count int                `json:"count"`
	Items []PricingRecordDTO `json:"items"`
}

type DeactivatePricingResponse struct {
	Message   string `json:"message"`
	ServiceID string `json:"serviceId"`
}
