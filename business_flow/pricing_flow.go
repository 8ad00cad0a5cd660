package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/detailing-pricing/app/dto"
	"github.com/amirphl/detailing-pricing/app/services"
	"github.com/amirphl/detailing-pricing/config"
	"github.com/amirphl/detailing-pricing/models"
	"github.com/amirphl/detailing-pricing/repository"
	"github.com/amirphl/detailing-pricing/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var minBasePrice = decimal.New(1, -2)

// PricingFlow maintains one bounded, multi-factor price per service together with its history.
type PricingFlow interface {
	Initialize(ctx context.Context, req *dto.InitializePricingRequest) (*dto.PricingRecordResponse, error)
	CalculatePrice(ctx context.Context, req *dto.CalculatePriceRequest) (*dto.CalculatePriceResponse, error)
	UpdateDemandMultiplier(ctx context.Context, req *dto.UpdateDemandRequest) (*dto.PriceUpdateResponse, error)
	UpdateSeasonalMultiplier(ctx context.Context, req *dto.UpdateSeasonalRequest) (*dto.PriceUpdateResponse, error)
	UpdateTimeOfDayMultiplier(ctx context.Context, req *dto.UpdateTimeOfDayRequest) (*dto.PriceUpdateResponse, error)
	UpdatePricingFactors(ctx context.Context, req *dto.UpdatePricingFactorsRequest) (*dto.PricingRecordResponse, error)
	UpdatePricingRules(ctx context.Context, req *dto.UpdatePricingRulesRequest) (*dto.PricingRecordResponse, error)
	GetPriceHistory(ctx context.Context, req *dto.PriceHistoryRequest) (*dto.PriceHistoryResponse, error)
	ExportPriceHistory(ctx context.Context, req *dto.PriceHistoryRequest) (string, []byte, error)
	GetPricing(ctx context.Context, serviceID string) (*dto.PricingRecordResponse, error)
	GetQuote(ctx context.Context, req *dto.QuoteRequest) (*dto.QuoteResponse, error)
	Deactivate(ctx context.Context, serviceID string) (*dto.DeactivatePricingResponse, error)
	ListActive(ctx context.Context) (*dto.ListPricingResponse, error)
	RefreshTimeFactors(ctx context.Context, serviceID string, at time.Time) (*dto.PricingRecordResponse, error)
}

// PricingFlowImpl implements PricingFlow
type PricingFlowImpl struct {
	serviceRepo repository.ServiceRepository
	pricingRepo repository.DynamicPricingRepository
	historyRepo repository.PriceHistoryRepository
	txManager   repository.TxManager
	cache       services.PriceCache
	clock       utils.Clock
	cfg         config.PricingConfig
	loc         *time.Location
	locks       *serviceLocks
}

// NewPricingFlow creates a new pricing flow
func NewPricingFlow(
	serviceRepo repository.ServiceRepository,
	pricingRepo repository.DynamicPricingRepository,
	historyRepo repository.PriceHistoryRepository,
	txManager repository.TxManager,
	cache services.PriceCache,
	clock utils.Clock,
	cfg config.PricingConfig,
) PricingFlow {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if cache == nil {
		cache = services.NopPriceCache{}
	}
	if strings.TrimSpace(cfg.DefaultVehicleType) == "" {
		cfg.DefaultVehicleType = utils.VehicleSedan
	}
	return &PricingFlowImpl{
		serviceRepo: serviceRepo,
		pricingRepo: pricingRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		cache:       cache,
		clock:       clock,
		cfg:         cfg,
		loc:         cfg.Location(),
		locks:       newServiceLocks(),
	}
}

// Initialize creates the pricing record of a service and runs the first calculation.
func (f *PricingFlowImpl) Initialize(ctx context.Context, req *dto.InitializePricingRequest) (*dto.PricingRecordResponse, error) {
	serviceID, err := parseServiceID(req.Service)
	if err != nil {
		return nil, err
	}

	basePrice := decimal.NewFromFloat(req.BasePrice).Round(2)
	if req.BasePrice <= 0 || basePrice.LessThan(minBasePrice) {
		return nil, NewBusinessError("BASE_PRICE_INVALID", "Base price must be greater than zero", ErrBasePriceInvalid)
	}

	factors := models.DefaultPricingFactors()
	if len(req.VehicleTypeMultipliers) > 0 {
		factors.VehicleType = datatypes.NewJSONType(mergeVehicleMultipliers(models.DefaultVehicleTypeMultipliers(), req.VehicleTypeMultipliers))
	}
	if err := ValidateFactors(factors); err != nil {
		return nil, NewBusinessError("PRICING_FACTORS_INVALID", "Vehicle type multipliers are invalid", err)
	}
	rules := mergeRules(models.DefaultPricingRules(), req.Rules)
	if err := ValidateRules(rules); err != nil {
		return nil, NewBusinessError("PRICING_RULES_INVALID", "Pricing rules are invalid", err)
	}

	unlock := f.locks.lock(serviceID.String())
	defer unlock()

	var pricing *models.DynamicPricing
	err = f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		svc, err := f.serviceRepo.ByUUID(txCtx, serviceID)
		if err != nil {
			return newPersistenceError("SERVICE_LOAD_FAILED", "Failed to load service", err)
		}
		if svc == nil {
			return NewBusinessError("SERVICE_NOT_FOUND", "Service not found", ErrServiceNotFound)
		}
		if !utils.IsTrue(svc.IsActive) {
			return NewBusinessError("SERVICE_INACTIVE", "Service is inactive", ErrServiceInactive)
		}

		existing, err := f.pricingRepo.ActiveByServiceUUID(txCtx, serviceID, true)
		if err != nil {
			return newPersistenceError("PRICING_LOAD_FAILED", "Failed to load pricing record", err)
		}
		if existing != nil {
			return NewBusinessError("PRICING_ALREADY_EXISTS", "Pricing is already initialized for this service", ErrPricingAlreadyExists)
		}

		now := f.clock.Now()
		p := &models.DynamicPricing{
			UUID:         uuid.New(),
			ServiceID:    svc.ID,
			ServiceUUID:  svc.UUID,
			BasePrice:    basePrice,
			CurrentPrice: basePrice,
			Factors:      factors,
			Rules:        rules,
			IsActive:     utils.ToPtr(true),
			LastUpdated:  now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := f.pricingRepo.Save(txCtx, p); err != nil {
			return newPersistenceError("PRICING_CREATE_FAILED", "Failed to create pricing record", err)
		}
		if _, err := f.recalculate(txCtx, "initialize", p, "", now); err != nil {
			return err
		}
		pricing = p
		return nil
	})
	if err != nil {
		recordFailure("initialize", err)
		return nil, err
	}
	f.cache.Invalidate(ctx, serviceID.String())

	return &dto.PricingRecordResponse{
		Message: "Pricing initialized successfully",
		Pricing: ToPricingRecordDTO(pricing),
	}, nil
}

// CalculatePrice recomputes, persists and records the current price of a service.
func (f *PricingFlowImpl) CalculatePrice(ctx context.Context, req *dto.CalculatePriceRequest) (*dto.CalculatePriceResponse, error) {
	serviceID, err := parseServiceID(req.ServiceID)
	if err != nil {
		return nil, err
	}

	p, comp, err := f.mutate(ctx, "calculate_price", serviceID, req.VehicleType, nil)
	if err != nil {
		return nil, err
	}

	bookingTime := p.LastUpdated
	if req.BookingTime != nil {
		bookingTime = *req.BookingTime
	}
	bt := bookingTime.UTC().Format(time.RFC3339)

	return &dto.CalculatePriceResponse{
		ServiceID:         p.ServiceUUID.String(),
		CurrentPrice:      comp.Price.InexactFloat64(),
		BasePrice:         p.BasePrice.InexactFloat64(),
		Factors:           toFactorsDTO(p.Factors),
		VehicleType:       comp.VehicleType,
		VehicleMultiplier: comp.VehicleMultiplier,
		MinPrice:          comp.MinPrice.InexactFloat64(),
		MaxPrice:          comp.MaxPrice.InexactFloat64(),
		Clamped:           comp.Clamped != "",
		BookingTime:       &bt,
		CalculatedAt:      p.LastUpdated.UTC().Format(time.RFC3339),
	}, nil
}

// UpdateDemandMultiplier picks the demand tier for bookingsCount/capacity and recalculates.
func (f *PricingFlowImpl) UpdateDemandMultiplier(ctx context.Context, req *dto.UpdateDemandRequest) (*dto.PriceUpdateResponse, error) {
	serviceID, err := parseServiceID(req.ServiceID)
	if err != nil {
		return nil, err
	}
	if req.Capacity <= 0 {
		return nil, NewBusinessError("CAPACITY_INVALID", "Capacity must be greater than zero", ErrCapacityInvalid)
	}
	if req.BookingsCount < 0 {
		return nil, NewBusinessError("BOOKINGS_COUNT_INVALID", "Bookings count must not be negative", ErrBookingsInvalid)
	}

	ratio := float64(req.BookingsCount) / float64(req.Capacity)
	var multiplier float64
	p, comp, err := f.mutate(ctx, "update_demand", serviceID, "", func(p *models.DynamicPricing, _ time.Time) error {
		multiplier = DemandMultiplier(ratio, p.Rules.DemandThresholds)
		p.Factors.Demand = multiplier
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.PriceUpdateResponse{
		ServiceID:    p.ServiceUUID.String(),
		Multiplier:   multiplier,
		DemandRatio:  &ratio,
		CurrentPrice: comp.Price.InexactFloat64(),
	}, nil
}

// UpdateSeasonalMultiplier derives the seasonal factor from a reference date and recalculates.
func (f *PricingFlowImpl) UpdateSeasonalMultiplier(ctx context.Context, req *dto.UpdateSeasonalRequest) (*dto.PriceUpdateResponse, error) {
	serviceID, err := parseServiceID(req.ServiceID)
	if err != nil {
		return nil, err
	}

	var multiplier float64
	p, comp, err := f.mutate(ctx, "update_seasonal", serviceID, "", func(p *models.DynamicPricing, now time.Time) error {
		ref := now
		if req.ReferenceDate != nil {
			ref = *req.ReferenceDate
		}
		multiplier = SeasonalMultiplier(ref, f.loc)
		p.Factors.Seasonal = multiplier
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.PriceUpdateResponse{
		ServiceID:    p.ServiceUUID.String(),
		Multiplier:   multiplier,
		CurrentPrice: comp.Price.InexactFloat64(),
	}, nil
}

// UpdateTimeOfDayMultiplier derives the time-of-day factor from an hour and recalculates.
func (f *PricingFlowImpl) UpdateTimeOfDayMultiplier(ctx context.Context, req *dto.UpdateTimeOfDayRequest) (*dto.PriceUpdateResponse, error) {
	serviceID, err := parseServiceID(req.ServiceID)
	if err != nil {
		return nil, err
	}
	if req.Hour != nil && (*req.Hour < 0 || *req.Hour > 23) {
		return nil, NewBusinessError("HOUR_INVALID", "Hour must be between 0 and 23", ErrHourInvalid)
	}

	var multiplier float64
	p, comp, err := f.mutate(ctx, "update_time_of_day", serviceID, "", func(p *models.DynamicPricing, now time.Time) error {
		hour := now.In(f.loc).Hour()
		if req.Hour != nil {
			hour = *req.Hour
		}
		multiplier = TimeOfDayMultiplier(hour)
		p.Factors.TimeOfDay = multiplier
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.PriceUpdateResponse{
		ServiceID:    p.ServiceUUID.String(),
		Multiplier:   multiplier,
		CurrentPrice: comp.Price.InexactFloat64(),
	}, nil
}

// UpdatePricingFactors merges factor overrides, validates them and recalculates.
func (f *PricingFlowImpl) UpdatePricingFactors(ctx context.Context, req *dto.UpdatePricingFactorsRequest) (*dto.PricingRecordResponse, error) {
	serviceID, err := parseServiceID(req.ServiceID)
	if err != nil {
		return nil, err
	}

	p, _, err := f.mutate(ctx, "update_factors", serviceID, "", func(p *models.DynamicPricing, _ time.Time) error {
		merged := mergeFactors(p.Factors, req)
		if err := ValidateFactors(merged); err != nil {
			return NewBusinessError("PRICING_FACTORS_INVALID", "Pricing factors are invalid", err)
		}
		p.Factors = merged
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.PricingRecordResponse{
		Message: "Pricing factors updated successfully",
		Pricing: ToPricingRecordDTO(p),
	}, nil
}

// UpdatePricingRules merges rule overrides, validates them and recalculates.
func (f *PricingFlowImpl) UpdatePricingRules(ctx context.Context, req *dto.UpdatePricingRulesRequest) (*dto.PricingRecordResponse, error) {
	serviceID, err := parseServiceID(req.ServiceID)
	if err != nil {
		return nil, err
	}
	if req.Rules == nil {
		return nil, NewBusinessError("PRICING_RULES_REQUIRED", "Pricing rules are required", fmt.Errorf("%w: rules are required", ErrValidation))
	}

	p, _, err := f.mutate(ctx, "update_rules", serviceID, "", func(p *models.DynamicPricing, _ time.Time) error {
		merged := mergeRules(p.Rules, req.Rules)
		if err := ValidateRules(merged); err != nil {
			return NewBusinessError("PRICING_RULES_INVALID", "Pricing rules are invalid", err)
		}
		p.Rules = merged
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.PricingRecordResponse{
		Message: "Pricing rules updated successfully",
		Pricing: ToPricingRecordDTO(p),
	}, nil
}

// GetPriceHistory returns the history of the active record within an optional date range.
func (f *PricingFlowImpl) GetPriceHistory(ctx context.Context, req *dto.PriceHistoryRequest) (*dto.PriceHistoryResponse, error) {
	serviceID, entries, err := f.loadHistory(ctx, req)
	if err != nil {
		recordFailure("get_history", err)
		return nil, err
	}

	items := make([]dto.PriceHistoryEntryDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.PriceHistoryEntryDTO{
			Price: e.Price.InexactFloat64(),
			Factors: dto.HistoryFactorsDTO{
				Demand:    e.Demand,
				Seasonal:  e.Seasonal,
				TimeOfDay: e.TimeOfDay,
			},
			Timestamp: e.RecordedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	return &dto.PriceHistoryResponse{
		ServiceID: serviceID.String(),
		Count:     len(items),
		Entries:   items,
	}, nil
}

func (f *PricingFlowImpl) loadHistory(ctx context.Context, req *dto.PriceHistoryRequest) (uuid.UUID, []*models.PriceHistoryEntry, error) {
	serviceID, err := parseServiceID(req.ServiceID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	from, to, err := f.parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return uuid.Nil, nil, err
	}

	p, err := f.pricingRepo.ActiveByServiceUUID(ctx, serviceID, false)
	if err != nil {
		return uuid.Nil, nil, newPersistenceError("PRICING_LOAD_FAILED", "Failed to load pricing record", err)
	}
	if p == nil {
		return uuid.Nil, nil, NewBusinessError("PRICING_NOT_FOUND", "Pricing record not found for service", ErrPricingNotFound)
	}

	entries, err := f.historyRepo.ListByPricing(ctx, p.ID, from, to)
	if err != nil {
		return uuid.Nil, nil, newPersistenceError("PRICE_HISTORY_LOAD_FAILED", "Failed to load price history", err)
	}
	return serviceID, entries, nil
}

// GetPricing returns the active record, served from the snapshot cache when possible.
func (f *PricingFlowImpl) GetPricing(ctx context.Context, serviceID string) (*dto.PricingRecordResponse, error) {
	id, err := parseServiceID(serviceID)
	if err != nil {
		return nil, err
	}
	p, err := f.snapshot(ctx, id)
	if err != nil {
		recordFailure("get_pricing", err)
		return nil, err
	}
	return &dto.PricingRecordResponse{
		Message: "Pricing retrieved successfully",
		Pricing: ToPricingRecordDTO(p),
	}, nil
}

// GetQuote previews the price for a vehicle type without persisting anything.
func (f *PricingFlowImpl) GetQuote(ctx context.Context, req *dto.QuoteRequest) (*dto.QuoteResponse, error) {
	id, err := parseServiceID(req.ServiceID)
	if err != nil {
		return nil, err
	}
	p, err := f.snapshot(ctx, id)
	if err != nil {
		recordFailure("get_quote", err)
		return nil, err
	}

	vehicleType := req.VehicleType
	if strings.TrimSpace(vehicleType) == "" {
		vehicleType = f.cfg.DefaultVehicleType
	}
	comp := ComputePrice(p, vehicleType)

	return &dto.QuoteResponse{
		ServiceID:         p.ServiceUUID.String(),
		VehicleType:       comp.VehicleType,
		VehicleMultiplier: comp.VehicleMultiplier,
		Price:             comp.Price.InexactFloat64(),
		BasePrice:         p.BasePrice.InexactFloat64(),
		MinPrice:          comp.MinPrice.InexactFloat64(),
		MaxPrice:          comp.MaxPrice.InexactFloat64(),
		Clamped:           comp.Clamped != "",
	}, nil
}

// Deactivate soft-deletes the active record of a service.
func (f *PricingFlowImpl) Deactivate(ctx context.Context, serviceID string) (*dto.DeactivatePricingResponse, error) {
	id, err := parseServiceID(serviceID)
	if err != nil {
		return nil, err
	}

	unlock := f.locks.lock(id.String())
	defer unlock()

	err = f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		p, err := f.pricingRepo.ActiveByServiceUUID(txCtx, id, true)
		if err != nil {
			return newPersistenceError("PRICING_LOAD_FAILED", "Failed to load pricing record", err)
		}
		if p == nil {
			return NewBusinessError("PRICING_NOT_FOUND", "Pricing record not found for service", ErrPricingNotFound)
		}
		p.IsActive = utils.ToPtr(false)
		p.UpdatedAt = f.clock.Now()
		if err := f.pricingRepo.Update(txCtx, p); err != nil {
			return newPersistenceError("PRICING_SAVE_FAILED", "Failed to save pricing record", err)
		}
		return nil
	})
	if err != nil {
		recordFailure("deactivate", err)
		return nil, err
	}
	f.cache.Invalidate(ctx, id.String())

	return &dto.DeactivatePricingResponse{
		Message:   "Pricing deactivated successfully",
		ServiceID: id.String(),
	}, nil
}

// ListActive returns every active pricing record.
func (f *PricingFlowImpl) ListActive(ctx context.Context) (*dto.ListPricingResponse, error) {
	rows, err := f.pricingRepo.ListActive(ctx)
	if err != nil {
		err = newPersistenceError("PRICING_LIST_FAILED", "Failed to list pricing records", err)
		recordFailure("list_active", err)
		return nil, err
	}

	items := make([]dto.PricingRecordDTO, 0, len(rows))
	for _, p := range rows {
		items = append(items, ToPricingRecordDTO(p))
	}
	return &dto.ListPricingResponse{Count: len(items), Items: items}, nil
}

// RefreshTimeFactors sets the seasonal and time-of-day factors for instant at and recalculates once.
func (f *PricingFlowImpl) RefreshTimeFactors(ctx context.Context, serviceID string, at time.Time) (*dto.PricingRecordResponse, error) {
	id, err := parseServiceID(serviceID)
	if err != nil {
		return nil, err
	}

	p, _, err := f.mutate(ctx, "scheduled_refresh", id, "", func(p *models.DynamicPricing, _ time.Time) error {
		p.Factors.Seasonal = SeasonalMultiplier(at, f.loc)
		p.Factors.TimeOfDay = TimeOfDayMultiplier(at.In(f.loc).Hour())
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.PricingRecordResponse{
		Message: "Pricing refreshed successfully",
		Pricing: ToPricingRecordDTO(p),
	}, nil
}

// mutate runs a read-modify-write sequence on the active record of a service.
// The per-service lock is held for the whole transaction.
func (f *PricingFlowImpl) mutate(
	ctx context.Context,
	operation string,
	serviceID uuid.UUID,
	vehicleType string,
	apply func(p *models.DynamicPricing, now time.Time) error,
) (*models.DynamicPricing, PriceComputation, error) {
	key := serviceID.String()
	unlock := f.locks.lock(key)
	defer unlock()

	var (
		pricing *models.DynamicPricing
		comp    PriceComputation
	)
	err := f.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		p, err := f.pricingRepo.ActiveByServiceUUID(txCtx, serviceID, true)
		if err != nil {
			return newPersistenceError("PRICING_LOAD_FAILED", "Failed to load pricing record", err)
		}
		if p == nil {
			return NewBusinessError("PRICING_NOT_FOUND", "Pricing record not found for service", ErrPricingNotFound)
		}

		// history timestamps must never go backwards
		now := f.clock.Now()
		if now.Before(p.LastUpdated) {
			now = p.LastUpdated
		}

		if apply != nil {
			if err := apply(p, now); err != nil {
				return err
			}
		}

		c, err := f.recalculate(txCtx, operation, p, vehicleType, now)
		if err != nil {
			return err
		}
		pricing, comp = p, c
		return nil
	})
	if err != nil {
		recordFailure(operation, err)
		return nil, PriceComputation{}, err
	}
	f.cache.Invalidate(ctx, key)

	return pricing, comp, nil
}

// recalculate applies the factors, persists the record and appends a history entry.
func (f *PricingFlowImpl) recalculate(ctx context.Context, operation string, p *models.DynamicPricing, vehicleType string, now time.Time) (PriceComputation, error) {
	if strings.TrimSpace(vehicleType) == "" {
		vehicleType = f.cfg.DefaultVehicleType
	}
	comp := ComputePrice(p, vehicleType)

	p.CurrentPrice = comp.Price
	p.LastUpdated = now
	p.UpdatedAt = now
	if err := f.pricingRepo.Update(ctx, p); err != nil {
		return comp, newPersistenceError("PRICING_SAVE_FAILED", "Failed to save pricing record", err)
	}

	entry := &models.PriceHistoryEntry{
		PricingID:  p.ID,
		ServiceID:  p.ServiceID,
		Price:      comp.Price,
		Demand:     p.Factors.Demand,
		Seasonal:   p.Factors.Seasonal,
		TimeOfDay:  p.Factors.TimeOfDay,
		RecordedAt: now,
	}
	if err := f.historyRepo.Save(ctx, entry); err != nil {
		return comp, newPersistenceError("PRICE_HISTORY_SAVE_FAILED", "Failed to append price history", err)
	}

	if f.cfg.HistoryMaxEntries > 0 || f.cfg.HistoryMaxAge > 0 {
		var olderThan *time.Time
		if f.cfg.HistoryMaxAge > 0 {
			cutoff := now.Add(-f.cfg.HistoryMaxAge)
			olderThan = &cutoff
		}
		removed, err := f.historyRepo.Prune(ctx, p.ID, f.cfg.HistoryMaxEntries, olderThan)
		if err != nil {
			return comp, newPersistenceError("PRICE_HISTORY_PRUNE_FAILED", "Failed to apply price history retention", err)
		}
		pricingHistoryPrunedTotal.Add(float64(removed))
	}

	pricingRecalculationsTotal.WithLabelValues(operation).Inc()
	if comp.Clamped != "" {
		pricingClampsTotal.WithLabelValues(comp.Clamped).Inc()
	}
	return comp, nil
}

// snapshot loads the active record through the cache.
func (f *PricingFlowImpl) snapshot(ctx context.Context, serviceID uuid.UUID) (*models.DynamicPricing, error) {
	if p, ok := f.cache.Get(ctx, serviceID.String()); ok {
		return p, nil
	}
	p, err := f.pricingRepo.ActiveByServiceUUID(ctx, serviceID, false)
	if err != nil {
		return nil, newPersistenceError("PRICING_LOAD_FAILED", "Failed to load pricing record", err)
	}
	if p == nil {
		return nil, NewBusinessError("PRICING_NOT_FOUND", "Pricing record not found for service", ErrPricingNotFound)
	}
	f.cache.Set(ctx, p)
	return p, nil
}

func (f *PricingFlowImpl) parseDateRange(start, end string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if s := strings.TrimSpace(start); s != "" {
		t, _, err := utils.ParseDateOrTime(s, f.loc)
		if err != nil {
			return nil, nil, NewBusinessErrorf("INVALID_START_DATE", "Invalid start date %q", ErrInvalidDate, s)
		}
		from = &t
	}
	if s := strings.TrimSpace(end); s != "" {
		t, dateOnly, err := utils.ParseDateOrTime(s, f.loc)
		if err != nil {
			return nil, nil, NewBusinessErrorf("INVALID_END_DATE", "Invalid end date %q", ErrInvalidDate, s)
		}
		if dateOnly {
			t = utils.EndOfDay(t, f.loc)
		}
		to = &t
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, NewBusinessError("INVALID_DATE_RANGE", "Start date must not be after end date", ErrInvalidDateRange)
	}
	return from, to, nil
}

func parseServiceID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, NewBusinessError("INVALID_SERVICE_ID", "Service id must be a valid UUID", ErrServiceIDInvalid)
	}
	return id, nil
}

func toFactorsDTO(f models.PricingFactors) dto.FactorsDTO {
	return dto.FactorsDTO{
		Demand:      f.Demand,
		Seasonal:    f.Seasonal,
		TimeOfDay:   f.TimeOfDay,
		VehicleType: f.VehicleType.Data(),
	}
}

// ToPricingRecordDTO converts a pricing record to its wire form
func ToPricingRecordDTO(p *models.DynamicPricing) dto.PricingRecordDTO {
	minPrice, maxPrice := RoundedPriceBand(p)
	return dto.PricingRecordDTO{
		ID:           p.UUID.String(),
		ServiceID:    p.ServiceUUID.String(),
		BasePrice:    p.BasePrice.InexactFloat64(),
		CurrentPrice: p.CurrentPrice.InexactFloat64(),
		MinPrice:     minPrice.InexactFloat64(),
		MaxPrice:     maxPrice.InexactFloat64(),
		Factors:      toFactorsDTO(p.Factors),
		Rules: dto.RulesDTO{
			MaxPriceIncreasePct: p.Rules.MaxPriceIncreasePct,
			MinPriceDecreasePct: p.Rules.MinPriceDecreasePct,
			DemandThresholds: dto.DemandThresholdsDTO{
				Low:    p.Rules.DemandThresholds.Low,
				Medium: p.Rules.DemandThresholds.Medium,
				High:   p.Rules.DemandThresholds.High,
			},
		},
		IsActive:    utils.IsTrue(p.IsActive),
		LastUpdated: p.LastUpdated.UTC().Format(time.RFC3339),
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
