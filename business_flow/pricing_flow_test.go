package businessflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/detailing-pricing/app/dto"
	"github.com/amirphl/detailing-pricing/config"
	"github.com/amirphl/detailing-pricing/models"
	"github.com/amirphl/detailing-pricing/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pricingHarness struct {
	flow     *PricingFlowImpl
	services *fakeServiceRepo
	pricings *fakePricingRepo
	history  *fakeHistoryRepo
	cache    *recordingCache
	clock    *utils.FixedClock
}

func newPricingHarness(t *testing.T, mutateCfg ...func(*config.PricingConfig)) *pricingHarness {
	t.Helper()
	cfg := config.PricingConfig{
		Timezone:           "UTC",
		DefaultVehicleType: "sedan",
		HistoryMaxEntries:  1000,
	}
	for _, m := range mutateCfg {
		m(&cfg)
	}
	h := &pricingHarness{
		services: newFakeServiceRepo(),
		pricings: newFakePricingRepo(),
		history:  newFakeHistoryRepo(),
		cache:    newRecordingCache(),
		clock:    &utils.FixedClock{T: time.Date(2024, time.March, 10, 3, 0, 0, 0, time.UTC)},
	}
	flow := NewPricingFlow(h.services, h.pricings, h.history, passThroughTx{}, h.cache, h.clock, cfg)
	h.flow = flow.(*PricingFlowImpl)
	return h
}

// initialized creates an active service with a pricing record at the given base price
func (h *pricingHarness) initialized(t *testing.T, basePrice float64) string {
	t.Helper()
	svc := h.services.add("Full Detail "+uuid.NewString()[:8], true)
	_, err := h.flow.Initialize(context.Background(), &dto.InitializePricingRequest{
		Service:   svc.UUID.String(),
		BasePrice: basePrice,
	})
	require.NoError(t, err)
	return svc.UUID.String()
}

func (h *pricingHarness) historyOf(t *testing.T, serviceID string) []dto.PriceHistoryEntryDTO {
	t.Helper()
	res, err := h.flow.GetPriceHistory(context.Background(), &dto.PriceHistoryRequest{ServiceID: serviceID})
	require.NoError(t, err)
	return res.Entries
}

func TestPricingFlow_Scenario(t *testing.T) {
	h := newPricingHarness(t)
	ctx := context.Background()
	serviceID := h.initialized(t, 100)

	calc, err := h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceID})
	require.NoError(t, err)
	assert.Equal(t, 100.0, calc.CurrentPrice)
	assert.Equal(t, "sedan", calc.VehicleType)
	assert.False(t, calc.Clamped)

	demand, err := h.flow.UpdateDemandMultiplier(ctx, &dto.UpdateDemandRequest{
		ServiceID:     serviceID,
		BookingsCount: 9,
		Capacity:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.5, demand.Multiplier)
	require.NotNil(t, demand.DemandRatio)
	assert.InDelta(t, 0.9, *demand.DemandRatio, 1e-9)
	assert.Equal(t, 150.0, demand.CurrentPrice)

	factors, err := h.flow.UpdatePricingFactors(ctx, &dto.UpdatePricingFactorsRequest{
		ServiceID:        serviceID,
		DemandMultiplier: utils.ToPtr(1.6),
	})
	require.NoError(t, err)
	assert.Equal(t, 1.6, factors.Pricing.Factors.Demand)
	assert.Equal(t, 150.0, factors.Pricing.CurrentPrice)
	assert.Equal(t, 80.0, factors.Pricing.MinPrice)
	assert.Equal(t, 150.0, factors.Pricing.MaxPrice)

	entries := h.historyOf(t, serviceID)
	require.Len(t, entries, 4)
	prices := make([]float64, 0, len(entries))
	for _, e := range entries {
		prices = append(prices, e.Price)
	}
	assert.Equal(t, []float64{100, 100, 150, 150}, prices)
	assert.Equal(t, 1.6, entries[3].Factors.Demand)
}

func TestPricingFlow_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		h := newPricingHarness(t)
		svc := h.services.add("Ceramic Coating", true)

		res, err := h.flow.Initialize(ctx, &dto.InitializePricingRequest{
			Service:                svc.UUID.String(),
			BasePrice:              249.999,
			VehicleTypeMultipliers: map[string]float64{"SUV": 1.5, "rv": 1.6},
		})
		require.NoError(t, err)
		assert.Equal(t, "Pricing initialized successfully", res.Message)
		assert.Equal(t, svc.UUID.String(), res.Pricing.ServiceID)
		assert.Equal(t, 250.0, res.Pricing.BasePrice)
		assert.Equal(t, 250.0, res.Pricing.CurrentPrice)
		assert.True(t, res.Pricing.IsActive)
		assert.Equal(t, 1.5, res.Pricing.Factors.VehicleType["suv"])
		assert.Equal(t, 1.6, res.Pricing.Factors.VehicleType["rv"])
		assert.Equal(t, 1.0, res.Pricing.Factors.VehicleType["sedan"])
		assert.Equal(t, 50.0, res.Pricing.Rules.MaxPriceIncreasePct)
		assert.Equal(t, 20.0, res.Pricing.Rules.MinPriceDecreasePct)

		entries := h.historyOf(t, svc.UUID.String())
		require.Len(t, entries, 1)
		assert.Equal(t, 250.0, entries[0].Price)
		assert.Equal(t, 1, h.cache.invalidated(svc.UUID.String()))
	})

	t.Run("CustomRules", func(t *testing.T) {
		h := newPricingHarness(t)
		svc := h.services.add("Interior Shampoo", true)

		res, err := h.flow.Initialize(ctx, &dto.InitializePricingRequest{
			Service:   svc.UUID.String(),
			BasePrice: 80,
			Rules: &dto.PricingRulesInput{
				MaxPriceIncreasePct: utils.ToPtr(25.0),
				DemandThresholds:    &dto.DemandThresholdsInput{High: utils.ToPtr(0.9)},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 25.0, res.Pricing.Rules.MaxPriceIncreasePct)
		assert.Equal(t, 20.0, res.Pricing.Rules.MinPriceDecreasePct)
		assert.Equal(t, 0.9, res.Pricing.Rules.DemandThresholds.High)
		assert.Equal(t, 0.6, res.Pricing.Rules.DemandThresholds.Medium)
		assert.Equal(t, 100.0, res.Pricing.MaxPrice)
	})

	t.Run("Errors", func(t *testing.T) {
		h := newPricingHarness(t)
		active := h.services.add("Wash", true)
		inactive := h.services.add("Retired Package", false)
		existing := h.initialized(t, 100)

		cases := []struct {
			name  string
			req   *dto.InitializePricingRequest
			code  string
			check func(error) bool
		}{
			{"InvalidServiceID", &dto.InitializePricingRequest{Service: "not-a-uuid", BasePrice: 10}, "INVALID_SERVICE_ID", IsValidation},
			{"ZeroBasePrice", &dto.InitializePricingRequest{Service: active.UUID.String(), BasePrice: 0}, "BASE_PRICE_INVALID", IsValidation},
			{"NegativeBasePrice", &dto.InitializePricingRequest{Service: active.UUID.String(), BasePrice: -5}, "BASE_PRICE_INVALID", IsValidation},
			{"SubCentBasePrice", &dto.InitializePricingRequest{Service: active.UUID.String(), BasePrice: 0.004}, "BASE_PRICE_INVALID", IsValidation},
			{"BadVehicleMultiplier", &dto.InitializePricingRequest{
				Service: active.UUID.String(), BasePrice: 10,
				VehicleTypeMultipliers: map[string]float64{"truck": -1},
			}, "PRICING_FACTORS_INVALID", IsFactorOutOfRange},
			{"BadRules", &dto.InitializePricingRequest{
				Service: active.UUID.String(), BasePrice: 10,
				Rules: &dto.PricingRulesInput{MaxPriceIncreasePct: utils.ToPtr(150.0)},
			}, "PRICING_RULES_INVALID", IsRuleOutOfRange},
			{"UnknownService", &dto.InitializePricingRequest{Service: uuid.NewString(), BasePrice: 10}, "SERVICE_NOT_FOUND", IsServiceNotFound},
			{"InactiveService", &dto.InitializePricingRequest{Service: inactive.UUID.String(), BasePrice: 10}, "SERVICE_INACTIVE", IsNotFound},
			{"AlreadyInitialized", &dto.InitializePricingRequest{Service: existing, BasePrice: 10}, "PRICING_ALREADY_EXISTS", IsConflict},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				res, err := h.flow.Initialize(ctx, tc.req)
				require.Error(t, err)
				assert.Nil(t, res)
				assert.Equal(t, tc.code, ErrorCode(err))
				assert.True(t, tc.check(err), "unexpected error kind: %v", err)
			})
		}

		assert.Nil(t, h.pricings.stored(active.UUID))
	})
}

func TestPricingFlow_CalculatePrice(t *testing.T) {
	ctx := context.Background()

	t.Run("VehicleTypeAndBookingTime", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)
		booking := time.Date(2024, time.March, 12, 14, 30, 0, 0, time.UTC)

		res, err := h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{
			ServiceID:   serviceID,
			VehicleType: "Luxury",
			BookingTime: &booking,
		})
		require.NoError(t, err)
		assert.Equal(t, "luxury", res.VehicleType)
		assert.Equal(t, 1.4, res.VehicleMultiplier)
		assert.Equal(t, 140.0, res.CurrentPrice)
		require.NotNil(t, res.BookingTime)
		assert.Equal(t, "2024-03-12T14:30:00Z", *res.BookingTime)
		assert.Equal(t, "2024-03-10T03:00:00Z", res.CalculatedAt)

		assert.Equal(t, "140", h.pricings.stored(uuid.MustParse(serviceID)).CurrentPrice.String())
	})

	t.Run("UnknownVehicleTypeIsNeutral", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)

		res, err := h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceID, VehicleType: "motorbike"})
		require.NoError(t, err)
		assert.Equal(t, 1.0, res.VehicleMultiplier)
		assert.Equal(t, 100.0, res.CurrentPrice)
	})

	t.Run("NotFound", func(t *testing.T) {
		h := newPricingHarness(t)
		_, err := h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: uuid.NewString()})
		require.Error(t, err)
		assert.True(t, IsPricingNotFound(err))
		assert.Equal(t, "PRICING_NOT_FOUND", ErrorCode(err))
	})

	t.Run("InvalidServiceID", func(t *testing.T) {
		h := newPricingHarness(t)
		_, err := h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: "abc"})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})
}

func TestPricingFlow_FactorUpdates(t *testing.T) {
	ctx := context.Background()

	t.Run("DemandValidation", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)

		_, err := h.flow.UpdateDemandMultiplier(ctx, &dto.UpdateDemandRequest{ServiceID: serviceID, BookingsCount: 1, Capacity: 0})
		assert.Equal(t, "CAPACITY_INVALID", ErrorCode(err))
		assert.True(t, IsValidation(err))

		_, err = h.flow.UpdateDemandMultiplier(ctx, &dto.UpdateDemandRequest{ServiceID: serviceID, BookingsCount: -1, Capacity: 10})
		assert.Equal(t, "BOOKINGS_COUNT_INVALID", ErrorCode(err))

		assert.Len(t, h.historyOf(t, serviceID), 1)
	})

	t.Run("DemandTiers", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)

		cases := []struct {
			bookings, capacity int
			multiplier, price  float64
		}{
			{10, 10, 1.5, 150},
			{6, 10, 1.25, 125},
			{5, 10, 1.0, 100},
			{3, 10, 0.8, 80},
			{0, 10, 0.8, 80},
		}
		for _, tc := range cases {
			res, err := h.flow.UpdateDemandMultiplier(ctx, &dto.UpdateDemandRequest{
				ServiceID: serviceID, BookingsCount: tc.bookings, Capacity: tc.capacity,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.multiplier, res.Multiplier, "%d/%d", tc.bookings, tc.capacity)
			assert.Equal(t, tc.price, res.CurrentPrice, "%d/%d", tc.bookings, tc.capacity)
		}
	})

	t.Run("DemandUsesRecordThresholds", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)

		_, err := h.flow.UpdatePricingRules(ctx, &dto.UpdatePricingRulesRequest{
			ServiceID: serviceID,
			Rules: &dto.PricingRulesInput{DemandThresholds: &dto.DemandThresholdsInput{
				Low: utils.ToPtr(0.1), Medium: utils.ToPtr(0.2), High: utils.ToPtr(0.4),
			}},
		})
		require.NoError(t, err)

		res, err := h.flow.UpdateDemandMultiplier(ctx, &dto.UpdateDemandRequest{ServiceID: serviceID, BookingsCount: 4, Capacity: 10})
		require.NoError(t, err)
		assert.Equal(t, 1.5, res.Multiplier)
	})

	t.Run("Seasonal", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)

		ref := time.Date(2024, time.July, 4, 12, 0, 0, 0, time.UTC)
		res, err := h.flow.UpdateSeasonalMultiplier(ctx, &dto.UpdateSeasonalRequest{ServiceID: serviceID, ReferenceDate: &ref})
		require.NoError(t, err)
		assert.Equal(t, 1.3, res.Multiplier)
		assert.Equal(t, 130.0, res.CurrentPrice)

		// clock is in March
		res, err = h.flow.UpdateSeasonalMultiplier(ctx, &dto.UpdateSeasonalRequest{ServiceID: serviceID})
		require.NoError(t, err)
		assert.Equal(t, 1.1, res.Multiplier)
		assert.Equal(t, 110.0, res.CurrentPrice)
	})

	t.Run("TimeOfDay", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)

		res, err := h.flow.UpdateTimeOfDayMultiplier(ctx, &dto.UpdateTimeOfDayRequest{ServiceID: serviceID, Hour: utils.ToPtr(10)})
		require.NoError(t, err)
		assert.Equal(t, 1.2, res.Multiplier)
		assert.Equal(t, 120.0, res.CurrentPrice)

		// clock is at 03:00
		res, err = h.flow.UpdateTimeOfDayMultiplier(ctx, &dto.UpdateTimeOfDayRequest{ServiceID: serviceID})
		require.NoError(t, err)
		assert.Equal(t, 0.9, res.Multiplier)
		assert.Equal(t, 90.0, res.CurrentPrice)

		for _, hour := range []int{-1, 24} {
			_, err = h.flow.UpdateTimeOfDayMultiplier(ctx, &dto.UpdateTimeOfDayRequest{ServiceID: serviceID, Hour: utils.ToPtr(hour)})
			assert.Equal(t, "HOUR_INVALID", ErrorCode(err))
		}
	})

	t.Run("PricingFactorsRejectedLeaveRecordUntouched", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)

		_, err := h.flow.UpdatePricingFactors(ctx, &dto.UpdatePricingFactorsRequest{
			ServiceID:          serviceID,
			DemandMultiplier:   utils.ToPtr(1.2),
			SeasonalMultiplier: utils.ToPtr(1.6),
		})
		require.Error(t, err)
		assert.Equal(t, "PRICING_FACTORS_INVALID", ErrorCode(err))
		assert.True(t, IsFactorOutOfRange(err))

		stored := h.pricings.stored(uuid.MustParse(serviceID))
		assert.Equal(t, 1.0, stored.Factors.Demand)
		assert.Equal(t, 1.0, stored.Factors.Seasonal)
		assert.Len(t, h.historyOf(t, serviceID), 1)
	})

	t.Run("PricingFactorsMergeVehicleTypes", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)

		res, err := h.flow.UpdatePricingFactors(ctx, &dto.UpdatePricingFactorsRequest{
			ServiceID:             serviceID,
			TimeOfDayMultiplier:   utils.ToPtr(1.1),
			VehicleTypeMultiplier: map[string]float64{"Truck": 1.35},
		})
		require.NoError(t, err)
		assert.Equal(t, 1.1, res.Pricing.Factors.TimeOfDay)
		assert.Equal(t, 1.35, res.Pricing.Factors.VehicleType["truck"])
		assert.Equal(t, 1.2, res.Pricing.Factors.VehicleType["suv"])
		assert.Equal(t, 110.0, res.Pricing.CurrentPrice)
	})

	t.Run("PricingRules", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)

		_, err := h.flow.UpdateDemandMultiplier(ctx, &dto.UpdateDemandRequest{ServiceID: serviceID, BookingsCount: 9, Capacity: 10})
		require.NoError(t, err)

		res, err := h.flow.UpdatePricingRules(ctx, &dto.UpdatePricingRulesRequest{
			ServiceID: serviceID,
			Rules:     &dto.PricingRulesInput{MaxPriceIncreasePct: utils.ToPtr(10.0)},
		})
		require.NoError(t, err)
		assert.Equal(t, 110.0, res.Pricing.CurrentPrice)
		assert.Equal(t, 110.0, res.Pricing.MaxPrice)

		_, err = h.flow.UpdatePricingRules(ctx, &dto.UpdatePricingRulesRequest{ServiceID: serviceID})
		assert.Equal(t, "PRICING_RULES_REQUIRED", ErrorCode(err))
		assert.True(t, IsValidation(err))

		_, err = h.flow.UpdatePricingRules(ctx, &dto.UpdatePricingRulesRequest{
			ServiceID: serviceID,
			Rules:     &dto.PricingRulesInput{DemandThresholds: &dto.DemandThresholdsInput{Low: utils.ToPtr(0.95)}},
		})
		assert.Equal(t, "PRICING_RULES_INVALID", ErrorCode(err))
		assert.Equal(t, 10.0, h.pricings.stored(uuid.MustParse(serviceID)).Rules.MaxPriceIncreasePct)
	})
}

func TestPricingFlow_History(t *testing.T) {
	ctx := context.Background()

	t.Run("TimestampsNeverGoBackwards", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)

		h.clock.Advance(time.Hour)
		_, err := h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceID})
		require.NoError(t, err)

		h.clock.T = h.clock.T.Add(-3 * time.Hour)
		_, err = h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceID})
		require.NoError(t, err)

		entries := h.historyOf(t, serviceID)
		require.Len(t, entries, 3)
		for i := 1; i < len(entries); i++ {
			prev, err := time.Parse(time.RFC3339Nano, entries[i-1].Timestamp)
			require.NoError(t, err)
			cur, err := time.Parse(time.RFC3339Nano, entries[i].Timestamp)
			require.NoError(t, err)
			assert.False(t, cur.Before(prev), "entry %d went backwards", i)
		}
		assert.Equal(t, entries[1].Timestamp, entries[2].Timestamp)
	})

	t.Run("RetentionByCount", func(t *testing.T) {
		h := newPricingHarness(t, func(c *config.PricingConfig) { c.HistoryMaxEntries = 3 })
		serviceID := h.initialized(t, 100)

		for i := 1; i <= 5; i++ {
			h.clock.Advance(time.Minute)
			_, err := h.flow.UpdateDemandMultiplier(ctx, &dto.UpdateDemandRequest{ServiceID: serviceID, BookingsCount: i * 2, Capacity: 10})
			require.NoError(t, err)
		}

		entries := h.historyOf(t, serviceID)
		require.Len(t, entries, 3)
		// 6/10, 8/10, 10/10
		assert.Equal(t, []float64{1.25, 1.5, 1.5}, []float64{
			entries[0].Factors.Demand, entries[1].Factors.Demand, entries[2].Factors.Demand,
		})
	})

	t.Run("RetentionByAge", func(t *testing.T) {
		h := newPricingHarness(t, func(c *config.PricingConfig) {
			c.HistoryMaxEntries = 0
			c.HistoryMaxAge = time.Hour
		})
		serviceID := h.initialized(t, 100)
		start := h.clock.Now()

		for i := 0; i < 4; i++ {
			h.clock.Advance(30 * time.Minute)
			_, err := h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceID})
			require.NoError(t, err)
		}

		entries := h.historyOf(t, serviceID)
		require.Len(t, entries, 3)
		first, err := time.Parse(time.RFC3339Nano, entries[0].Timestamp)
		require.NoError(t, err)
		assert.True(t, first.Equal(start.Add(time.Hour)))
	})

	t.Run("UnboundedWhenRetentionDisabled", func(t *testing.T) {
		h := newPricingHarness(t, func(c *config.PricingConfig) { c.HistoryMaxEntries = 0 })
		serviceID := h.initialized(t, 100)
		for i := 0; i < 25; i++ {
			_, err := h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceID})
			require.NoError(t, err)
		}
		assert.Len(t, h.historyOf(t, serviceID), 26)
	})

	t.Run("DateRange", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100) // 2024-03-10

		h.clock.Advance(24 * time.Hour) // 2024-03-11
		_, err := h.flow.UpdateTimeOfDayMultiplier(ctx, &dto.UpdateTimeOfDayRequest{ServiceID: serviceID, Hour: utils.ToPtr(12)})
		require.NoError(t, err)

		h.clock.Advance(24 * time.Hour) // 2024-03-12
		_, err = h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceID})
		require.NoError(t, err)

		res, err := h.flow.GetPriceHistory(ctx, &dto.PriceHistoryRequest{
			ServiceID: serviceID,
			StartDate: "2024-03-11",
			EndDate:   "2024-03-11",
		})
		require.NoError(t, err)
		require.Equal(t, 1, res.Count)
		assert.Equal(t, 120.0, res.Entries[0].Price)

		res, err = h.flow.GetPriceHistory(ctx, &dto.PriceHistoryRequest{
			ServiceID: serviceID,
			StartDate: "2024-03-11T00:00:00Z",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Count)

		res, err = h.flow.GetPriceHistory(ctx, &dto.PriceHistoryRequest{
			ServiceID: serviceID,
			EndDate:   "2024-03-10",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Count)
	})

	t.Run("DateErrors", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)

		_, err := h.flow.GetPriceHistory(ctx, &dto.PriceHistoryRequest{ServiceID: serviceID, StartDate: "yesterday"})
		assert.Equal(t, "INVALID_START_DATE", ErrorCode(err))
		assert.True(t, errors.Is(err, ErrInvalidDate))

		_, err = h.flow.GetPriceHistory(ctx, &dto.PriceHistoryRequest{ServiceID: serviceID, EndDate: "2024-13-01"})
		assert.Equal(t, "INVALID_END_DATE", ErrorCode(err))

		_, err = h.flow.GetPriceHistory(ctx, &dto.PriceHistoryRequest{ServiceID: serviceID, StartDate: "2024-03-12", EndDate: "2024-03-11"})
		assert.Equal(t, "INVALID_DATE_RANGE", ErrorCode(err))
		assert.True(t, IsValidation(err))
	})

	t.Run("NotFound", func(t *testing.T) {
		h := newPricingHarness(t)
		_, err := h.flow.GetPriceHistory(ctx, &dto.PriceHistoryRequest{ServiceID: uuid.NewString()})
		assert.True(t, IsPricingNotFound(err))
	})
}

func TestPricingFlow_ConcurrentUpdatesLoseNothing(t *testing.T) {
	h := newPricingHarness(t, func(c *config.PricingConfig) { c.HistoryMaxEntries = 0 })
	ctx := context.Background()
	serviceA := h.initialized(t, 100)
	serviceB := h.initialized(t, 60)

	const workers = 24
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceA, VehicleType: "suv"})
			} else {
				_, err = h.flow.UpdateDemandMultiplier(ctx, &dto.UpdateDemandRequest{ServiceID: serviceA, BookingsCount: i % 10, Capacity: 10})
			}
			errs <- err
		}(i)
		go func() {
			defer wg.Done()
			_, err := h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceB})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, h.historyOf(t, serviceA), workers+1)
	assert.Len(t, h.historyOf(t, serviceB), workers+1)
	assert.Equal(t, 0, h.flow.locks.size())

	stored := h.pricings.stored(uuid.MustParse(serviceA))
	entries := h.historyOf(t, serviceA)
	assert.Equal(t, stored.CurrentPrice.InexactFloat64(), entries[len(entries)-1].Price)
}

func TestPricingFlow_ReadsHaveNoSideEffects(t *testing.T) {
	h := newPricingHarness(t)
	ctx := context.Background()
	serviceID := h.initialized(t, 100)
	before := h.pricings.stored(uuid.MustParse(serviceID))

	quote, err := h.flow.GetQuote(ctx, &dto.QuoteRequest{ServiceID: serviceID, VehicleType: "SUV"})
	require.NoError(t, err)
	assert.Equal(t, "suv", quote.VehicleType)
	assert.Equal(t, 120.0, quote.Price)
	assert.Equal(t, 100.0, quote.BasePrice)
	assert.False(t, quote.Clamped)

	pricing, err := h.flow.GetPricing(ctx, serviceID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pricing.Pricing.CurrentPrice)

	after := h.pricings.stored(uuid.MustParse(serviceID))
	assert.True(t, before.CurrentPrice.Equal(after.CurrentPrice))
	assert.True(t, before.LastUpdated.Equal(after.LastUpdated))
	assert.Len(t, h.historyOf(t, serviceID), 1)
}

func TestPricingFlow_SnapshotCache(t *testing.T) {
	h := newPricingHarness(t)
	ctx := context.Background()
	serviceID := h.initialized(t, 100)
	assert.Equal(t, 1, h.cache.invalidated(serviceID))

	_, err := h.flow.GetQuote(ctx, &dto.QuoteRequest{ServiceID: serviceID})
	require.NoError(t, err)
	loads := h.pricings.loadCount()

	_, err = h.flow.GetQuote(ctx, &dto.QuoteRequest{ServiceID: serviceID, VehicleType: "van"})
	require.NoError(t, err)
	_, err = h.flow.GetPricing(ctx, serviceID)
	require.NoError(t, err)
	assert.Equal(t, loads, h.pricings.loadCount(), "cached reads must not hit the repository")

	_, err = h.flow.UpdateDemandMultiplier(ctx, &dto.UpdateDemandRequest{ServiceID: serviceID, BookingsCount: 9, Capacity: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, h.cache.invalidated(serviceID))

	quote, err := h.flow.GetQuote(ctx, &dto.QuoteRequest{ServiceID: serviceID})
	require.NoError(t, err)
	assert.Equal(t, 150.0, quote.Price)
}

func TestPricingFlow_WithoutCacheReadsLatestState(t *testing.T) {
	h := newPricingHarness(t)
	ctx := context.Background()
	cfg := config.PricingConfig{Timezone: "UTC", DefaultVehicleType: "sedan", HistoryMaxEntries: 1000}
	reader := NewPricingFlow(h.services, h.pricings, h.history, passThroughTx{}, nil, h.clock, cfg)
	writer := NewPricingFlow(h.services, h.pricings, h.history, passThroughTx{}, nil, h.clock, cfg)

	serviceID := h.initialized(t, 100)

	quote, err := reader.GetQuote(ctx, &dto.QuoteRequest{ServiceID: serviceID})
	require.NoError(t, err)
	assert.Equal(t, 100.0, quote.Price)

	_, err = writer.UpdateDemandMultiplier(ctx, &dto.UpdateDemandRequest{ServiceID: serviceID, BookingsCount: 9, Capacity: 10})
	require.NoError(t, err)

	quote, err = reader.GetQuote(ctx, &dto.QuoteRequest{ServiceID: serviceID})
	require.NoError(t, err)
	assert.Equal(t, 150.0, quote.Price)

	pricing, err := reader.GetPricing(ctx, serviceID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, pricing.Pricing.CurrentPrice)
}

func TestPricingFlow_DeactivateAndReinitialize(t *testing.T) {
	h := newPricingHarness(t)
	ctx := context.Background()
	serviceID := h.initialized(t, 100)

	first, err := h.flow.GetPricing(ctx, serviceID)
	require.NoError(t, err)

	res, err := h.flow.Deactivate(ctx, serviceID)
	require.NoError(t, err)
	assert.Equal(t, serviceID, res.ServiceID)

	_, err = h.flow.GetPricing(ctx, serviceID)
	assert.True(t, IsPricingNotFound(err))
	_, err = h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceID})
	assert.True(t, IsPricingNotFound(err))
	_, err = h.flow.Deactivate(ctx, serviceID)
	assert.True(t, IsPricingNotFound(err))

	list, err := h.flow.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, list.Count)

	second, err := h.flow.Initialize(ctx, &dto.InitializePricingRequest{Service: serviceID, BasePrice: 120})
	require.NoError(t, err)
	assert.NotEqual(t, first.Pricing.ID, second.Pricing.ID)
	assert.Equal(t, 120.0, second.Pricing.CurrentPrice)

	// the new record starts with a fresh history
	assert.Len(t, h.historyOf(t, serviceID), 1)
}

func TestPricingFlow_RefreshTimeFactors(t *testing.T) {
	h := newPricingHarness(t)
	ctx := context.Background()
	serviceID := h.initialized(t, 100)

	at := time.Date(2024, time.July, 15, 10, 0, 0, 0, time.UTC)
	res, err := h.flow.RefreshTimeFactors(ctx, serviceID, at)
	require.NoError(t, err)
	assert.Equal(t, 1.3, res.Pricing.Factors.Seasonal)
	assert.Equal(t, 1.2, res.Pricing.Factors.TimeOfDay)
	// 100 * 1.3 * 1.2 = 156, clamped
	assert.Equal(t, 150.0, res.Pricing.CurrentPrice)

	entries := h.historyOf(t, serviceID)
	require.Len(t, entries, 2)
	assert.Equal(t, 1.3, entries[1].Factors.Seasonal)

	_, err = h.flow.RefreshTimeFactors(ctx, uuid.NewString(), at)
	assert.True(t, IsPricingNotFound(err))
}

func TestPricingFlow_ListActive(t *testing.T) {
	h := newPricingHarness(t)
	ctx := context.Background()
	a := h.initialized(t, 100)
	b := h.initialized(t, 40)
	_, err := h.flow.Deactivate(ctx, a)
	require.NoError(t, err)

	list, err := h.flow.ListActive(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, b, list.Items[0].ServiceID)
}

func TestPricingFlow_PersistenceFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadFailure", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)
		h.pricings.loadErr = errStorageDown

		_, err := h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceID})
		require.Error(t, err)
		assert.True(t, IsPersistence(err))
		assert.True(t, errors.Is(err, errStorageDown))
		assert.Equal(t, "PRICING_LOAD_FAILED", ErrorCode(err))
		assert.False(t, IsValidation(err))
	})

	t.Run("SaveFailure", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)
		h.pricings.updateErr = errStorageDown

		_, err := h.flow.UpdateDemandMultiplier(ctx, &dto.UpdateDemandRequest{ServiceID: serviceID, BookingsCount: 9, Capacity: 10})
		require.Error(t, err)
		assert.True(t, IsPersistence(err))
		assert.Equal(t, "PRICING_SAVE_FAILED", ErrorCode(err))
		assert.Len(t, h.historyOf(t, serviceID), 1)
	})

	t.Run("HistoryFailure", func(t *testing.T) {
		h := newPricingHarness(t)
		serviceID := h.initialized(t, 100)
		h.history.saveErr = errStorageDown

		_, err := h.flow.CalculatePrice(ctx, &dto.CalculatePriceRequest{ServiceID: serviceID})
		require.Error(t, err)
		assert.True(t, IsPersistence(err))
		assert.Equal(t, "PRICE_HISTORY_SAVE_FAILED", ErrorCode(err))
	})

	t.Run("ServiceLookupFailure", func(t *testing.T) {
		h := newPricingHarness(t)
		svc := h.services.add("Wax", true)
		h.services.loadErr = errStorageDown

		_, err := h.flow.Initialize(ctx, &dto.InitializePricingRequest{Service: svc.UUID.String(), BasePrice: 10})
		require.Error(t, err)
		assert.True(t, IsPersistence(err))
		assert.Equal(t, "SERVICE_LOAD_FAILED", ErrorCode(err))
	})

	t.Run("ListFailure", func(t *testing.T) {
		h := newPricingHarness(t)
		h.pricings.loadErr = errStorageDown
		_, err := h.flow.ListActive(ctx)
		assert.True(t, IsPersistence(err))
	})
}

func TestToPricingRecordDTO(t *testing.T) {
	p := newPricing(99.99)
	p.UUID = uuid.New()
	p.ServiceUUID = uuid.New()
	p.CurrentPrice = p.BasePrice
	p.IsActive = utils.ToPtr(true)
	p.LastUpdated = time.Date(2024, time.March, 10, 3, 0, 0, 0, time.FixedZone("UTC+2", 2*60*60))
	p.Rules = models.DefaultPricingRules()

	out := ToPricingRecordDTO(p)
	assert.Equal(t, p.UUID.String(), out.ID)
	assert.Equal(t, 99.99, out.BasePrice)
	// 99.99 * 0.8 = 79.992, 99.99 * 1.5 = 149.985
	assert.Equal(t, 80.0, out.MinPrice)
	assert.Equal(t, 149.98, out.MaxPrice)
	assert.Equal(t, "2024-03-10T01:00:00Z", out.LastUpdated)
	assert.True(t, out.IsActive)
}
