package handlers

import (
	"log/slog"
	"strings"
	"time"

	"github.com/amirphl/detailing-pricing/app/dto"
	businessflow "github.com/amirphl/detailing-pricing/business_flow"
	"github.com/amirphl/detailing-pricing/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// PricingHandlerInterface defines the dynamic pricing endpoints
type PricingHandlerInterface interface {
	InitializePricing(c fiber.Ctx) error
	CalculatePrice(c fiber.Ctx) error
	UpdatePricingFactors(c fiber.Ctx) error
	UpdatePricingRules(c fiber.Ctx) error
	UpdateDemand(c fiber.Ctx) error
	UpdateSeasonal(c fiber.Ctx) error
	UpdateTimeOfDay(c fiber.Ctx) error
	GetPriceHistory(c fiber.Ctx) error
	ExportPriceHistory(c fiber.Ctx) error
	GetPricing(c fiber.Ctx) error
	GetQuote(c fiber.Ctx) error
	DeactivatePricing(c fiber.Ctx) error
	ListPricing(c fiber.Ctx) error
}

// PricingHandler implements PricingHandlerInterface
type PricingHandler struct {
	flow      businessflow.PricingFlow
	validator *validator.Validate
	logger    *slog.Logger
}

func NewPricingHandler(flow businessflow.PricingFlow, logger *slog.Logger) PricingHandlerInterface {
	if logger == nil {
		logger = slog.Default()
	}
	return &PricingHandler{
		flow:      flow,
		validator: validator.New(),
		logger:    logger,
	}
}

// bindJSON decodes and validates the request body. When ok is false the error
// response has already been written and err must be returned as is.
func (h *PricingHandler) bindJSON(c fiber.Ctx, req any, optional bool) (ok bool, err error) {
	if optional && len(c.Body()) == 0 {
		return true, nil
	}
	if err := c.Bind().JSON(req); err != nil {
		return false, errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(req); err != nil {
		return false, errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}
	return true, nil
}

// InitializePricing creates the pricing record of a service.
// @Summary Initialize Pricing
// @Description Create the dynamic pricing record of a service and run the first calculation
// @Tags Pricing
// @Accept json
// @Produce json
// @Param request body dto.InitializePricingRequest true "Initial pricing"
// @Success 201 {object} dto.APIResponse{data=dto.PricingRecordResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Service not found"
// @Failure 409 {object} dto.APIResponse "Pricing already initialized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/initialize [post]
func (h *PricingHandler) InitializePricing(c fiber.Ctx) error {
	var req dto.InitializePricingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/initialize")
	defer cancel()

	res, err := h.flow.Initialize(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "initialize", req.Service, err)
	}
	return successResponse(c, fiber.StatusCreated, "Pricing initialized successfully", res)
}

// CalculatePrice recalculates and returns the current price of a service.
// @Summary Calculate Price
// @Description Recalculate the current price for a vehicle type and append a history entry
// @Tags Pricing
// @Produce json
// @Param serviceId path string true "Service ID"
// @Param vehicleType query string false "Vehicle type (default sedan)"
// @Param bookingTime query string false "Booking time (RFC3339 or YYYY-MM-DD)"
// @Success 200 {object} dto.APIResponse{data=dto.CalculatePriceResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pricing not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/service/{serviceId}/price [get]
func (h *PricingHandler) CalculatePrice(c fiber.Ctx) error {
	req := dto.CalculatePriceRequest{
		ServiceID:   c.Params("serviceId"),
		VehicleType: strings.TrimSpace(c.Query("vehicleType")),
	}
	if raw := strings.TrimSpace(c.Query("bookingTime")); raw != "" {
		t, _, err := utils.ParseDateOrTime(raw, time.UTC)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Booking time must be RFC3339 or YYYY-MM-DD", "INVALID_BOOKING_TIME", nil)
		}
		req.BookingTime = &t
	}

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/service/:serviceId/price")
	defer cancel()

	res, err := h.flow.CalculatePrice(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "calculate_price", req.ServiceID, err)
	}
	return successResponse(c, fiber.StatusOK, "Price calculated successfully", res)
}

// UpdatePricingFactors sets any subset of the pricing factors.
// @Summary Update Pricing Factors
// @Description Merge factor overrides into the pricing record and recalculate
// @Tags Pricing
// @Accept json
// @Produce json
// @Param serviceId path string true "Service ID"
// @Param request body dto.UpdatePricingFactorsRequest true "Factor overrides"
// @Success 200 {object} dto.APIResponse{data=dto.PricingRecordResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pricing not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/service/{serviceId}/factors [put]
func (h *PricingHandler) UpdatePricingFactors(c fiber.Ctx) error {
	var req dto.UpdatePricingFactorsRequest
	if ok, err := h.bindJSON(c, &req, false); !ok {
		return err
	}
	req.ServiceID = c.Params("serviceId")

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/service/:serviceId/factors")
	defer cancel()

	res, err := h.flow.UpdatePricingFactors(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "update_factors", req.ServiceID, err)
	}
	return successResponse(c, fiber.StatusOK, "Pricing factors updated successfully", res)
}

// UpdatePricingRules replaces part of the pricing rules.
// @Summary Update Pricing Rules
// @Description Merge rule overrides into the pricing record and recalculate
// @Tags Pricing
// @Accept json
// @Produce json
// @Param serviceId path string true "Service ID"
// @Param request body dto.UpdatePricingRulesRequest true "Rule overrides"
// @Success 200 {object} dto.APIResponse{data=dto.PricingRecordResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pricing not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/service/{serviceId}/rules [put]
func (h *PricingHandler) UpdatePricingRules(c fiber.Ctx) error {
	var req dto.UpdatePricingRulesRequest
	if ok, err := h.bindJSON(c, &req, false); !ok {
		return err
	}
	req.ServiceID = c.Params("serviceId")

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/service/:serviceId/rules")
	defer cancel()

	res, err := h.flow.UpdatePricingRules(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "update_rules", req.ServiceID, err)
	}
	return successResponse(c, fiber.StatusOK, "Pricing rules updated successfully", res)
}

// UpdateDemand selects the demand tier from current bookings.
// @Summary Update Demand Multiplier
// @Description Select the demand multiplier from bookingsCount/capacity and recalculate
// @Tags Pricing
// @Accept json
// @Produce json
// @Param serviceId path string true "Service ID"
// @Param request body dto.UpdateDemandRequest true "Bookings and capacity"
// @Success 200 {object} dto.APIResponse{data=dto.PriceUpdateResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pricing not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/service/{serviceId}/demand [post]
func (h *PricingHandler) UpdateDemand(c fiber.Ctx) error {
	var req dto.UpdateDemandRequest
	if ok, err := h.bindJSON(c, &req, false); !ok {
		return err
	}
	req.ServiceID = c.Params("serviceId")

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/service/:serviceId/demand")
	defer cancel()

	res, err := h.flow.UpdateDemandMultiplier(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "update_demand", req.ServiceID, err)
	}
	return successResponse(c, fiber.StatusOK, "Demand multiplier updated successfully", res)
}

// UpdateSeasonal derives the seasonal multiplier from a reference date.
// @Summary Update Seasonal Multiplier
// @Description Derive the seasonal multiplier from referenceDate (default now) and recalculate
// @Tags Pricing
// @Accept json
// @Produce json
// @Param serviceId path string true "Service ID"
// @Param request body dto.UpdateSeasonalRequest false "Reference date"
// @Success 200 {object} dto.APIResponse{data=dto.PriceUpdateResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pricing not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/service/{serviceId}/seasonal [post]
func (h *PricingHandler) UpdateSeasonal(c fiber.Ctx) error {
	var req dto.UpdateSeasonalRequest
	if ok, err := h.bindJSON(c, &req, true); !ok {
		return err
	}
	req.ServiceID = c.Params("serviceId")

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/service/:serviceId/seasonal")
	defer cancel()

	res, err := h.flow.UpdateSeasonalMultiplier(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "update_seasonal", req.ServiceID, err)
	}
	return successResponse(c, fiber.StatusOK, "Seasonal multiplier updated successfully", res)
}

// UpdateTimeOfDay derives the time-of-day multiplier from an hour.
// @Summary Update Time Of Day Multiplier
// @Description Derive the time-of-day multiplier from hour (default current hour) and recalculate
// @Tags Pricing
// @Accept json
// @Produce json
// @Param serviceId path string true "Service ID"
// @Param request body dto.UpdateTimeOfDayRequest false "Hour of day"
// @Success 200 {object} dto.APIResponse{data=dto.PriceUpdateResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pricing not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/service/{serviceId}/time-of-day [post]
func (h *PricingHandler) UpdateTimeOfDay(c fiber.Ctx) error {
	var req dto.UpdateTimeOfDayRequest
	if ok, err := h.bindJSON(c, &req, true); !ok {
		return err
	}
	req.ServiceID = c.Params("serviceId")

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/service/:serviceId/time-of-day")
	defer cancel()

	res, err := h.flow.UpdateTimeOfDayMultiplier(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "update_time_of_day", req.ServiceID, err)
	}
	return successResponse(c, fiber.StatusOK, "Time of day multiplier updated successfully", res)
}

// GetPriceHistory returns the price history of a service.
// @Summary Get Price History
// @Description List price history entries in insertion order, optionally within a date range
// @Tags Pricing
// @Produce json
// @Param serviceId path string true "Service ID"
// @Param startDate query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param endDate query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success 200 {object} dto.APIResponse{data=dto.PriceHistoryResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pricing not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/service/{serviceId}/history [get]
func (h *PricingHandler) GetPriceHistory(c fiber.Ctx) error {
	req := historyRequest(c)

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/service/:serviceId/history")
	defer cancel()

	res, err := h.flow.GetPriceHistory(ctx, req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "get_history", req.ServiceID, err)
	}
	return successResponse(c, fiber.StatusOK, "Price history retrieved successfully", res)
}

// ExportPriceHistory downloads the price history as an Excel workbook.
// @Summary Export Price History
// @Description Download price history entries as an xlsx file
// @Tags Pricing
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param serviceId path string true "Service ID"
// @Param startDate query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param endDate query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success 200 {file} file
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pricing not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/service/{serviceId}/history/export [get]
func (h *PricingHandler) ExportPriceHistory(c fiber.Ctx) error {
	req := historyRequest(c)

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/service/:serviceId/history/export")
	defer cancel()

	filename, data, err := h.flow.ExportPriceHistory(ctx, req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "export_history", req.ServiceID, err)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// GetPricing returns the active pricing record of a service.
// @Summary Get Pricing
// @Description Retrieve the active pricing record of a service
// @Tags Pricing
// @Produce json
// @Param serviceId path string true "Service ID"
// @Success 200 {object} dto.APIResponse{data=dto.PricingRecordResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pricing not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/service/{serviceId} [get]
func (h *PricingHandler) GetPricing(c fiber.Ctx) error {
	serviceID := c.Params("serviceId")

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/service/:serviceId")
	defer cancel()

	res, err := h.flow.GetPricing(ctx, serviceID)
	if err != nil {
		return flowErrorResponse(c, h.logger, "get_pricing", serviceID, err)
	}
	return successResponse(c, fiber.StatusOK, "Pricing retrieved successfully", res)
}

// GetQuote previews the price for a vehicle type without recording it.
// @Summary Get Quote
// @Description Preview the price for a vehicle type; nothing is persisted
// @Tags Pricing
// @Produce json
// @Param serviceId path string true "Service ID"
// @Param vehicleType query string false "Vehicle type (default sedan)"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pricing not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/service/{serviceId}/quote [get]
func (h *PricingHandler) GetQuote(c fiber.Ctx) error {
	req := dto.QuoteRequest{
		ServiceID:   c.Params("serviceId"),
		VehicleType: strings.TrimSpace(c.Query("vehicleType")),
	}

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/service/:serviceId/quote")
	defer cancel()

	res, err := h.flow.GetQuote(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "get_quote", req.ServiceID, err)
	}
	return successResponse(c, fiber.StatusOK, "Quote calculated successfully", res)
}

// DeactivatePricing soft-deletes the pricing record of a service.
// @Summary Deactivate Pricing
// @Description Deactivate the pricing record; the service can be initialized again afterwards
// @Tags Pricing
// @Produce json
// @Param serviceId path string true "Service ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeactivatePricingResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Pricing not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing/service/{serviceId} [delete]
func (h *PricingHandler) DeactivatePricing(c fiber.Ctx) error {
	serviceID := c.Params("serviceId")

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/service/:serviceId")
	defer cancel()

	res, err := h.flow.Deactivate(ctx, serviceID)
	if err != nil {
		return flowErrorResponse(c, h.logger, "deactivate", serviceID, err)
	}
	return successResponse(c, fiber.StatusOK, "Pricing deactivated successfully", res)
}

// ListPricing lists every active pricing record.
// @Summary List Pricing
// @Description List all active pricing records
// @Tags Pricing
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListPricingResponse}
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/pricing [get]
func (h *PricingHandler) ListPricing(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/pricing")
	defer cancel()

	res, err := h.flow.ListActive(ctx)
	if err != nil {
		return flowErrorResponse(c, h.logger, "list_active", "", err)
	}
	return successResponse(c, fiber.StatusOK, "Pricing records retrieved successfully", res)
}

func historyRequest(c fiber.Ctx) *dto.PriceHistoryRequest {
	return &dto.PriceHistoryRequest{
		ServiceID: c.Params("serviceId"),
		StartDate: strings.TrimSpace(c.Query("startDate")),
		EndDate:   strings.TrimSpace(c.Query("endDate")),
	}
}
