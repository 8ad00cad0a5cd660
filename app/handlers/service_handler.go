package handlers

import (
	"log/slog"

	"github.com/amirphl/detailing-pricing/app/dto"
	businessflow "github.com/amirphl/detailing-pricing/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ServiceHandlerInterface defines the service catalog endpoints
type ServiceHandlerInterface interface {
	CreateService(c fiber.Ctx) error
	ListServices(c fiber.Ctx) error
	GetService(c fiber.Ctx) error
}

type ServiceHandler struct {
	flow      businessflow.ServiceCatalogFlow
	validator *validator.Validate
	logger    *slog.Logger
}

func NewServiceHandler(flow businessflow.ServiceCatalogFlow, logger *slog.Logger) ServiceHandlerInterface {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceHandler{
		flow:      flow,
		validator: validator.New(),
		logger:    logger,
	}
}

// CreateService adds a detailing service to the catalog.
// @Summary Create Service
// @Description Add a detailing service that pricing can be initialized for
// @Tags Services
// @Accept json
// @Produce json
// @Param request body dto.CreateServiceRequest true "Service details"
// @Success 201 {object} dto.APIResponse{data=dto.CreateServiceResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Service already exists"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/services [post]
func (h *ServiceHandler) CreateService(c fiber.Ctx) error {
	var req dto.CreateServiceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/services")
	defer cancel()

	res, err := h.flow.CreateService(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "create_service", "", err)
	}
	return successResponse(c, fiber.StatusCreated, "Service created successfully", res)
}

// ListServices lists the catalog.
// @Summary List Services
// @Tags Services
// @Produce json
// @Param activeOnly query bool false "Only active services"
// @Success 200 {object} dto.APIResponse{data=dto.ListServicesResponse}
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/services [get]
func (h *ServiceHandler) ListServices(c fiber.Ctx) error {
	req := dto.ListServicesRequest{
		ActiveOnly: fiber.Query[bool](c, "activeOnly"),
	}

	ctx, cancel := createRequestContext(c, "/api/v1/services")
	defer cancel()

	res, err := h.flow.ListServices(ctx, &req)
	if err != nil {
		return flowErrorResponse(c, h.logger, "list_services", "", err)
	}
	return successResponse(c, fiber.StatusOK, "Services retrieved successfully", res)
}

// GetService returns one service.
// @Summary Get Service
// @Tags Services
// @Produce json
// @Param serviceId path string true "Service ID"
// @Success 200 {object} dto.APIResponse{data=dto.ServiceDTO}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Service not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/services/{serviceId} [get]
func (h *ServiceHandler) GetService(c fiber.Ctx) error {
	serviceID := c.Params("serviceId")

	ctx, cancel := createRequestContext(c, "/api/v1/services/:serviceId")
	defer cancel()

	res, err := h.flow.GetService(ctx, serviceID)
	if err != nil {
		return flowErrorResponse(c, h.logger, "get_service", serviceID, err)
	}
	return successResponse(c, fiber.StatusOK, "Service retrieved successfully", res)
}
