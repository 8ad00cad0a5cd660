package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/detailing-pricing/app/dto"
	"github.com/amirphl/detailing-pricing/models"
	"github.com/amirphl/detailing-pricing/repository"
	"github.com/amirphl/detailing-pricing/utils"
	"github.com/google/uuid"
)

const (
	defaultServiceCategory = "general"
	defaultServiceDuration = 60
)

// ServiceCatalogFlow manages the detailing services that pricing records attach to
type ServiceCatalogFlow interface {
	CreateService(ctx context.Context, req *dto.CreateServiceRequest) (*dto.CreateServiceResponse, error)
	ListServices(ctx context.Context, req *dto.ListServicesRequest) (*dto.ListServicesResponse, error)
	GetService(ctx context.Context, serviceID string) (*dto.ServiceDTO, error)
}

// ServiceCatalogFlowImpl implements ServiceCatalogFlow
type ServiceCatalogFlowImpl struct {
	serviceRepo repository.ServiceRepository
	clock       utils.Clock
}

// NewServiceCatalogFlow creates a new service catalog flow
func NewServiceCatalogFlow(serviceRepo repository.ServiceRepository, clock utils.Clock) ServiceCatalogFlow {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &ServiceCatalogFlowImpl{serviceRepo: serviceRepo, clock: clock}
}

func (f *ServiceCatalogFlowImpl) CreateService(ctx context.Context, req *dto.CreateServiceRequest) (*dto.CreateServiceResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewBusinessError("SERVICE_NAME_INVALID", "Service name is required", ErrServiceNameInvalid)
	}

	existing, err := f.serviceRepo.ByName(ctx, name)
	if err != nil {
		return nil, newPersistenceError("SERVICE_LOAD_FAILED", "Failed to load service", err)
	}
	if existing != nil {
		return nil, NewBusinessError("SERVICE_ALREADY_EXISTS", "A service with this name already exists", ErrServiceAlreadyExists)
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = defaultServiceCategory
	}
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = defaultServiceDuration
	}

	now := f.clock.Now()
	svc := &models.Service{
		UUID:            uuid.New(),
		Name:            name,
		Category:        category,
		DurationMinutes: duration,
		IsActive:        utils.ToPtr(true),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := f.serviceRepo.Save(ctx, svc); err != nil {
		return nil, newPersistenceError("SERVICE_CREATE_FAILED", "Failed to create service", err)
	}

	return &dto.CreateServiceResponse{
		Message: "Service created successfully",
		Service: toServiceDTO(svc),
	}, nil
}

func (f *ServiceCatalogFlowImpl) ListServices(ctx context.Context, req *dto.ListServicesRequest) (*dto.ListServicesResponse, error) {
	filter := models.ServiceFilter{}
	if req != nil && req.ActiveOnly {
		filter.IsActive = utils.ToPtr(true)
	}

	rows, err := f.serviceRepo.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, newPersistenceError("SERVICE_LIST_FAILED", "Failed to list services", err)
	}

	items := make([]dto.ServiceDTO, 0, len(rows))
	for _, svc := range rows {
		items = append(items, toServiceDTO(svc))
	}
	return &dto.ListServicesResponse{Count: len(items), Items: items}, nil
}

func (f *ServiceCatalogFlowImpl) GetService(ctx context.Context, serviceID string) (*dto.ServiceDTO, error) {
	id, err := parseServiceID(serviceID)
	if err != nil {
		return nil, err
	}
	svc, err := f.serviceRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, newPersistenceError("SERVICE_LOAD_FAILED", "Failed to load service", err)
	}
	if svc == nil {
		return nil, NewBusinessError("SERVICE_NOT_FOUND", "Service not found", ErrServiceNotFound)
	}
	out := toServiceDTO(svc)
	return &out, nil
}

func toServiceDTO(svc *models.Service) dto.ServiceDTO {
	return dto.ServiceDTO{
		ID:              svc.UUID.String(),
		Name:            svc.Name,
		Category:        svc.Category,
		DurationMinutes: svc.DurationMinutes,
		IsActive:        utils.IsTrue(svc.IsActive),
		CreatedAt:       svc.CreatedAt.UTC().Format(time.RFC3339),
	}
}
