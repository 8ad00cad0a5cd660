package dto

// CreateServiceRequest adds a detailing service to the catalog
type CreateServiceRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=255"`
	Category        string `json:"category,omitempty" validate:"omitempty,max=100"`
	DurationMinutes int    `json:"durationMinutes,omitempty" validate:"omitempty,gt=0,lte=1440"`
}

type ListServicesRequest struct {
	ActiveOnly bool `json:"activeOnly"`
}

type ServiceDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	DurationMinutes int    `json:"durationMinutes"`
	IsActive        bool   `json:"isActive"`
	CreatedAt       string `json:"createdAt"`
}

type CreateServiceResponse struct {
	Message string     `json:"message"`
	Service ServiceDTO `json:"service"`
}

type ListServicesResponse struct {
	Count int          `json:"count"`
	Items []ServiceDTO `json:"items"`
}
