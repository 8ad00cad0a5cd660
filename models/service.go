package models

import (
	"time"

	"github.com/google/uuid"
)

// Service is a detailing service offered to customers (e.g. "Full Interior Detail").
// Table: services
type Service struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_services_uuid" json:"uuid"`
	Name            string    `gorm:"size:255;not null;uniqueIndex:uk_services_name" json:"name"`
	Category        string    `gorm:"size:100;not null;default:'general'" json:"category"`
	DurationMinutes int       `gorm:"not null;default:60" json:"duration_minutes"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Service) TableName() string {
	return "services"
}

type ServiceFilter struct {
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	Name     *string    `json:"name,omitempty"`
	Category *string    `json:"category,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}
