package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceHistoryEntry is an immutable record of one price computation.
// Table: price_history_entries
type PriceHistoryEntry struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	PricingID  uint            `gorm:"not null;index:idx_price_history_pricing_recorded,priority:1" json:"pricing_id"`
	ServiceID  uint            `gorm:"not null;index:idx_price_history_service_id" json:"service_id"`
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Demand     float64         `gorm:"type:numeric(6,4);not null" json:"demand"`
	Seasonal   float64         `gorm:"type:numeric(6,4);not null" json:"seasonal"`
	TimeOfDay  float64         `gorm:"type:numeric(6,4);not null" json:"time_of_day"`
	RecordedAt time.Time       `gorm:"not null;index:idx_price_history_pricing_recorded,priority:2" json:"recorded_at"`
}

func (PriceHistoryEntry) TableName() string {
	return "price_history_entries"
}

type PriceHistoryEntryFilter struct {
	PricingID      *uint      `json:"pricing_id,omitempty"`
	ServiceID      *uint      `json:"service_id,omitempty"`
	RecordedAfter  *time.Time `json:"recorded_after,omitempty"`
	RecordedBefore *time.Time `json:"recorded_before,omitempty"`
}
