package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus is the lifecycle state of a market.
type MarketStatus string

const (
	MarketActive   MarketStatus = "active"
	MarketResolved MarketStatus = "resolved"
)

// Market is a binary-outcome prediction market. Resolution is nil while the
// market is active and fixed exactly once; a resolved market is immutable.
type Market struct {
	ID               string          `gorm:"primaryKey" json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	Status           MarketStatus    `gorm:"index" json:"status"`
	EndDate          time.Time       `json:"end_date"`
	Resolution       *bool           `json:"resolution,omitempty"`
	YesPrice         decimal.Decimal `json:"yes_price"`
	NoPrice          decimal.Decimal `json:"no_price"`
	TotalVolumeCents int64           `json:"total_volume_cents"`
	CreatedAt        time.Time       `json:"created_at"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
}

// IsActive reports whether the market accepts orders.
func (m *Market) IsActive() bool {
	return m.Status == MarketActive
}

// HasEnded reports whether the market's end date has passed. Expiry is a pure
// read-time check; the book is not flushed when the end date passes.
func (m *Market) HasEnded(now time.Time) bool {
	return !now.Before(m.EndDate)
}
