package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an immutable record of one match event. It is created exactly once
// per fill and never updated.
type Trade struct {
	ID           string          `gorm:"primaryKey" json:"id"`
	MarketID     string          `gorm:"index" json:"market_id"`
	Token        Token           `json:"token"`
	Price        decimal.Decimal `json:"price"`
	Size         int64           `json:"size"`
	BuyerID      string          `json:"buyer_id"`
	SellerID     string          `json:"seller_id"`
	MakerOrderID string          `json:"maker_order_id"`
	TakerOrderID string          `json:"taker_order_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PriceTicks converts the stored decimal price to integer ticks.
func (t *Trade) PriceTicks() int64 {
	return PriceToTicks(t.Price)
}

// Fill describes one crossing produced by a matching strategy, before it is
// settled by the ledger and recorded as a Trade. The fill executes at the
// resting (maker) order's price.
type Fill struct {
	MakerOrderID string
	MakerUserID  string
	PriceTicks   int64
	Size         int64
}
