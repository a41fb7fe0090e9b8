package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

// Token identifies which outcome share an order trades.
type Token string

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"

	TokenYes Token = "YES"
	TokenNo  Token = "NO"

	OrderOpen      OrderStatus = "open"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
)

// Tick bounds for limit prices. One tick is one cent of probability, so the
// valid price range 0.01..0.99 maps to ticks 1..99.
const (
	TickMin int64 = 1
	TickMax int64 = 99
)

// Valid reports whether s is a known order side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Valid reports whether t is a known token.
func (t Token) Valid() bool {
	return t == TokenYes || t == TokenNo
}

// Order represents a limit order on one token of a market.
// Price is persisted as a decimal in [0.01, 0.99]; all matching and cash
// arithmetic uses integer ticks (see PriceTicks) to avoid float drift.
type Order struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	MarketID  string          `gorm:"index" json:"market_id"`
	UserID    string          `gorm:"index" json:"user_id"`
	Side      Side            `json:"side"`
	Token     Token           `json:"token"`
	Price     decimal.Decimal `json:"price"`
	Size      int64           `json:"size"`
	Filled    int64           `json:"filled"`
	Status    OrderStatus     `gorm:"index" json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	FilledAt  *time.Time      `json:"filled_at,omitempty"`
}

// PriceTicks converts the stored decimal price to integer ticks.
func (o *Order) PriceTicks() int64 {
	return PriceToTicks(o.Price)
}

// Remaining returns the unfilled size.
func (o *Order) Remaining() int64 {
	return o.Size - o.Filled
}

// IsOpen checks if the order is still active.
func (o *Order) IsOpen() bool {
	return o.Status == OrderOpen
}

// PriceToTicks converts a decimal price to ticks (0.45 -> 45).
func PriceToTicks(p decimal.Decimal) int64 {
	return p.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// TicksToPrice converts ticks back to the decimal form used for storage.
func TicksToPrice(ticks int64) decimal.Decimal {
	return decimal.New(ticks, -2)
}

// ClampTicks forces t into the valid tick range.
func ClampTicks(t int64) int64 {
	if t < TickMin {
		return TickMin
	}
	if t > TickMax {
		return TickMax
	}
	return t
}

// CostCents is the cash required to buy size shares of token at a tick
// price: price*size for YES, (1-price)*size for NO.
func CostCents(token Token, ticks, size int64) int64 {
	if token == TokenYes {
		return ticks * size
	}
	return (100 - ticks) * size
}

// CentsToDecimal converts an integer cent amount to dollars.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
