package domain

import "time"

// Account is a user cash account. Balances are integer cents; the decimal
// form is derived at the edges only.
type Account struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	Username         string    `json:"username"`
	BalanceCents     int64     `json:"balance_cents"`
	TotalVolumeCents int64     `json:"total_volume_cents"`
	CreatedAt        time.Time `json:"created_at"`
}

// TxType classifies a cash movement for the audit trail.
type TxType string

const (
	TxOrderPlaced     TxType = "order_placed"
	TxOrderCancelled  TxType = "order_cancelled"
	TxTrade           TxType = "trade"
	TxMarketPayout    TxType = "market_payout"
	TxPlatformFunding TxType = "platform_funding"
)

// CashTransaction is an audit row recorded alongside every balance mutation.
// The market_payout row doubles as the payout idempotency marker.
type CashTransaction struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string    `gorm:"index" json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	Type        TxType    `gorm:"index" json:"type"`
	Description string    `json:"description"`
	MarketID    string    `gorm:"index" json:"market_id"`
	OrderID     string    `json:"order_id"`
	CreatedAt   time.Time `json:"created_at"`
}
