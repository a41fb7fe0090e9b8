package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Feed event payloads. These are marshalled to JSON and fanned out to
// websocket subscribers by the feed hub.

// TradeEvent announces one executed fill.
type TradeEvent struct {
	Type      string          `json:"type"` // always "trade"
	MarketID  string          `json:"market_id"`
	Token     Token           `json:"token"`
	Price     decimal.Decimal `json:"price"`
	Size      int64           `json:"size"`
	Timestamp time.Time       `json:"timestamp"`
}

// BookTopEvent announces the best bid/ask of one token after the book
// changed. Absent sides are nil.
type BookTopEvent struct {
	Type     string           `json:"type"` // always "book_top"
	MarketID string           `json:"market_id"`
	Token    Token            `json:"token"`
	BestBid  *decimal.Decimal `json:"best_bid,omitempty"`
	BestAsk  *decimal.Decimal `json:"best_ask,omitempty"`
}

// ResolutionEvent announces that a market has been resolved.
type ResolutionEvent struct {
	Type     string    `json:"type"` // always "resolution"
	MarketID string    `json:"market_id"`
	Outcome  bool      `json:"outcome"`
	At       time.Time `json:"at"`
}
