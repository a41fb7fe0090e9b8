package domain

import "time"

// Position tracks a user's YES/NO share holdings in one market. Created
// lazily on first fill; share counts never go negative.
type Position struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	MarketID  string    `gorm:"primaryKey" json:"market_id"`
	YesShares int64     `json:"yes_shares"`
	NoShares  int64     `json:"no_shares"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Shares returns the holdings of one token.
func (p *Position) Shares(t Token) int64 {
	if t == TokenYes {
		return p.YesShares
	}
	return p.NoShares
}

// AddShares credits n shares of t.
func (p *Position) AddShares(t Token, n int64) {
	if t == TokenYes {
		p.YesShares += n
	} else {
		p.NoShares += n
	}
}

// RemoveShares debits n shares of t. A short position is rejected, never
// clamped.
func (p *Position) RemoveShares(t Token, n int64) error {
	have := p.Shares(t)
	if have < n {
		return &SharesError{Token: t, Have: have, Want: n}
	}
	if t == TokenYes {
		p.YesShares -= n
	} else {
		p.NoShares -= n
	}
	return nil
}

// Winning returns the share count that pays out for the given outcome.
func (p *Position) Winning(outcome bool) int64 {
	if outcome {
		return p.YesShares
	}
	return p.NoShares
}
