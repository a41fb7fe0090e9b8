package book

import (
	"predmarket/internal/domain"

	"github.com/shopspring/decimal"
)

// Entry is one resting order in a snapshot.
type Entry struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Price   decimal.Decimal `json:"price"`
	Size    int64           `json:"size"`
}

// Level aggregates the resting size at one price.
type Level struct {
	Price decimal.Decimal `json:"price"`
	Size  int64           `json:"size"`
}

// TokenSnapshot is the sorted read-only view of one token's book: bids
// non-increasing in price, asks non-decreasing, FIFO within a price.
type TokenSnapshot struct {
	Bids      []Entry `json:"bids"`
	Asks      []Entry `json:"asks"`
	BidLevels []Level `json:"bid_levels"`
	AskLevels []Level `json:"ask_levels"`
}

// Snapshot is the full read-only view of a market's books.
type Snapshot struct {
	Yes TokenSnapshot `json:"yes_token"`
	No  TokenSnapshot `json:"no_token"`
}

// Token returns the snapshot for one token.
func (s *Snapshot) Token(t domain.Token) TokenSnapshot {
	if t == domain.TokenYes {
		return s.Yes
	}
	return s.No
}

// Snapshot copies the current book state. The result shares nothing with the
// live book and is safe to hand to readers.
func (b *MarketBook) Snapshot() *Snapshot {
	return &Snapshot{
		Yes: snapshotToken(b.tokens[domain.TokenYes]),
		No:  snapshotToken(b.tokens[domain.TokenNo]),
	}
}

func snapshotToken(tb *tokenBook) TokenSnapshot {
	return TokenSnapshot{
		Bids:      snapshotEntries(tb.bids),
		Asks:      snapshotEntries(tb.asks),
		BidLevels: snapshotLevels(tb.bids),
		AskLevels: snapshotLevels(tb.asks),
	}
}

func snapshotEntries(sb *sideBook) []Entry {
	out := make([]Entry, 0, len(sb.levels))
	for _, l := range sb.levels {
		for _, ro := range l.queue {
			out = append(out, Entry{
				OrderID: ro.id,
				UserID:  ro.userID,
				Price:   domain.TicksToPrice(ro.price),
				Size:    ro.remaining,
			})
		}
	}
	return out
}

func snapshotLevels(sb *sideBook) []Level {
	out := make([]Level, 0, len(sb.levels))
	for _, l := range sb.levels {
		out = append(out, Level{
			Price: domain.TicksToPrice(l.price),
			Size:  l.totalRemaining(),
		})
	}
	return out
}
