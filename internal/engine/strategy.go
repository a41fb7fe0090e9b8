package engine

import (
	"context"

	"predmarket/internal/book"
	"predmarket/internal/domain"
)

// MatchingStrategy finds crossings for an incoming order against resting
// liquidity. Implementations only discover and consume liquidity; trade
// recording, maker row updates and all cash/share movement stay in the
// Engine, so callers and tests are agnostic to which strategy is active.
//
// Strategies are not safe for concurrent use on the same market; the Engine
// serializes calls per market.
type MatchingStrategy interface {
	// Match consumes resting liquidity for o under price-time priority,
	// advancing o.Filled in place, and leaves any remainder resting. Fills
	// are returned in execution order. Returns domain.ErrEngineUnavailable
	// when this strategy cannot serve requests.
	Match(ctx context.Context, o *domain.Order) ([]domain.Fill, error)

	// Remove withdraws a resting order from live liquidity. The persisted
	// order row stays authoritative; strategies without live state may
	// treat this as a no-op.
	Remove(ctx context.Context, o *domain.Order) error

	// Snapshot returns the current resting liquidity of a market, sorted
	// bids-descending and asks-ascending with FIFO inside a price.
	Snapshot(ctx context.Context, marketID string) (*book.Snapshot, error)

	// Evict drops any live state held for a resolved market.
	Evict(marketID string)
}
