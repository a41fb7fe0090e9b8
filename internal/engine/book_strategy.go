package engine

import (
	"context"
	"fmt"
	"log/slog"

	"predmarket/internal/book"
	"predmarket/internal/domain"
	"predmarket/internal/infra/storage"
)

// BookStrategy matches against per-market in-memory order books. Books are
// rebuilt from persisted open orders on first access, so a restart loses no
// resting liquidity.
type BookStrategy struct {
	store    *storage.Store
	registry *Registry
	enabled  bool
}

// NewBookStrategy creates the in-memory matching path.
func NewBookStrategy(store *storage.Store, registry *Registry) *BookStrategy {
	return &BookStrategy{store: store, registry: registry, enabled: true}
}

// Disable makes every call report ErrEngineUnavailable, forcing callers onto
// the fallback path. Used when the in-memory engine is configured off.
func (s *BookStrategy) Disable() {
	s.enabled = false
}

// bookFor returns the market's live book, rebuilding it from persisted open
// orders on first access. excludeOrderID skips the in-flight taker: its row
// is persisted before matching, and restoring it here would leave it resting
// twice once Insert rests the remainder.
func (s *BookStrategy) bookFor(ctx context.Context, marketID, excludeOrderID string) (*book.MarketBook, error) {
	return s.registry.GetOrCreate(marketID, func() (*book.MarketBook, error) {
		open, err := s.store.OpenOrders(ctx, marketID)
		if err != nil {
			return nil, fmt.Errorf("load open orders: %w", err)
		}
		b := book.New()
		for i := range open {
			if open[i].ID == excludeOrderID {
				continue
			}
			b.Restore(&open[i])
		}
		return b, nil
	})
}

// Match runs the incoming order through the market's live book.
func (s *BookStrategy) Match(ctx context.Context, o *domain.Order) ([]domain.Fill, error) {
	if !s.enabled {
		return nil, domain.ErrEngineUnavailable
	}
	b, err := s.bookFor(ctx, o.MarketID, o.ID)
	if err != nil {
		return nil, err
	}
	return b.Insert(o), nil
}

// Remove cancels a resting order in the live book. A book rebuilt after the
// order row was already closed may not hold it; that is not an error, the
// row is authoritative.
func (s *BookStrategy) Remove(ctx context.Context, o *domain.Order) error {
	if !s.enabled {
		return domain.ErrEngineUnavailable
	}
	b, ok := s.registry.Get(o.MarketID)
	if !ok {
		return nil
	}
	if err := b.Cancel(o.ID); err != nil {
		slog.Debug("order not resting in live book",
			slog.String("order_id", o.ID), slog.String("market_id", o.MarketID))
	}
	return nil
}

// Snapshot returns the live book's state.
func (s *BookStrategy) Snapshot(ctx context.Context, marketID string) (*book.Snapshot, error) {
	if !s.enabled {
		return nil, domain.ErrEngineUnavailable
	}
	b, err := s.bookFor(ctx, marketID, "")
	if err != nil {
		return nil, err
	}
	return b.Snapshot(), nil
}

// Evict drops the market's live book.
func (s *BookStrategy) Evict(marketID string) {
	s.registry.Evict(marketID)
}

// Warm preloads books for every active market, typically at startup.
func (s *BookStrategy) Warm(ctx context.Context) error {
	if !s.enabled {
		return nil
	}
	markets, err := s.store.ActiveMarkets(ctx)
	if err != nil {
		return err
	}
	for _, m := range markets {
		if _, err := s.bookFor(ctx, m.ID, ""); err != nil {
			return fmt.Errorf("warm market %s: %w", m.ID, err)
		}
	}
	slog.Info("order books warmed", slog.Int("markets", len(markets)))
	return nil
}
