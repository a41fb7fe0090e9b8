package engine

import (
	"context"
	"sort"

	"predmarket/internal/book"
	"predmarket/internal/domain"
	"predmarket/internal/infra/storage"
)

// StoreStrategy matches by scanning open order rows in the store. It keeps
// no live state, which makes it the fallback when the in-memory engine is
// unavailable. The original ad hoc database scan raced with itself; here the
// Engine's per-market lock serializes the scan with the settlement writes,
// so the path is merely slower, not weaker.
type StoreStrategy struct {
	store *storage.Store
}

// NewStoreStrategy creates the database-only matching path.
func NewStoreStrategy(store *storage.Store) *StoreStrategy {
	return &StoreStrategy{store: store}
}

// opposite maker ordering: best price first, then arrival. All price
// comparison happens in tick space.
func sortMakers(makers []domain.Order, takerSide domain.Side) {
	sort.SliceStable(makers, func(i, j int) bool {
		pi, pj := makers[i].PriceTicks(), makers[j].PriceTicks()
		if pi != pj {
			if takerSide == domain.SideBuy {
				return pi < pj // taker buys: cheapest ask first
			}
			return pi > pj // taker sells: highest bid first
		}
		return makers[i].CreatedAt.Before(makers[j].CreatedAt)
	})
}

// Match scans the opposite side of the taker's token for crossing open
// orders. Maker rows are not mutated here; the Engine applies each fill.
func (s *StoreStrategy) Match(ctx context.Context, o *domain.Order) ([]domain.Fill, error) {
	oppSide := domain.SideSell
	if o.Side == domain.SideSell {
		oppSide = domain.SideBuy
	}
	makers, err := s.store.OpenOrdersForToken(ctx, o.MarketID, o.Token, oppSide)
	if err != nil {
		return nil, err
	}
	sortMakers(makers, o.Side)

	limit := o.PriceTicks()
	var fills []domain.Fill
	for i := range makers {
		if o.Remaining() <= 0 {
			break
		}
		maker := &makers[i]
		if !book.Crosses(o.Side, limit, maker.PriceTicks()) {
			break
		}
		if maker.Remaining() <= 0 {
			continue
		}
		n := o.Remaining()
		if maker.Remaining() < n {
			n = maker.Remaining()
		}
		o.Filled += n
		fills = append(fills, domain.Fill{
			MakerOrderID: maker.ID,
			MakerUserID:  maker.UserID,
			PriceTicks:   maker.PriceTicks(),
			Size:         n,
		})
	}
	return fills, nil
}

// Remove is a no-op: resting liquidity is exactly the set of open order
// rows, and the Engine closes the row itself.
func (s *StoreStrategy) Remove(ctx context.Context, o *domain.Order) error {
	return nil
}

// Snapshot rebuilds the book view from open order rows.
func (s *StoreStrategy) Snapshot(ctx context.Context, marketID string) (*book.Snapshot, error) {
	open, err := s.store.OpenOrders(ctx, marketID)
	if err != nil {
		return nil, err
	}
	b := book.New()
	for i := range open {
		if open[i].Remaining() > 0 {
			b.Restore(&open[i])
		}
	}
	return b.Snapshot(), nil
}

// Evict is a no-op; there is no live state.
func (s *StoreStrategy) Evict(marketID string) {}
