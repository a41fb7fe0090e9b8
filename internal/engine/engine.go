package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"predmarket/internal/book"
	"predmarket/internal/domain"
	"predmarket/internal/infra"
	"predmarket/internal/infra/storage"
	"predmarket/internal/ledger"

	"github.com/google/uuid"
)

// PlaceOrderRequest is a validated order intent from an authenticated user.
type PlaceOrderRequest struct {
	MarketID   string
	UserID     string
	Side       domain.Side
	Token      domain.Token
	PriceTicks int64
	Size       int64
}

// PlaceResult reports the outcome of one order placement.
type PlaceResult struct {
	Order         *domain.Order
	Trades        []*domain.Trade
	FilledAmount  int64
	RemainingSize int64
}

// marketLocks serializes all book-mutating work per market. Different
// markets proceed independently.
type marketLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMarketLocks() *marketLocks {
	return &marketLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the per-market mutex and returns its unlock func.
func (m *marketLocks) Lock(marketID string) func() {
	m.mu.Lock()
	l, ok := m.locks[marketID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[marketID] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Evict drops a market's lock entry. Only safe once no further mutating work
// for the market can arrive.
func (m *marketLocks) Evict(marketID string) {
	m.mu.Lock()
	delete(m.locks, marketID)
	m.mu.Unlock()
}

// Engine orchestrates order placement: validation, cash/share reservation,
// matching through a strategy, and per-fill settlement. It owns the
// per-market serialization both strategies rely on.
type Engine struct {
	store    *storage.Store
	ledger   *ledger.Ledger
	primary  MatchingStrategy
	fallback MatchingStrategy
	locks    *marketLocks
	pub      domain.EventPublisher
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithFallback sets the strategy used when the primary reports
// ErrEngineUnavailable.
func WithFallback(s MatchingStrategy) Option {
	return func(e *Engine) { e.fallback = s }
}

// WithPublisher attaches an event publisher for trade and book updates.
func WithPublisher(p domain.EventPublisher) Option {
	return func(e *Engine) { e.pub = p }
}

// WithClock overrides the engine clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given store, ledger and primary strategy.
func New(store *storage.Store, l *ledger.Ledger, primary MatchingStrategy, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		ledger:  l,
		primary: primary,
		locks:   newMarketLocks(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// match runs the order through the primary strategy, degrading to the
// fallback when the primary is unavailable.
func (e *Engine) match(ctx context.Context, o *domain.Order) ([]domain.Fill, error) {
	fills, err := e.primary.Match(ctx, o)
	if errors.Is(err, domain.ErrEngineUnavailable) && e.fallback != nil {
		slog.Warn("in-memory engine unavailable, degrading to store matching",
			slog.String("market_id", o.MarketID))
		return e.fallback.Match(ctx, o)
	}
	return fills, err
}

func (e *Engine) remove(ctx context.Context, o *domain.Order) error {
	err := e.primary.Remove(ctx, o)
	if errors.Is(err, domain.ErrEngineUnavailable) && e.fallback != nil {
		return e.fallback.Remove(ctx, o)
	}
	return err
}

// PlaceOrder validates, reserves, matches and settles one incoming order.
// Matching runs to completion under the market lock before returning; the
// fill sequence is deterministic for a given arrival order.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceResult, error) {
	if !req.Side.Valid() {
		return nil, domain.ErrInvalidSide
	}
	if !req.Token.Valid() {
		return nil, domain.ErrInvalidToken
	}
	if req.PriceTicks < domain.TickMin || req.PriceTicks > domain.TickMax {
		return nil, domain.ErrInvalidPrice
	}
	if req.Size <= 0 {
		return nil, domain.ErrInvalidSize
	}

	m, err := e.store.GetMarket(ctx, req.MarketID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive() {
		return nil, domain.ErrMarketNotActive
	}
	if m.HasEnded(e.now()) {
		return nil, domain.ErrMarketEnded
	}

	unlock := e.locks.Lock(req.MarketID)
	defer unlock()

	started := time.Now()
	now := e.now()
	order := &domain.Order{
		ID:        uuid.NewString(),
		MarketID:  req.MarketID,
		UserID:    req.UserID,
		Side:      req.Side,
		Token:     req.Token,
		Price:     domain.TicksToPrice(req.PriceTicks),
		Size:      req.Size,
		Status:    domain.OrderOpen,
		CreatedAt: now,
	}

	// Pessimistic reservation before any matching.
	if req.Side == domain.SideBuy {
		err = e.ledger.ReserveForBuy(ctx, req.UserID, req.MarketID, order.ID, req.Token, req.PriceTicks, req.Size)
	} else {
		err = e.ledger.ReserveForSell(ctx, req.UserID, req.MarketID, req.Token, req.Size)
	}
	if err != nil {
		return nil, err
	}

	if err := e.store.CreateOrder(ctx, order); err != nil {
		return nil, e.abandonOrder(ctx, order, err)
	}

	fills, err := e.match(ctx, order)
	if err != nil {
		return nil, e.abandonOrder(ctx, order, err)
	}

	trades := make([]*domain.Trade, 0, len(fills))
	for _, f := range fills {
		trade, err := e.applyFill(ctx, order, f)
		if err != nil {
			infra.GlobalMetrics.RecordError()
			// Money-mutating failures propagate; fills already applied
			// stand, and the order row reflects exactly what happened.
			e.finishOrder(ctx, order)
			return nil, fmt.Errorf("apply fill: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := e.finishOrder(ctx, order); err != nil {
		return nil, err
	}
	if len(trades) > 0 {
		if err := e.updateMarketStats(ctx, m, trades); err != nil {
			return nil, err
		}
	}
	e.publishTrades(order.MarketID, trades)
	e.publishBookTop(ctx, order.MarketID, order.Token)

	infra.GlobalMetrics.RecordOrderPlaced(time.Since(started).Nanoseconds())
	for _, tr := range trades {
		infra.GlobalMetrics.RecordTrade(domain.CostCents(tr.Token, tr.PriceTicks(), tr.Size))
	}

	return &PlaceResult{
		Order:         order,
		Trades:        trades,
		FilledAmount:  order.Filled,
		RemainingSize: order.Remaining(),
	}, nil
}

// abandonOrder unwinds a placement that failed before any fill: the order
// row is closed and a buy reservation returned.
func (e *Engine) abandonOrder(ctx context.Context, o *domain.Order, cause error) error {
	o.Status = domain.OrderCancelled
	if err := e.store.SaveOrder(ctx, o); err != nil {
		slog.Error("failed to close abandoned order",
			slog.String("order_id", o.ID), slog.Any("error", err))
	}
	if err := e.ledger.RefundUnfilled(ctx, o); err != nil {
		slog.Error("failed to refund abandoned order",
			slog.String("order_id", o.ID), slog.Any("error", err))
	}
	return cause
}

// applyFill records one trade and settles it: trade row, maker order row
// update and the ledger movement run as one transaction.
func (e *Engine) applyFill(ctx context.Context, taker *domain.Order, f domain.Fill) (*domain.Trade, error) {
	now := e.now()

	buyerID, sellerID := taker.UserID, f.MakerUserID
	buyerOrderID, sellerOrderID := taker.ID, f.MakerOrderID
	buyerLimit := taker.PriceTicks()
	if taker.Side == domain.SideSell {
		buyerID, sellerID = f.MakerUserID, taker.UserID
		buyerOrderID, sellerOrderID = f.MakerOrderID, taker.ID
		// The maker bought at its own resting price; no improvement.
		buyerLimit = f.PriceTicks
	}

	trade := &domain.Trade{
		ID:           uuid.NewString(),
		MarketID:     taker.MarketID,
		Token:        taker.Token,
		Price:        domain.TicksToPrice(f.PriceTicks),
		Size:         f.Size,
		BuyerID:      buyerID,
		SellerID:     sellerID,
		MakerOrderID: f.MakerOrderID,
		TakerOrderID: taker.ID,
		CreatedAt:    now,
	}

	err := e.store.Transaction(ctx, func(tx *storage.Store) error {
		if err := tx.CreateTrade(ctx, trade); err != nil {
			return err
		}

		maker, err := tx.GetOrder(ctx, f.MakerOrderID)
		if err != nil {
			return fmt.Errorf("maker order: %w", err)
		}
		maker.Filled += f.Size
		if maker.Remaining() <= 0 {
			maker.Status = domain.OrderFilled
		}
		maker.FilledAt = &now
		if err := tx.SaveOrder(ctx, maker); err != nil {
			return err
		}

		return e.ledger.InTx(tx).SettleFill(ctx, ledger.FillSettlement{
			MarketID:        taker.MarketID,
			Token:           taker.Token,
			ExecTicks:       f.PriceTicks,
			Size:            f.Size,
			BuyerID:         buyerID,
			SellerID:        sellerID,
			BuyerOrderID:    buyerOrderID,
			SellerOrderID:   sellerOrderID,
			BuyerLimitTicks: buyerLimit,
		})
	})
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// finishOrder persists the taker's final fill state.
func (e *Engine) finishOrder(ctx context.Context, o *domain.Order) error {
	if o.Filled > 0 {
		now := e.now()
		o.FilledAt = &now
	}
	if o.Remaining() <= 0 {
		o.Status = domain.OrderFilled
	}
	return e.store.SaveOrder(ctx, o)
}

// updateMarketStats folds executed trades into the market's cumulative
// volume and last traded prices.
func (e *Engine) updateMarketStats(ctx context.Context, m *domain.Market, trades []*domain.Trade) error {
	for _, t := range trades {
		m.TotalVolumeCents += t.PriceTicks() * t.Size
	}
	last := trades[len(trades)-1]
	if last.Token == domain.TokenYes {
		m.YesPrice = last.Price
		m.NoPrice = domain.TicksToPrice(100 - last.PriceTicks())
	} else {
		m.NoPrice = last.Price
		m.YesPrice = domain.TicksToPrice(100 - last.PriceTicks())
	}
	return e.store.SaveMarket(ctx, m)
}

// CancelOrder withdraws an open order. Cancellation is immediate or
// rejected; there is no pending state.
func (e *Engine) CancelOrder(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrNotOwner
	}

	unlock := e.locks.Lock(o.MarketID)
	defer unlock()

	// Re-read under the lock; a concurrent fill may have closed it.
	o, err = e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsOpen() {
		return nil, domain.ErrOrderNotCancellable
	}

	if err := e.remove(ctx, o); err != nil {
		return nil, err
	}

	o.Status = domain.OrderCancelled
	err = e.store.Transaction(ctx, func(tx *storage.Store) error {
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		return e.ledger.InTx(tx).RefundUnfilled(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	infra.GlobalMetrics.RecordOrderCancelled()
	e.publishBookTop(ctx, o.MarketID, o.Token)
	return o, nil
}

// Orderbook returns a read-only snapshot of a market's resting liquidity.
func (e *Engine) Orderbook(ctx context.Context, marketID string) (*book.Snapshot, error) {
	if _, err := e.store.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	snap, err := e.primary.Snapshot(ctx, marketID)
	if errors.Is(err, domain.ErrEngineUnavailable) && e.fallback != nil {
		return e.fallback.Snapshot(ctx, marketID)
	}
	return snap, err
}

// CancelMarketOrders cancels every open order of a market, refunding
// buy-side reservations, and evicts the market's live book. Used by market
// resolution. Individual failures do not stop the sweep.
func (e *Engine) CancelMarketOrders(ctx context.Context, marketID string) (int, error) {
	unlock := e.locks.Lock(marketID)
	defer unlock()

	open, err := e.store.OpenOrders(ctx, marketID)
	if err != nil {
		return 0, err
	}

	var cancelled int
	var errs []error
	for i := range open {
		o := &open[i]
		if err := e.remove(ctx, o); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", o.ID, err))
			continue
		}
		o.Status = domain.OrderCancelled
		err := e.store.Transaction(ctx, func(tx *storage.Store) error {
			if err := tx.SaveOrder(ctx, o); err != nil {
				return err
			}
			return e.ledger.InTx(tx).RefundUnfilled(ctx, o)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", o.ID, err))
			continue
		}
		cancelled++
	}

	e.primary.Evict(marketID)
	if e.fallback != nil {
		e.fallback.Evict(marketID)
	}
	// The market is resolved by the time this runs; its lock entry would
	// otherwise live in the map forever.
	e.locks.Evict(marketID)
	return cancelled, errors.Join(errs...)
}

func (e *Engine) publishTrades(marketID string, trades []*domain.Trade) {
	if e.pub == nil {
		return
	}
	for _, t := range trades {
		e.pub.Publish(marketID, domain.TradeEvent{
			Type:      "trade",
			MarketID:  marketID,
			Token:     t.Token,
			Price:     t.Price,
			Size:      t.Size,
			Timestamp: t.CreatedAt,
		})
	}
}

func (e *Engine) publishBookTop(ctx context.Context, marketID string, token domain.Token) {
	if e.pub == nil {
		return
	}
	snap, err := e.primary.Snapshot(ctx, marketID)
	if errors.Is(err, domain.ErrEngineUnavailable) && e.fallback != nil {
		snap, err = e.fallback.Snapshot(ctx, marketID)
	}
	if err != nil {
		// Read-path degradation only; matching already succeeded.
		slog.Debug("book top snapshot failed", slog.String("market_id", marketID), slog.Any("error", err))
		return
	}
	ev := domain.BookTopEvent{Type: "book_top", MarketID: marketID, Token: token}
	ts := snap.Token(token)
	if len(ts.Bids) > 0 {
		p := ts.Bids[0].Price
		ev.BestBid = &p
	}
	if len(ts.Asks) > 0 {
		p := ts.Asks[0].Price
		ev.BestAsk = &p
	}
	e.pub.Publish(marketID, ev)
}
