package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"predmarket/internal/domain"
	"predmarket/internal/infra/storage"
	"predmarket/internal/ledger"
)

type testEnv struct {
	engine *Engine
	store  *storage.Store
	ledger *ledger.Ledger
}

func newTestEnv(t *testing.T, mode string) *testEnv {
	t.Helper()
	store, err := storage.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	l := ledger.New(store)

	bookStrategy := NewBookStrategy(store, NewRegistry())
	opts := []Option{WithFallback(NewStoreStrategy(store))}
	if mode == "store" {
		bookStrategy.Disable()
	}
	return &testEnv{
		engine: New(store, l, bookStrategy, opts...),
		store:  store,
		ledger: l,
	}
}

func (env *testEnv) createMarket(t *testing.T, id string) {
	t.Helper()
	err := env.store.CreateMarket(context.Background(), &domain.Market{
		ID:        id,
		Title:     "test market",
		Status:    domain.MarketActive,
		EndDate:   time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
}

func (env *testEnv) createAccount(t *testing.T, id string, balanceCents int64) {
	t.Helper()
	err := env.store.CreateAccount(context.Background(), &domain.Account{
		ID: id, Username: id, BalanceCents: balanceCents, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
}

func (env *testEnv) givePosition(t *testing.T, userID, marketID string, yes, no int64) {
	t.Helper()
	err := env.store.SavePosition(context.Background(), &domain.Position{
		UserID: userID, MarketID: marketID, YesShares: yes, NoShares: no,
	})
	if err != nil {
		t.Fatalf("save position: %v", err)
	}
}

func (env *testEnv) balance(t *testing.T, id string) int64 {
	t.Helper()
	acct, err := env.store.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acct.BalanceCents
}

func buy(marketID, userID string, token domain.Token, ticks, size int64) PlaceOrderRequest {
	return PlaceOrderRequest{MarketID: marketID, UserID: userID, Side: domain.SideBuy, Token: token, PriceTicks: ticks, Size: size}
}

func sell(marketID, userID string, token domain.Token, ticks, size int64) PlaceOrderRequest {
	return PlaceOrderRequest{MarketID: marketID, UserID: userID, Side: domain.SideSell, Token: token, PriceTicks: ticks, Size: size}
}

// forEachMode runs a scenario against the in-memory book and the database
// scan path; both must behave identically.
func forEachMode(t *testing.T, fn func(t *testing.T, env *testEnv)) {
	for _, mode := range []string{"memory", "store"} {
		t.Run(mode, func(t *testing.T) {
			fn(t, newTestEnv(t, mode))
		})
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	env := newTestEnv(t, "memory")
	env.createMarket(t, "m1")
	env.createAccount(t, "alice", 100000)
	ctx := context.Background()

	cases := []struct {
		name string
		req  PlaceOrderRequest
		want error
	}{
		{"BadSide", PlaceOrderRequest{MarketID: "m1", UserID: "alice", Side: "LONG", Token: domain.TokenYes, PriceTicks: 50, Size: 10}, domain.ErrInvalidSide},
		{"BadToken", PlaceOrderRequest{MarketID: "m1", UserID: "alice", Side: domain.SideBuy, Token: "MAYBE", PriceTicks: 50, Size: 10}, domain.ErrInvalidToken},
		{"PriceTooLow", buy("m1", "alice", domain.TokenYes, 0, 10), domain.ErrInvalidPrice},
		{"PriceTooHigh", buy("m1", "alice", domain.TokenYes, 100, 10), domain.ErrInvalidPrice},
		{"ZeroSize", buy("m1", "alice", domain.TokenYes, 50, 0), domain.ErrInvalidSize},
		{"NegativeSize", buy("m1", "alice", domain.TokenYes, 50, -5), domain.ErrInvalidSize},
		{"UnknownMarket", buy("nope", "alice", domain.TokenYes, 50, 10), domain.ErrMarketNotFound},
		{"UnknownUser", buy("m1", "ghost", domain.TokenYes, 50, 10), domain.ErrUserNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := env.engine.PlaceOrder(ctx, c.req); !errors.Is(err, c.want) {
				t.Errorf("err = %v, want %v", err, c.want)
			}
		})
	}
}

func TestPlaceOrderMarketState(t *testing.T) {
	ctx := context.Background()

	t.Run("ResolvedMarket", func(t *testing.T) {
		env := newTestEnv(t, "memory")
		env.createAccount(t, "alice", 100000)
		outcome := true
		env.store.CreateMarket(ctx, &domain.Market{
			ID: "resolved", Title: "done", Status: domain.MarketResolved,
			Resolution: &outcome, EndDate: time.Now().Add(time.Hour),
		})
		if _, err := env.engine.PlaceOrder(ctx, buy("resolved", "alice", domain.TokenYes, 50, 10)); !errors.Is(err, domain.ErrMarketNotActive) {
			t.Errorf("err = %v, want ErrMarketNotActive", err)
		}
	})

	t.Run("EndedMarket", func(t *testing.T) {
		env := newTestEnv(t, "memory")
		env.createAccount(t, "alice", 100000)
		env.store.CreateMarket(ctx, &domain.Market{
			ID: "ended", Title: "past", Status: domain.MarketActive,
			EndDate: time.Now().Add(-time.Hour),
		})
		if _, err := env.engine.PlaceOrder(ctx, buy("ended", "alice", domain.TokenYes, 50, 10)); !errors.Is(err, domain.ErrMarketEnded) {
			t.Errorf("err = %v, want ErrMarketEnded", err)
		}
	})
}

func TestPlaceOrderRests(t *testing.T) {
	forEachMode(t, func(t *testing.T, env *testEnv) {
		env.createMarket(t, "m1")
		env.createAccount(t, "alice", 10000)
		ctx := context.Background()

		res, err := env.engine.PlaceOrder(ctx, buy("m1", "alice", domain.TokenYes, 45, 100))
		if err != nil {
			t.Fatalf("PlaceOrder: %v", err)
		}
		if len(res.Trades) != 0 {
			t.Errorf("trades = %d on empty book, want 0", len(res.Trades))
		}
		if res.RemainingSize != 100 {
			t.Errorf("remaining = %d, want 100", res.RemainingSize)
		}
		if got := env.balance(t, "alice"); got != 5500 {
			t.Errorf("balance = %d, want 5500 after reservation", got)
		}

		snap, err := env.engine.Orderbook(ctx, "m1")
		if err != nil {
			t.Fatalf("Orderbook: %v", err)
		}
		if len(snap.Yes.Bids) != 1 || snap.Yes.Bids[0].Size != 100 {
			t.Errorf("resting bids = %+v, want one of 100", snap.Yes.Bids)
		}
	})
}

func TestMatchSettlesAtMakerPrice(t *testing.T) {
	forEachMode(t, func(t *testing.T, env *testEnv) {
		env.createMarket(t, "m1")
		env.createAccount(t, "buyer", 10000)
		env.createAccount(t, "seller", 0)
		env.givePosition(t, "seller", "m1", 100, 0)
		ctx := context.Background()

		if _, err := env.engine.PlaceOrder(ctx, buy("m1", "buyer", domain.TokenYes, 45, 100)); err != nil {
			t.Fatalf("resting buy: %v", err)
		}
		res, err := env.engine.PlaceOrder(ctx, sell("m1", "seller", domain.TokenYes, 40, 100))
		if err != nil {
			t.Fatalf("taker sell: %v", err)
		}

		if len(res.Trades) != 1 {
			t.Fatalf("trades = %d, want 1", len(res.Trades))
		}
		trade := res.Trades[0]
		if trade.PriceTicks() != 45 {
			t.Errorf("trade price = %d ticks, want maker price 45", trade.PriceTicks())
		}
		if trade.BuyerID != "buyer" || trade.SellerID != "seller" {
			t.Errorf("trade parties = %s/%s", trade.BuyerID, trade.SellerID)
		}

		// Seller receives the maker-price proceeds, buyer paid exactly the
		// reservation.
		if got := env.balance(t, "seller"); got != 4500 {
			t.Errorf("seller balance = %d, want 4500", got)
		}
		if got := env.balance(t, "buyer"); got != 5500 {
			t.Errorf("buyer balance = %d, want 5500", got)
		}

		buyerPos, _ := env.store.GetPosition(ctx, "buyer", "m1")
		if buyerPos == nil || buyerPos.YesShares != 100 {
			t.Errorf("buyer position = %+v, want 100 YES", buyerPos)
		}

		snap, _ := env.engine.Orderbook(ctx, "m1")
		if len(snap.Yes.Bids) != 0 || len(snap.Yes.Asks) != 0 {
			t.Errorf("book not empty after full cross: %+v", snap.Yes)
		}

		// Both order rows closed.
		makerRow, _ := env.store.GetOrder(ctx, trade.MakerOrderID)
		if makerRow.Status != domain.OrderFilled {
			t.Errorf("maker status = %s, want filled", makerRow.Status)
		}
		takerRow, _ := env.store.GetOrder(ctx, res.Order.ID)
		if takerRow.Status != domain.OrderFilled {
			t.Errorf("taker status = %s, want filled", takerRow.Status)
		}
	})
}

func TestTakerBuyerPriceImprovement(t *testing.T) {
	forEachMode(t, func(t *testing.T, env *testEnv) {
		env.createMarket(t, "m1")
		env.createAccount(t, "buyer", 10000)
		env.createAccount(t, "seller", 0)
		env.givePosition(t, "seller", "m1", 100, 0)
		ctx := context.Background()

		if _, err := env.engine.PlaceOrder(ctx, sell("m1", "seller", domain.TokenYes, 45, 100)); err != nil {
			t.Fatalf("resting ask: %v", err)
		}
		res, err := env.engine.PlaceOrder(ctx, buy("m1", "buyer", domain.TokenYes, 50, 100))
		if err != nil {
			t.Fatalf("taker buy: %v", err)
		}
		if len(res.Trades) != 1 || res.Trades[0].PriceTicks() != 45 {
			t.Fatalf("trades = %+v, want one at 45", res.Trades)
		}
		// Reserved 5000, executed for 4500: the difference comes back.
		if got := env.balance(t, "buyer"); got != 5500 {
			t.Errorf("buyer balance = %d, want 5500", got)
		}
	})
}

func TestFIFOAcrossPlacements(t *testing.T) {
	forEachMode(t, func(t *testing.T, env *testEnv) {
		env.createMarket(t, "m1")
		env.createAccount(t, "a", 10000)
		env.createAccount(t, "b", 10000)
		env.createAccount(t, "seller", 0)
		env.givePosition(t, "seller", "m1", 60, 0)
		ctx := context.Background()

		first, err := env.engine.PlaceOrder(ctx, buy("m1", "a", domain.TokenYes, 50, 50))
		if err != nil {
			t.Fatal(err)
		}
		second, err := env.engine.PlaceOrder(ctx, buy("m1", "b", domain.TokenYes, 50, 50))
		if err != nil {
			t.Fatal(err)
		}

		res, err := env.engine.PlaceOrder(ctx, sell("m1", "seller", domain.TokenYes, 50, 60))
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Trades) != 2 {
			t.Fatalf("trades = %d, want 2", len(res.Trades))
		}
		if res.Trades[0].MakerOrderID != first.Order.ID || res.Trades[0].Size != 50 {
			t.Errorf("first trade maker = %s size %d, want first placement for 50", res.Trades[0].MakerOrderID, res.Trades[0].Size)
		}
		if res.Trades[1].MakerOrderID != second.Order.ID || res.Trades[1].Size != 10 {
			t.Errorf("second trade maker = %s size %d, want second placement for 10", res.Trades[1].MakerOrderID, res.Trades[1].Size)
		}

		// Partial maker still open with the remainder.
		row, _ := env.store.GetOrder(ctx, second.Order.ID)
		if row.Status != domain.OrderOpen || row.Remaining() != 40 {
			t.Errorf("partial maker = %s remaining %d, want open/40", row.Status, row.Remaining())
		}

		// Trade rows reconcile with the order's filled count.
		vol, err := env.store.TradeVolume(ctx, res.Order.ID)
		if err != nil {
			t.Fatalf("TradeVolume: %v", err)
		}
		if vol != 60 {
			t.Errorf("trade volume for taker = %d, want 60", vol)
		}
	})
}

func TestSellWithoutShares(t *testing.T) {
	forEachMode(t, func(t *testing.T, env *testEnv) {
		env.createMarket(t, "m1")
		env.createAccount(t, "alice", 10000)

		_, err := env.engine.PlaceOrder(context.Background(), sell("m1", "alice", domain.TokenYes, 50, 10))
		if !errors.Is(err, domain.ErrInsufficientShares) {
			t.Errorf("err = %v, want ErrInsufficientShares", err)
		}
	})
}

func TestInsufficientBalanceLeavesNoTrace(t *testing.T) {
	forEachMode(t, func(t *testing.T, env *testEnv) {
		env.createMarket(t, "m1")
		env.createAccount(t, "alice", 100)
		ctx := context.Background()

		_, err := env.engine.PlaceOrder(ctx, buy("m1", "alice", domain.TokenYes, 50, 100))
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Fatalf("err = %v, want ErrInsufficientBalance", err)
		}
		snap, _ := env.engine.Orderbook(ctx, "m1")
		if len(snap.Yes.Bids) != 0 {
			t.Errorf("rejected order resting in book: %+v", snap.Yes.Bids)
		}
		if got := env.balance(t, "alice"); got != 100 {
			t.Errorf("balance = %d, want untouched 100", got)
		}
	})
}

func TestCancelOrder(t *testing.T) {
	forEachMode(t, func(t *testing.T, env *testEnv) {
		env.createMarket(t, "m1")
		env.createAccount(t, "alice", 10000)
		env.createAccount(t, "bob", 10000)
		ctx := context.Background()

		res, err := env.engine.PlaceOrder(ctx, buy("m1", "alice", domain.TokenYes, 45, 100))
		if err != nil {
			t.Fatal(err)
		}

		t.Run("NotOwner", func(t *testing.T) {
			if _, err := env.engine.CancelOrder(ctx, res.Order.ID, "bob"); !errors.Is(err, domain.ErrNotOwner) {
				t.Errorf("err = %v, want ErrNotOwner", err)
			}
		})

		t.Run("RefundsReservation", func(t *testing.T) {
			o, err := env.engine.CancelOrder(ctx, res.Order.ID, "alice")
			if err != nil {
				t.Fatalf("CancelOrder: %v", err)
			}
			if o.Status != domain.OrderCancelled {
				t.Errorf("status = %s, want cancelled", o.Status)
			}
			if got := env.balance(t, "alice"); got != 10000 {
				t.Errorf("balance = %d, want full 10000 back", got)
			}
			snap, _ := env.engine.Orderbook(ctx, "m1")
			if len(snap.Yes.Bids) != 0 {
				t.Errorf("cancelled order still resting: %+v", snap.Yes.Bids)
			}
		})

		t.Run("AlreadyCancelled", func(t *testing.T) {
			if _, err := env.engine.CancelOrder(ctx, res.Order.ID, "alice"); !errors.Is(err, domain.ErrOrderNotCancellable) {
				t.Errorf("err = %v, want ErrOrderNotCancellable", err)
			}
		})

		t.Run("UnknownOrder", func(t *testing.T) {
			if _, err := env.engine.CancelOrder(ctx, "missing", "alice"); !errors.Is(err, domain.ErrOrderNotFound) {
				t.Errorf("err = %v, want ErrOrderNotFound", err)
			}
		})
	})
}

func TestCancelFilledOrder(t *testing.T) {
	env := newTestEnv(t, "memory")
	env.createMarket(t, "m1")
	env.createAccount(t, "buyer", 10000)
	env.createAccount(t, "seller", 0)
	env.givePosition(t, "seller", "m1", 100, 0)
	ctx := context.Background()

	res, err := env.engine.PlaceOrder(ctx, buy("m1", "buyer", domain.TokenYes, 45, 100))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.engine.PlaceOrder(ctx, sell("m1", "seller", domain.TokenYes, 45, 100)); err != nil {
		t.Fatal(err)
	}

	if _, err := env.engine.CancelOrder(ctx, res.Order.ID, "buyer"); !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Errorf("err = %v, want ErrOrderNotCancellable for filled order", err)
	}
}

func TestMarketStatsUpdated(t *testing.T) {
	env := newTestEnv(t, "memory")
	env.createMarket(t, "m1")
	env.createAccount(t, "buyer", 10000)
	env.createAccount(t, "seller", 0)
	env.givePosition(t, "seller", "m1", 100, 0)
	ctx := context.Background()

	env.engine.PlaceOrder(ctx, buy("m1", "buyer", domain.TokenYes, 45, 100))
	env.engine.PlaceOrder(ctx, sell("m1", "seller", domain.TokenYes, 45, 100))

	m, err := env.store.GetMarket(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalVolumeCents != 4500 {
		t.Errorf("volume = %d, want 4500", m.TotalVolumeCents)
	}
	if domain.PriceToTicks(m.YesPrice) != 45 {
		t.Errorf("yes price = %s, want 0.45", m.YesPrice)
	}
	if domain.PriceToTicks(m.NoPrice) != 55 {
		t.Errorf("no price = %s, want 0.55", m.NoPrice)
	}
}

func TestStoreFallbackWhenBookDisabled(t *testing.T) {
	env := newTestEnv(t, "store")
	env.createMarket(t, "m1")
	env.createAccount(t, "buyer", 10000)
	env.createAccount(t, "seller", 0)
	env.givePosition(t, "seller", "m1", 100, 0)
	ctx := context.Background()

	if _, err := env.engine.PlaceOrder(ctx, buy("m1", "buyer", domain.TokenYes, 45, 100)); err != nil {
		t.Fatalf("place through fallback: %v", err)
	}
	res, err := env.engine.PlaceOrder(ctx, sell("m1", "seller", domain.TokenYes, 45, 100))
	if err != nil {
		t.Fatalf("match through fallback: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
}

func TestNoFallbackConfigured(t *testing.T) {
	store, err := storage.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	bookStrategy := NewBookStrategy(store, NewRegistry())
	bookStrategy.Disable()
	e := New(store, ledger.New(store), bookStrategy)

	ctx := context.Background()
	store.CreateMarket(ctx, &domain.Market{
		ID: "m1", Title: "t", Status: domain.MarketActive, EndDate: time.Now().Add(time.Hour),
	})
	store.CreateAccount(ctx, &domain.Account{ID: "alice", Username: "alice", BalanceCents: 10000})

	_, err = e.PlaceOrder(ctx, buy("m1", "alice", domain.TokenYes, 50, 10))
	if !errors.Is(err, domain.ErrEngineUnavailable) {
		t.Errorf("err = %v, want ErrEngineUnavailable", err)
	}
}

func TestCancelMarketOrders(t *testing.T) {
	forEachMode(t, func(t *testing.T, env *testEnv) {
		env.createMarket(t, "m1")
		env.createAccount(t, "a", 10000)
		env.createAccount(t, "b", 10000)
		ctx := context.Background()

		env.engine.PlaceOrder(ctx, buy("m1", "a", domain.TokenYes, 40, 50))
		env.engine.PlaceOrder(ctx, buy("m1", "b", domain.TokenNo, 30, 50))

		n, err := env.engine.CancelMarketOrders(ctx, "m1")
		if err != nil {
			t.Fatalf("CancelMarketOrders: %v", err)
		}
		if n != 2 {
			t.Errorf("cancelled = %d, want 2", n)
		}
		if got := env.balance(t, "a"); got != 10000 {
			t.Errorf("a balance = %d, want full refund", got)
		}
		if got := env.balance(t, "b"); got != 10000 {
			t.Errorf("b balance = %d, want full refund", got)
		}
		open, _ := env.store.OpenOrders(ctx, "m1")
		if len(open) != 0 {
			t.Errorf("open orders = %d after sweep, want 0", len(open))
		}
	})
}

func TestColdBookFirstOrderRestsOnce(t *testing.T) {
	// The taker's row is persisted before matching. When that order is the
	// first touch of a market's book, the rebuild from open orders must not
	// rest it alongside the copy Insert rests.
	env := newTestEnv(t, "memory")
	env.createMarket(t, "m1")
	env.createAccount(t, "alice", 100000)
	env.createAccount(t, "bob", 100000)
	env.givePosition(t, "bob", "m1", 200, 0)
	ctx := context.Background()

	res, err := env.engine.PlaceOrder(ctx, buy("m1", "alice", domain.TokenYes, 45, 100))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	snap, err := env.engine.Orderbook(ctx, "m1")
	if err != nil {
		t.Fatalf("Orderbook: %v", err)
	}
	if len(snap.Yes.Bids) != 1 {
		t.Fatalf("resting bids = %d, want 1", len(snap.Yes.Bids))
	}
	if snap.Yes.Bids[0].OrderID != res.Order.ID || snap.Yes.Bids[0].Size != 100 {
		t.Errorf("resting bid = %+v, want order %s size 100", snap.Yes.Bids[0], res.Order.ID)
	}

	// A larger crossing sell consumes the bid exactly once.
	sellRes, err := env.engine.PlaceOrder(ctx, sell("m1", "bob", domain.TokenYes, 45, 200))
	if err != nil {
		t.Fatalf("PlaceOrder sell: %v", err)
	}
	if sellRes.FilledAmount != 100 {
		t.Errorf("seller filled = %d, want 100", sellRes.FilledAmount)
	}
	maker, err := env.store.GetOrder(ctx, res.Order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if maker.Filled != maker.Size {
		t.Errorf("maker filled = %d, want %d", maker.Filled, maker.Size)
	}
}

func TestCancelMarketOrdersPrunesLock(t *testing.T) {
	env := newTestEnv(t, "memory")
	env.createMarket(t, "m1")
	env.createAccount(t, "alice", 10000)
	ctx := context.Background()

	if _, err := env.engine.PlaceOrder(ctx, buy("m1", "alice", domain.TokenYes, 40, 50)); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if _, err := env.engine.CancelMarketOrders(ctx, "m1"); err != nil {
		t.Fatalf("CancelMarketOrders: %v", err)
	}

	env.engine.locks.mu.Lock()
	_, ok := env.engine.locks.locks["m1"]
	env.engine.locks.mu.Unlock()
	if ok {
		t.Error("lock entry for resolved market still present")
	}
}

func TestBookRebuiltFromStore(t *testing.T) {
	// A fresh engine over the same store must see resting liquidity placed
	// by a previous engine instance.
	store, err := storage.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	l := ledger.New(store)
	ctx := context.Background()

	store.CreateMarket(ctx, &domain.Market{
		ID: "m1", Title: "t", Status: domain.MarketActive, EndDate: time.Now().Add(time.Hour),
	})
	store.CreateAccount(ctx, &domain.Account{ID: "alice", Username: "alice", BalanceCents: 10000})
	store.CreateAccount(ctx, &domain.Account{ID: "bob", Username: "bob", BalanceCents: 10000})
	store.SavePosition(ctx, &domain.Position{UserID: "bob", MarketID: "m1", YesShares: 100})

	first := New(store, l, NewBookStrategy(store, NewRegistry()))
	if _, err := first.PlaceOrder(ctx, buy("m1", "alice", domain.TokenYes, 45, 100)); err != nil {
		t.Fatal(err)
	}

	second := New(store, l, NewBookStrategy(store, NewRegistry()))
	res, err := second.PlaceOrder(ctx, sell("m1", "bob", domain.TokenYes, 45, 100))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 1 || res.Trades[0].PriceTicks() != 45 {
		t.Fatalf("trades after rebuild = %+v, want one at 45", res.Trades)
	}
}
