package ledger

import (
	"context"
	"fmt"
	"time"

	"predmarket/internal/domain"
	"predmarket/internal/infra/storage"
)

// Ledger is the only component permitted to mutate Account balances and
// Position rows. Every operation runs in one database transaction and writes
// a cash audit row, so a fill can never be observed half-applied.
type Ledger struct {
	store *storage.Store
	now   func() time.Time
}

// New creates a ledger over the given store.
func New(store *storage.Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// InTx returns a ledger bound to a transactional store, so callers can fold
// ledger movements into a wider atomic unit.
func (l *Ledger) InTx(tx *storage.Store) *Ledger {
	return &Ledger{store: tx, now: l.now}
}

// FillSettlement describes the cash and share movement of one fill.
type FillSettlement struct {
	MarketID      string
	Token         domain.Token
	ExecTicks     int64
	Size          int64
	BuyerID       string
	SellerID      string
	BuyerOrderID  string
	SellerOrderID string

	// BuyerLimitTicks is the price the buyer's cash was reserved at. A
	// taker buying below its limit gets the difference back here; for a
	// maker buyer the execution price is its own limit and no refund is due.
	// For NO tokens a below-limit buy reserves (100-limit) cents per share,
	// less than the seller's credit of (100-exec), so no refund is due and
	// the fill is not cash-conserving. The buyer is never debited more than
	// was reserved.
	BuyerLimitTicks int64
}

// ReserveForBuy debits the full cost of a buy order before any matching
// happens (pessimistic reservation). Fails without mutation when the balance
// is short or the account does not exist.
func (l *Ledger) ReserveForBuy(ctx context.Context, userID, marketID, orderID string, token domain.Token, priceTicks, size int64) error {
	cost := domain.CostCents(token, priceTicks, size)
	return l.store.Transaction(ctx, func(tx *storage.Store) error {
		acct, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if acct.BalanceCents < cost {
			return &domain.BalanceError{HaveCents: acct.BalanceCents, WantCents: cost}
		}
		acct.BalanceCents -= cost
		if err := tx.SaveAccount(ctx, acct); err != nil {
			return err
		}
		return tx.RecordCashTx(ctx, &domain.CashTransaction{
			UserID:      userID,
			AmountCents: -cost,
			Type:        domain.TxOrderPlaced,
			Description: fmt.Sprintf("reserved for buy of %d %s shares", size, token),
			MarketID:    marketID,
			OrderID:     orderID,
			CreatedAt:   l.now(),
		})
	})
}

// ReserveForSell verifies the seller holds enough shares. Shares are
// reserved implicitly by the check; a resting sell order still owns its
// shares until filled, so nothing is moved here.
func (l *Ledger) ReserveForSell(ctx context.Context, userID, marketID string, token domain.Token, size int64) error {
	if _, err := l.store.GetAccount(ctx, userID); err != nil {
		return err
	}
	pos, err := l.store.GetPosition(ctx, userID, marketID)
	if err != nil {
		return err
	}
	var have int64
	if pos != nil {
		have = pos.Shares(token)
	}
	if have < size {
		return &domain.SharesError{Token: token, Have: have, Want: size}
	}
	return nil
}

// SettleFill applies one fill as a single atomic unit: the seller is
// credited the trade value, size shares move from the seller's position to
// the buyer's, and a taker-buyer's price improvement is returned. Partial
// application is impossible; any failure rolls the whole fill back.
func (l *Ledger) SettleFill(ctx context.Context, f FillSettlement) error {
	proceeds := domain.CostCents(f.Token, f.ExecTicks, f.Size)
	return l.store.Transaction(ctx, func(tx *storage.Store) error {
		seller, err := tx.GetAccount(ctx, f.SellerID)
		if err != nil {
			return fmt.Errorf("seller account: %w", err)
		}

		// Shares first: a short seller aborts before any cash moves.
		sellerPos, err := tx.GetPosition(ctx, f.SellerID, f.MarketID)
		if err != nil {
			return err
		}
		if sellerPos == nil {
			return &domain.SharesError{Token: f.Token, Have: 0, Want: f.Size}
		}
		if err := sellerPos.RemoveShares(f.Token, f.Size); err != nil {
			return err
		}
		sellerPos.UpdatedAt = l.now()
		if err := tx.SavePosition(ctx, sellerPos); err != nil {
			return err
		}

		buyerPos, err := tx.GetPosition(ctx, f.BuyerID, f.MarketID)
		if err != nil {
			return err
		}
		if buyerPos == nil {
			buyerPos = &domain.Position{UserID: f.BuyerID, MarketID: f.MarketID}
		}
		buyerPos.AddShares(f.Token, f.Size)
		buyerPos.UpdatedAt = l.now()
		if err := tx.SavePosition(ctx, buyerPos); err != nil {
			return err
		}

		seller.BalanceCents += proceeds
		seller.TotalVolumeCents += proceeds
		if err := tx.SaveAccount(ctx, seller); err != nil {
			return err
		}
		if err := tx.RecordCashTx(ctx, &domain.CashTransaction{
			UserID:      f.SellerID,
			AmountCents: proceeds,
			Type:        domain.TxTrade,
			Description: fmt.Sprintf("sold %d %s shares", f.Size, f.Token),
			MarketID:    f.MarketID,
			OrderID:     f.SellerOrderID,
			CreatedAt:   l.now(),
		}); err != nil {
			return err
		}

		buyer, err := tx.GetAccount(ctx, f.BuyerID)
		if err != nil {
			return fmt.Errorf("buyer account: %w", err)
		}
		reserved := domain.CostCents(f.Token, f.BuyerLimitTicks, f.Size)
		if improvement := reserved - proceeds; improvement > 0 {
			buyer.BalanceCents += improvement
			if err := tx.RecordCashTx(ctx, &domain.CashTransaction{
				UserID:      f.BuyerID,
				AmountCents: improvement,
				Type:        domain.TxTrade,
				Description: "price improvement refund",
				MarketID:    f.MarketID,
				OrderID:     f.BuyerOrderID,
				CreatedAt:   l.now(),
			}); err != nil {
				return err
			}
		}
		buyer.TotalVolumeCents += proceeds
		return tx.SaveAccount(ctx, buyer)
	})
}

// RefundUnfilled returns the reserved-but-unfilled cost of a buy order on
// cancellation. Sell orders reserve nothing, so there is nothing to return.
func (l *Ledger) RefundUnfilled(ctx context.Context, o *domain.Order) error {
	if o.Side != domain.SideBuy {
		return nil
	}
	remaining := o.Remaining()
	if remaining <= 0 {
		return nil
	}
	refund := domain.CostCents(o.Token, o.PriceTicks(), remaining)
	return l.store.Transaction(ctx, func(tx *storage.Store) error {
		acct, err := tx.GetAccount(ctx, o.UserID)
		if err != nil {
			return err
		}
		acct.BalanceCents += refund
		if err := tx.SaveAccount(ctx, acct); err != nil {
			return err
		}
		return tx.RecordCashTx(ctx, &domain.CashTransaction{
			UserID:      o.UserID,
			AmountCents: refund,
			Type:        domain.TxOrderCancelled,
			Description: "order cancellation refund",
			MarketID:    o.MarketID,
			OrderID:     o.ID,
			CreatedAt:   l.now(),
		})
	})
}

// Payout credits winning shares at one dollar per share, exactly once per
// (user, market). The market_payout audit row is the idempotency marker: a
// second invocation finds it and does nothing.
func (l *Ledger) Payout(ctx context.Context, userID, marketID string, outcome bool) (int64, error) {
	var paid int64
	err := l.store.Transaction(ctx, func(tx *storage.Store) error {
		done, err := tx.HasPayout(ctx, userID, marketID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		pos, err := tx.GetPosition(ctx, userID, marketID)
		if err != nil {
			return err
		}
		if pos == nil {
			return nil
		}
		winning := pos.Winning(outcome)
		if winning <= 0 {
			return nil
		}
		acct, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		paid = winning * 100
		acct.BalanceCents += paid
		if err := tx.SaveAccount(ctx, acct); err != nil {
			return err
		}
		return tx.RecordCashTx(ctx, &domain.CashTransaction{
			UserID:      userID,
			AmountCents: paid,
			Type:        domain.TxMarketPayout,
			Description: fmt.Sprintf("market resolution payout for %d winning shares", winning),
			MarketID:    marketID,
			CreatedAt:   l.now(),
		})
	})
	if err != nil {
		return 0, err
	}
	return paid, nil
}

// FundPlatform grants the platform account cash and shares out-of-band, so
// its bootstrap liquidity orders pass the usual reservation checks. This is
// not a trade and records a platform_funding audit row instead.
func (l *Ledger) FundPlatform(ctx context.Context, userID, marketID string, cashCents, yesShares, noShares int64) error {
	return l.store.Transaction(ctx, func(tx *storage.Store) error {
		acct, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		acct.BalanceCents += cashCents
		if err := tx.SaveAccount(ctx, acct); err != nil {
			return err
		}

		pos, err := tx.GetPosition(ctx, userID, marketID)
		if err != nil {
			return err
		}
		if pos == nil {
			pos = &domain.Position{UserID: userID, MarketID: marketID}
		}
		pos.AddShares(domain.TokenYes, yesShares)
		pos.AddShares(domain.TokenNo, noShares)
		pos.UpdatedAt = l.now()
		if err := tx.SavePosition(ctx, pos); err != nil {
			return err
		}

		return tx.RecordCashTx(ctx, &domain.CashTransaction{
			UserID:      userID,
			AmountCents: cashCents,
			Type:        domain.TxPlatformFunding,
			Description: fmt.Sprintf("platform liquidity funding (%d YES / %d NO shares)", yesShares, noShares),
			MarketID:    marketID,
			CreatedAt:   l.now(),
		})
	})
}
