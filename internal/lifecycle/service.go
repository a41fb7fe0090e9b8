package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"predmarket/internal/domain"
	"predmarket/internal/engine"
	"predmarket/internal/infra/storage"
	"predmarket/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config holds the liquidity bootstrap parameters.
type Config struct {
	// SpreadTicks is the half-spread around the initial probability for the
	// four seed orders.
	SpreadTicks int64
	// SeedQuantity is the size of each seed order.
	SeedQuantity int64
	// PlatformUserID is the account the seed orders are placed under.
	PlatformUserID string
	// StartingBalanceCents is granted to newly provisioned accounts.
	StartingBalanceCents int64
}

// Service drives the market state machine: creation with bootstrap
// liquidity, resolution with payouts, and the read-only resolution preview.
type Service struct {
	store  *storage.Store
	ledger *ledger.Ledger
	engine *engine.Engine
	pub    domain.EventPublisher
	cfg    Config
	now    func() time.Time
}

// New creates a lifecycle service. pub may be nil.
func New(store *storage.Store, l *ledger.Ledger, e *engine.Engine, pub domain.EventPublisher, cfg Config) *Service {
	return &Service{store: store, ledger: l, engine: e, pub: pub, cfg: cfg, now: time.Now}
}

// ProvisionAccount creates a user cash account with the configured starting
// balance. Idempotent: an existing account is returned unchanged.
func (s *Service) ProvisionAccount(ctx context.Context, userID, username string) (*domain.Account, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}
	acct, err := s.store.GetAccount(ctx, userID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	acct = &domain.Account{
		ID:           userID,
		Username:     username,
		BalanceCents: s.cfg.StartingBalanceCents,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	slog.Info("account provisioned",
		slog.String("user_id", userID), slog.Int64("balance_cents", acct.BalanceCents))
	return acct, nil
}

// CreateMarketRequest describes a new binary market.
type CreateMarketRequest struct {
	Title       string
	Description string
	Category    string
	EndDate     time.Time
	// InitialProbTicks centers the seeded quotes, in ticks (1..99).
	InitialProbTicks int64
}

// CreateMarket inserts an active market and seeds it with platform
// liquidity. A seeding failure is logged, not fatal: the market is live
// either way, just without resting quotes.
func (s *Service) CreateMarket(ctx context.Context, req CreateMarketRequest) (*domain.Market, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.New("market title is required")
	}
	now := s.now()
	if !req.EndDate.After(now) {
		return nil, errors.New("market end date must be in the future")
	}
	prob := domain.ClampTicks(req.InitialProbTicks)

	m := &domain.Market{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Status:      domain.MarketActive,
		EndDate:     req.EndDate,
		YesPrice:    domain.TicksToPrice(prob),
		NoPrice:     domain.TicksToPrice(100 - prob),
		CreatedAt:   now,
	}
	if err := s.store.CreateMarket(ctx, m); err != nil {
		return nil, err
	}

	if err := s.SeedLiquidity(ctx, m.ID, prob); err != nil {
		slog.Warn("seeding market liquidity failed",
			slog.String("market_id", m.ID), slog.Any("error", err))
	}
	return m, nil
}

// SeedLiquidity places four platform orders around the initial probability:
// a bid and an ask on each token. The platform account is funded
// out-of-band first, so the orders pass the ordinary reservation checks.
func (s *Service) SeedLiquidity(ctx context.Context, marketID string, probTicks int64) error {
	spread := s.cfg.SpreadTicks
	qty := s.cfg.SeedQuantity
	if qty <= 0 || s.cfg.PlatformUserID == "" {
		return nil
	}

	yesBid := domain.ClampTicks(probTicks - spread)
	yesAsk := domain.ClampTicks(probTicks + spread)
	noBid := domain.ClampTicks(100 - probTicks - spread)
	noAsk := domain.ClampTicks(100 - probTicks + spread)

	cash := domain.CostCents(domain.TokenYes, yesBid, qty) +
		domain.CostCents(domain.TokenNo, noBid, qty)
	if err := s.ledger.FundPlatform(ctx, s.cfg.PlatformUserID, marketID, cash, qty, qty); err != nil {
		return fmt.Errorf("fund platform: %w", err)
	}

	seeds := []engine.PlaceOrderRequest{
		{MarketID: marketID, UserID: s.cfg.PlatformUserID, Side: domain.SideBuy, Token: domain.TokenYes, PriceTicks: yesBid, Size: qty},
		{MarketID: marketID, UserID: s.cfg.PlatformUserID, Side: domain.SideSell, Token: domain.TokenYes, PriceTicks: yesAsk, Size: qty},
		{MarketID: marketID, UserID: s.cfg.PlatformUserID, Side: domain.SideBuy, Token: domain.TokenNo, PriceTicks: noBid, Size: qty},
		{MarketID: marketID, UserID: s.cfg.PlatformUserID, Side: domain.SideSell, Token: domain.TokenNo, PriceTicks: noAsk, Size: qty},
	}
	for _, req := range seeds {
		if _, err := s.engine.PlaceOrder(ctx, req); err != nil {
			return fmt.Errorf("seed %s %s @%d: %w", req.Side, req.Token, req.PriceTicks, err)
		}
	}
	slog.Info("market liquidity seeded",
		slog.String("market_id", marketID), slog.Int64("prob_ticks", probTicks))
	return nil
}

// PayoutFailure records one user whose payout could not be applied.
type PayoutFailure struct {
	UserID string
	Err    error
}

// ResolutionSummary reports what a resolution actually did.
type ResolutionSummary struct {
	TotalPaidCents  int64
	PaidUsers       int
	CancelledOrders int
	Failures        []PayoutFailure
}

// Resolution is the result of resolving a market.
type Resolution struct {
	Market  *domain.Market
	Summary ResolutionSummary
}

// Resolve settles a market on its final outcome: the market is marked
// resolved, every open order is cancelled with refunds, and each position
// holder is paid for winning shares. Payouts are independent; one user's
// failure lands in the summary without blocking the rest. Payout itself is
// idempotent, so a crashed resolution can be re-run safely.
func (s *Service) Resolve(ctx context.Context, marketID string, outcome bool) (*Resolution, error) {
	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Status == domain.MarketResolved {
		return nil, domain.ErrMarketAlreadyResolved
	}

	now := s.now()
	m.Status = domain.MarketResolved
	m.Resolution = &outcome
	m.ResolvedAt = &now
	if err := s.store.SaveMarket(ctx, m); err != nil {
		return nil, err
	}

	var sum ResolutionSummary
	cancelled, err := s.engine.CancelMarketOrders(ctx, marketID)
	sum.CancelledOrders = cancelled
	if err != nil {
		slog.Error("cancelling open orders during resolution",
			slog.String("market_id", marketID), slog.Any("error", err))
	}

	positions, err := s.store.PositionsForMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		p := &positions[i]
		paid, err := s.ledger.Payout(ctx, p.UserID, marketID, outcome)
		if err != nil {
			sum.Failures = append(sum.Failures, PayoutFailure{UserID: p.UserID, Err: err})
			slog.Error("payout failed",
				slog.String("market_id", marketID),
				slog.String("user_id", p.UserID),
				slog.Any("error", err))
			continue
		}
		if paid > 0 {
			sum.TotalPaidCents += paid
			sum.PaidUsers++
		}
	}

	if s.pub != nil {
		s.pub.Publish(marketID, domain.ResolutionEvent{
			Type:     "resolution",
			MarketID: marketID,
			Outcome:  outcome,
			At:       now,
		})
	}
	slog.Info("market resolved",
		slog.String("market_id", marketID),
		slog.Bool("outcome", outcome),
		slog.Int64("total_paid_cents", sum.TotalPaidCents),
		slog.Int("paid_users", sum.PaidUsers),
		slog.Int("cancelled_orders", sum.CancelledOrders),
		slog.Int("payout_failures", len(sum.Failures)))

	return &Resolution{Market: m, Summary: sum}, nil
}

// PayoutPreview is one user's projected payout for a hypothetical outcome.
type PayoutPreview struct {
	UserID        string
	WinningShares int64
	PayoutCents   int64
}

// ResolutionPreview projects a resolution without touching anything.
type ResolutionPreview struct {
	MarketID   string
	Outcome    bool
	Winners    int
	Losers     int
	TotalCents int64
	PerUser    []PayoutPreview
}

// MarketDetail is the read view of one market: the row, its live book top
// and recent trades.
type MarketDetail struct {
	Market  *domain.Market
	BestBid map[domain.Token]*decimal.Decimal
	BestAsk map[domain.Token]*decimal.Decimal
	Trades  []domain.Trade
}

// MarketDetailLimit caps the trades returned by MarketDetail.
const MarketDetailLimit = 50

// MarketDetail assembles the market read view. A snapshot failure degrades
// to an empty book top; the market row and trades still come back.
func (s *Service) MarketDetail(ctx context.Context, marketID string) (*MarketDetail, error) {
	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	trades, err := s.store.TradesForMarket(ctx, marketID, MarketDetailLimit, 0)
	if err != nil {
		return nil, err
	}
	detail := &MarketDetail{
		Market:  m,
		BestBid: make(map[domain.Token]*decimal.Decimal),
		BestAsk: make(map[domain.Token]*decimal.Decimal),
		Trades:  trades,
	}
	snap, err := s.engine.Orderbook(ctx, marketID)
	if err != nil {
		slog.Debug("market detail book snapshot failed",
			slog.String("market_id", marketID), slog.Any("error", err))
		return detail, nil
	}
	for _, token := range []domain.Token{domain.TokenYes, domain.TokenNo} {
		ts := snap.Token(token)
		if len(ts.Bids) > 0 {
			p := ts.Bids[0].Price
			detail.BestBid[token] = &p
		}
		if len(ts.Asks) > 0 {
			p := ts.Asks[0].Price
			detail.BestAsk[token] = &p
		}
	}
	return detail, nil
}

// Portfolio is a user's account summary across markets.
type Portfolio struct {
	UserID      string
	Balance     decimal.Decimal
	TotalVolume decimal.Decimal
	Positions   []domain.Position
	OpenOrders  []domain.Order
	Recent      []domain.CashTransaction
}

// PortfolioHistoryLimit caps the cash movements returned in a portfolio.
const PortfolioHistoryLimit = 20

// Portfolio assembles a user's holdings, open orders and recent cash
// movements. Read-only.
func (s *Service) Portfolio(ctx context.Context, userID string) (*Portfolio, error) {
	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	positions, err := s.store.PositionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	open, err := s.store.UserOrders(ctx, userID, "", domain.OrderOpen)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.CashTxForUser(ctx, userID, PortfolioHistoryLimit)
	if err != nil {
		return nil, err
	}
	return &Portfolio{
		UserID:      userID,
		Balance:     domain.CentsToDecimal(acct.BalanceCents),
		TotalVolume: domain.CentsToDecimal(acct.TotalVolumeCents),
		Positions:   positions,
		OpenOrders:  open,
		Recent:      recent,
	}, nil
}

// PreviewResolution computes who would be paid what if the market resolved
// to the given outcome. Read-only.
func (s *Service) PreviewResolution(ctx context.Context, marketID string, outcome bool) (*ResolutionPreview, error) {
	if _, err := s.store.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	positions, err := s.store.PositionsForMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	preview := &ResolutionPreview{MarketID: marketID, Outcome: outcome}
	for i := range positions {
		p := &positions[i]
		winning := p.Winning(outcome)
		if winning > 0 {
			preview.Winners++
			cents := winning * 100
			preview.TotalCents += cents
			preview.PerUser = append(preview.PerUser, PayoutPreview{
				UserID:        p.UserID,
				WinningShares: winning,
				PayoutCents:   cents,
			})
		} else if p.YesShares > 0 || p.NoShares > 0 {
			preview.Losers++
		}
	}
	return preview, nil
}
