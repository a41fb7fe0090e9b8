package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"predmarket/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the transactional persistence layer. Every record the core keeps
// (markets, orders, trades, positions, accounts, cash audit rows) lives here.
type Store struct {
	db *gorm.DB
}

// Open creates a SQLite-backed store at path, creating the directory and
// migrating the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store, used by tests.
func OpenMemory() (*Store, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Market{},
		&domain.Order{},
		&domain.Trade{},
		&domain.Position{},
		&domain.Account{},
		&domain.CashTransaction{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Transaction runs fn against a store bound to one database transaction.
// Nested calls become savepoints.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// ======================================================================================
// Market operations
// ======================================================================================

// CreateMarket inserts a new market row.
func (s *Store) CreateMarket(ctx context.Context, m *domain.Market) error {
	return s.db.WithContext(ctx).Create(m).Error
}

// GetMarket retrieves a market by id.
func (s *Store) GetMarket(ctx context.Context, id string) (*domain.Market, error) {
	var m domain.Market
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMarketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveMarket persists market mutations (stats, resolution).
func (s *Store) SaveMarket(ctx context.Context, m *domain.Market) error {
	return s.db.WithContext(ctx).Save(m).Error
}

// ActiveMarkets lists all markets currently open for trading.
func (s *Store) ActiveMarkets(ctx context.Context) ([]domain.Market, error) {
	var out []domain.Market
	err := s.db.WithContext(ctx).Where("status = ?", domain.MarketActive).Find(&out).Error
	return out, err
}

// ======================================================================================
// Order operations
// ======================================================================================

// CreateOrder inserts a new order row.
func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	return s.db.WithContext(ctx).Create(o).Error
}

// GetOrder retrieves an order by id.
func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := s.db.WithContext(ctx).First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveOrder persists fill-state or status mutations of an order.
func (s *Store) SaveOrder(ctx context.Context, o *domain.Order) error {
	return s.db.WithContext(ctx).Save(o).Error
}

// OpenOrders lists all open orders of a market in arrival order.
func (s *Store) OpenOrders(ctx context.Context, marketID string) ([]domain.Order, error) {
	var out []domain.Order
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND status = ?", marketID, domain.OrderOpen).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// OpenOrdersForToken lists open orders of one market/token/side in arrival
// order. Price ordering is applied by callers in tick space; decimal columns
// must not be compared as strings.
func (s *Store) OpenOrdersForToken(ctx context.Context, marketID string, token domain.Token, side domain.Side) ([]domain.Order, error) {
	var out []domain.Order
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND token = ? AND side = ? AND status = ?",
			marketID, token, side, domain.OrderOpen).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// UserOrders lists a user's orders, optionally filtered by market and
// status, newest first.
func (s *Store) UserOrders(ctx context.Context, userID, marketID string, status domain.OrderStatus) ([]domain.Order, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if marketID != "" {
		q = q.Where("market_id = ?", marketID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.Order
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

// ======================================================================================
// Trade operations
// ======================================================================================

// CreateTrade inserts an immutable trade row.
func (s *Store) CreateTrade(ctx context.Context, t *domain.Trade) error {
	return s.db.WithContext(ctx).Create(t).Error
}

// TradesForMarket lists recent trades, newest first.
func (s *Store) TradesForMarket(ctx context.Context, marketID string, limit, offset int) ([]domain.Trade, error) {
	var out []domain.Trade
	err := s.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&out).Error
	return out, err
}

// TradeVolume sums size over all trades referencing an order, for
// reconciliation against the order's filled count.
func (s *Store) TradeVolume(ctx context.Context, orderID string) (int64, error) {
	var sum int64
	err := s.db.WithContext(ctx).Model(&domain.Trade{}).
		Where("maker_order_id = ? OR taker_order_id = ?", orderID, orderID).
		Select("COALESCE(SUM(size), 0)").
		Scan(&sum).Error
	return sum, err
}

// ======================================================================================
// Position operations
// ======================================================================================

// GetPosition retrieves a user's position in a market. A missing row returns
// (nil, nil); positions are created lazily on first fill.
func (s *Store) GetPosition(ctx context.Context, userID, marketID string) (*domain.Position, error) {
	var p domain.Position
	err := s.db.WithContext(ctx).First(&p, "user_id = ? AND market_id = ?", userID, marketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePosition creates or updates a position row.
func (s *Store) SavePosition(ctx context.Context, p *domain.Position) error {
	return s.db.WithContext(ctx).Save(p).Error
}

// PositionsForMarket lists every position in a market (the settlement pass).
func (s *Store) PositionsForMarket(ctx context.Context, marketID string) ([]domain.Position, error) {
	var out []domain.Position
	err := s.db.WithContext(ctx).Where("market_id = ?", marketID).Find(&out).Error
	return out, err
}

// PositionsForUser lists a user's positions across markets.
func (s *Store) PositionsForUser(ctx context.Context, userID string) ([]domain.Position, error) {
	var out []domain.Position
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&out).Error
	return out, err
}

// ======================================================================================
// Account operations
// ======================================================================================

// CreateAccount provisions a user cash account. The ledger never creates
// accounts on its own; a missing row is always ErrUserNotFound there.
func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	return s.db.WithContext(ctx).Create(a).Error
}

// GetAccount retrieves a user cash account.
func (s *Store) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	var a domain.Account
	err := s.db.WithContext(ctx).First(&a, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAccount persists balance mutations. Only the ledger calls this.
func (s *Store) SaveAccount(ctx context.Context, a *domain.Account) error {
	return s.db.WithContext(ctx).Save(a).Error
}

// ======================================================================================
// Cash audit trail
// ======================================================================================

// RecordCashTx appends an audit row for a balance mutation.
func (s *Store) RecordCashTx(ctx context.Context, t *domain.CashTransaction) error {
	return s.db.WithContext(ctx).Create(t).Error
}

// HasPayout reports whether a market_payout audit row exists for the user
// and market. This is the payout idempotency check.
func (s *Store) HasPayout(ctx context.Context, userID, marketID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.CashTransaction{}).
		Where("user_id = ? AND market_id = ? AND type = ?", userID, marketID, domain.TxMarketPayout).
		Count(&n).Error
	return n > 0, err
}

// CashTxForUser lists a user's recent cash movements, newest first.
func (s *Store) CashTxForUser(ctx context.Context, userID string, limit int) ([]domain.CashTransaction, error) {
	var out []domain.CashTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
