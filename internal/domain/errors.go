package domain

import (
	"errors"
	"fmt"
)

// Validation and resource-state errors are rejected before any state
// mutation and reported to the caller as-is. Money-mutating failures always
// propagate; only read-path display failures may degrade to defaults.
var (
	ErrMarketNotFound        = errors.New("market not found")
	ErrMarketNotActive       = errors.New("market is not active for trading")
	ErrMarketEnded           = errors.New("market has ended for trading")
	ErrMarketAlreadyResolved = errors.New("market already resolved")
	ErrInvalidSide           = errors.New("side must be buy or sell")
	ErrInvalidToken          = errors.New("token must be YES or NO")
	ErrInvalidPrice          = errors.New("price must be between 0.01 and 0.99")
	ErrInvalidSize           = errors.New("size must be positive")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrOrderNotFound         = errors.New("order not found")
	ErrNotOwner              = errors.New("order not owned by user")
	ErrOrderNotCancellable   = errors.New("order cannot be cancelled")
	ErrUserNotFound          = errors.New("user not found")

	// ErrEngineUnavailable signals that the in-memory matching path cannot
	// serve the request. Callers may degrade to the store-backed path.
	ErrEngineUnavailable = errors.New("matching engine unavailable")
)

// SharesError reports a share shortfall with the exact holdings, for callers
// that surface it to the user.
type SharesError struct {
	Token Token
	Have  int64
	Want  int64
}

func (e *SharesError) Error() string {
	return fmt.Sprintf("insufficient %s shares: have %d, want %d", e.Token, e.Have, e.Want)
}

func (e *SharesError) Unwrap() error {
	return ErrInsufficientShares
}

// BalanceError reports a cash shortfall in cents.
type BalanceError struct {
	HaveCents int64
	WantCents int64
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d cents, want %d cents", e.HaveCents, e.WantCents)
}

func (e *BalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
