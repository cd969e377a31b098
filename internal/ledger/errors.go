package ledger

import (
	"fmt"

	"github.com/jabernat/EasyMoney/internal/domain"
)

// InsufficientBalanceError reports a purchase (or a sale whose trading
// fee exceeds its proceeds) that the account cannot afford.
type InsufficientBalanceError struct {
	Symbol  string
	Cost    float64
	Balance float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("account with $%.2f cannot afford $%.2f charge for %q stock",
		e.Balance, e.Cost, e.Symbol)
}

func (e *InsufficientBalanceError) Unwrap() error { return domain.ErrInsufficientBalance }

// InsufficientSharesError reports an attempt to sell more shares than
// the account holds.
type InsufficientSharesError struct {
	Symbol string
	Shares float64
	Owned  float64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("attempted to sell %.2f shares of %q stock, but only %.2f owned",
		e.Shares, e.Symbol, e.Owned)
}

func (e *InsufficientSharesError) Unwrap() error { return domain.ErrInsufficientShares }

// ShareQuantityError reports a trade for a non-positive share
// quantity.
type ShareQuantityError struct {
	Symbol string
	Shares float64
}

func (e *ShareQuantityError) Error() string {
	return fmt.Sprintf("attempted to trade invalid non-positive quantity %.2f of %q stock",
		e.Shares, e.Symbol)
}

func (e *ShareQuantityError) Unwrap() error { return domain.ErrShareQuantity }
